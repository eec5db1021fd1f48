// Package errors provides classified error primitives used across ContentForge.
//
// Errors carry a category, a severity and structured context. Adapters map a
// classified error to a CLI exit code or an HTTP status.
//
//	err := errors.ContentError("malformed frontmatter").
//		WithContext("path", path).
//		WithCause(yamlErr).
//		Build()
package errors
