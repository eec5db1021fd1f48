// Package build runs the full site build: compile layouts, render pages,
// process assets and write SEO files into a staging directory that is
// promoted over the output directory only when every stage succeeds.
//
// All execution paths (the build command, the dev watch loop, tests) go
// through Builder.Build.
package build
