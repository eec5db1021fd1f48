package build

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
	"git.home.luguber.info/inful/contentforge/internal/logfields"
	"git.home.luguber.info/inful/contentforge/internal/observability"
)

const (
	stagingSuffix = ".staging-"
	backupSuffix  = ".prev"
)

func stagingDir(output, id string) string {
	return output + stagingSuffix + id
}

// removeStaleStaging deletes staging directories left behind by an
// interrupted process.
func removeStaleStaging(ctx context.Context, output string) {
	matches, err := filepath.Glob(output + stagingSuffix + "*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.RemoveAll(m); err != nil {
			observability.WarnContext(ctx, "Failed to remove stale staging directory", logfields.Path(m), logfields.Error(err))
		}
	}
}

// promoteStaging swaps staging into place:
//  1. remove a leftover <output>.prev
//  2. move the current output to <output>.prev
//  3. rename staging to output
//  4. remove <output>.prev
//
// If step 3 fails the previous output is moved back.
func promoteStaging(staging, output string) error {
	prev := output + backupSuffix
	if err := os.RemoveAll(prev); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to remove previous backup").
			WithContext("path", prev).Build()
	}

	hadOutput := false
	if _, err := os.Stat(output); err == nil {
		if err := os.Rename(output, prev); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to back up existing output").
				WithContext("path", output).Build()
		}
		hadOutput = true
	}

	if err := os.Rename(staging, output); err != nil {
		if hadOutput {
			_ = os.Rename(prev, output)
		}
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to promote staging directory").
			WithContext("path", staging).Build()
	}

	if hadOutput {
		if err := os.RemoveAll(prev); err != nil {
			slog.Warn("Failed to remove previous output", logfields.Path(prev), logfields.Error(err))
		}
	}
	return nil
}
