package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/contentforge/internal/foundation/errors"
)

// envFiles are loaded in order from the project root. Variables already set in
// the process environment win over file values.
var envFiles = []string{".env", ".env.local"}

func loadEnvFiles(root string) error {
	for _, name := range envFiles {
		path := filepath.Join(root, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return errors.WrapError(err, errors.CategoryConfig, "failed to load env file").
				Fatal().WithContext("path", path).Build()
		}
	}
	return nil
}
