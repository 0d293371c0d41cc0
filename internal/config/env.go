package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

var envFileNames = []string{".env", ".env.local"}

// loadEnvFile loads environment variables from .env/.env.local files.
// It looks in each of dirs and stops at the first file that parses.
// Existing process environment variables are not overwritten.
func loadEnvFile(dirs ...string) (string, error) {
	for _, dir := range dirs {
		for _, name := range envFileNames {
			envPath := filepath.Join(dir, name)
			if _, err := os.Stat(envPath); err != nil {
				continue
			}
			if err := godotenv.Load(envPath); err != nil {
				return envPath, fmt.Errorf("load %s: %w", envPath, err)
			}
			return envPath, nil
		}
	}
	return "", fmt.Errorf("no .env file found")
}
