package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// defaultDir holds the config file and the debug log.
const defaultDir = ".simdash"

// configNames are tried in order inside each .simdash directory.
var configNames = []string{"config.yml", "config.yaml"}

// ErrNotFound means no config file exists; callers fall back to defaults.
var ErrNotFound = errors.New("no simdash config found")

// Discover returns the absolute path of the config file.
// SIMDASH_CONFIG wins when set; otherwise the nearest .simdash/config.yml
// from the working directory upwards is used.
func Discover() (string, error) {
	if env := os.Getenv("SIMDASH_CONFIG"); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", fmt.Errorf("SIMDASH_CONFIG=%q: %w", env, os.ErrNotExist)
		}
		return env, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	if path, ok := searchUp(wd); ok {
		return path, nil
	}
	return "", fmt.Errorf("%w (looked for %s/%s from %s upwards)", ErrNotFound, defaultDir, configNames[0], wd)
}

func searchUp(dir string) (string, bool) {
	for {
		for _, name := range configNames {
			candidate := filepath.Join(dir, defaultDir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// Open discovers and loads the configuration. A missing file is not an
// error: defaults plus environment overrides are returned with an empty path.
func Open() (Config, string, error) {
	path, err := Discover()
	switch {
	case errors.Is(err, ErrNotFound):
		cfg, err := Load("")
		return cfg, "", err
	case err != nil:
		return Config{}, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}
