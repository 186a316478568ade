// Package env locates and loads the picker's .env file.
package env

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	loadOnce   sync.Once
	loadedPath string
	loadErr    error
)

// Ensure loads the picker's .env exactly once. PICKER_DOTENV names an
// explicit file; otherwise the nearest .env from the working directory
// upward is used. A missing file is not an error — the service normally
// runs from systemd with its environment already set.
func Ensure() error {
	loadOnce.Do(func() {
		path, explicit, err := findDotEnv()
		if err != nil {
			loadErr = err
			log.Debug().Err(err).Msg("picker: search .env failed")
			return
		}
		if path == "" {
			return
		}
		if err := godotenv.Load(path); err != nil {
			if explicit {
				// An explicitly named file that cannot load is a real
				// misconfiguration, not an absent default.
				loadErr = err
			}
			log.Warn().Err(err).Str("dotenv", path).Msg("picker: load .env failed")
			return
		}
		loadedPath = path
		log.Debug().Str("dotenv", path).Msg("picker: loaded .env")
	})
	return loadErr
}

// LoadedPath returns the resolved .env path if one was loaded, otherwise "".
func LoadedPath() string {
	return loadedPath
}

func findDotEnv() (path string, explicit bool, err error) {
	if override := strings.TrimSpace(os.Getenv("PICKER_DOTENV")); override != "" {
		return override, true, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", false, err
	}
	for {
		candidate := filepath.Join(wd, ".env")
		if info, serr := os.Stat(candidate); serr == nil && !info.IsDir() {
			return candidate, false, nil
		} else if serr != nil && !errors.Is(serr, os.ErrNotExist) {
			return "", false, serr
		}
		parent := filepath.Dir(wd)
		if parent == wd {
			return "", false, nil
		}
		wd = parent
	}
}
