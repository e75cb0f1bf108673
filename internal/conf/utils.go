// conf/utils.go config file location helpers
package conf

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/wakefire/wakefire/internal/errors"
)

const (
	appDirName = "wakefire"
	osWindows  = "windows"
)

// DefaultConfigPaths returns the directories searched for config.yaml. When
// one of them already holds a config file only that directory is returned.
func DefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	var configPaths []string
	switch runtime.GOOS {
	case osWindows:
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategorySystem).
				Context("operation", "get-executable-path").
				Build()
		}
		configPaths = []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", appDirName),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", appDirName),
			filepath.Join("/etc", appDirName),
		}
	}

	if path := findConfigDir(configPaths); path != "" {
		return []string{path}, nil
	}
	return configPaths, nil
}

func findConfigDir(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return path
		}
	}
	return ""
}
