// conf/utils.go config file location and YAML output helpers
package conf

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/ftbuffer/internal/errors"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml, in
// order. If one of them already holds a config.yaml, only that one is returned.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	configPaths := []string{"."}
	switch runtime.GOOS {
	case "windows":
		configPaths = append(configPaths, filepath.Join(homeDir, "AppData", "Roaming", "ftbuffer"))
	default:
		configPaths = append(configPaths,
			filepath.Join(homeDir, ".config", "ftbuffer"),
			"/etc/ftbuffer",
		)
	}

	for _, path := range configPaths {
		if _, err := os.Stat(filepath.Join(path, "config.yaml")); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile locates an existing config.yaml.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}

	for _, path := range configPaths {
		configFilePath := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFilePath); err == nil {
			return configFilePath, nil
		}
	}

	return "", errors.Newf("config file not found").
		Category(errors.CategoryFileIO).
		Context("operation", "find-config-file").
		Build()
}

// WriteYAML writes settings to w as YAML.
func WriteYAML(w io.Writer, settings *Settings) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(settings); err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return enc.Close()
}

// WriteDefaultConfig writes the embedded default config to path, creating
// parent directories. An existing file is never overwritten.
func WriteDefaultConfig(path string) error {
	data, err := DefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // config dirs are world-readable
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-directory").
			Build()
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) //nolint:gosec // path from operator
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-file").
			Build()
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("error writing default config: %w", err)
	}
	return f.Close()
}
