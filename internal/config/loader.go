package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/webcrawl/internal/crawler"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".webcrawl"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return &cf, nil
}

// validate checks the values a YAML decode cannot: non-negative limits,
// a known domain match mode and no credentials under defaults. Errors name
// the offending section, e.g. "sites.example.com: invalid depth".
func (cf *File) validate() error {
	check := func(name string, sc SiteConfig) error {
		if sc.Depth != nil && *sc.Depth < 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidDepth)
		}
		if sc.MaxPages != nil && *sc.MaxPages < 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidMaxPages)
		}
		if _, err := crawler.ParseDomainMatch(sc.DomainMatch); err != nil {
			return fmt.Errorf("%s: %w", name, ErrInvalidDomainMatch)
		}
		return nil
	}

	if err := check("defaults", cf.Defaults); err != nil {
		return err
	}
	if cf.Defaults.Cookie != "" || len(cf.Defaults.Headers) > 0 {
		return ErrDefaultCredentials
	}
	for host, sc := range cf.Sites {
		if err := check("sites."+host, sc); err != nil {
			return err
		}
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .webcrawl in the current directory
// 3. Look for .webcrawl in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
