package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/jules-warden/internal/core"
)

// RepoConfigFileName is the optional per-repository override file.
const RepoConfigFileName = ".jules-warden.yml"

var (
	ErrRepoConfigNotFound = errors.New("repo config file not found")
	ErrRepoConfigParsing  = errors.New("repo config parsing failed")
)

// ParseRepoConfig decodes the contents of a .jules-warden.yml file, filling
// in defaults for anything the file leaves unset.
func ParseRepoConfig(data []byte) (*core.RepoConfig, error) {
	cfg := core.DefaultRepoConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoConfigParsing, err)
	}
	if cfg.MinSeverity != "" {
		sev, known := core.ParseSeverity(string(cfg.MinSeverity))
		if !known {
			return nil, fmt.Errorf("%w: unknown min_severity %q", ErrRepoConfigParsing, cfg.MinSeverity)
		}
		cfg.MinSeverity = sev
	} else {
		cfg.MinSeverity = core.SeverityLow
	}
	return cfg, nil
}

// LoadRepoConfig loads and parses the .jules-warden.yml file from a local
// repository checkout. A missing file is not an error condition for the
// review; callers receive the defaults alongside ErrRepoConfigNotFound.
func LoadRepoConfig(repoPath string) (*core.RepoConfig, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, RepoConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return core.DefaultRepoConfig(), ErrRepoConfigNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", RepoConfigFileName, err)
	}
	return ParseRepoConfig(data)
}
