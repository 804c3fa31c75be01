// Package config manages mirrorsync configuration: filesystem paths, process
// settings and the registry of mirrored repositories.
//
// Settings are read with viper from a YAML file, MIRRORSYNC_* environment
// variables and bound command-line flags. Repository definitions come from
// the same YAML file or from a legacy INI file (see LoadINI). The default root
// is ~/.mirrorsync/ containing config.yaml and the audit database.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains all the filesystem paths used by mirrorsync.
type Paths struct {
	// Root is the base directory for all mirrorsync data (default: ~/.mirrorsync)
	Root string

	// Config is the path to the default config file
	Config string

	// AuditDB is the path to the SQLite audit log
	AuditDB string
}

// DefaultPaths returns the default paths for mirrorsync.
// Paths can be overridden with environment variables:
// - MIRRORSYNC_ROOT: Override the root directory
func DefaultPaths() (*Paths, error) {
	root := os.Getenv("MIRRORSYNC_ROOT")
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".mirrorsync")
	}

	return &Paths{
		Root:    root,
		Config:  filepath.Join(root, "config.yaml"),
		AuditDB: filepath.Join(root, "audit.db"),
	}, nil
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.Root,
		filepath.Dir(p.AuditDB),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
