package main

import (
	"os"
	"path/filepath"

	"easel/internal/config"
)

func socketPath(cfg *config.Config) string {
	if cfg != nil && cfg.Paths.SocketPath != "" {
		return cfg.Paths.SocketPath
	}
	expanded, err := config.ExpandPath("~/.local/share/easel/easeld.sock")
	if err != nil {
		return filepath.Join(os.TempDir(), "easeld.sock")
	}
	return expanded
}
