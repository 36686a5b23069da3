// Package config loads, normalizes, and validates easel's TOML configuration.
package config
