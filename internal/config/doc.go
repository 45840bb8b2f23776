// Package config loads and validates the TOML configuration for the
// coordinator. Load resolves the config path (explicit flag, then
// ~/.config/lectern/config.toml, then ./lectern.toml), decodes it over the
// defaults, expands paths, and validates the result.
package config
