// Package config loads, validates, and normalizes Loom configuration.
//
// Configuration is TOML, resolved from an explicit --config path, then
// ~/.config/loom/config.toml, then ./loom.toml. Missing files fall back
// to defaults; all path values are expanded to absolute paths before use.
package config
