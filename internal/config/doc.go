// Package config loads, normalizes, and validates spotd configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and pulls account secrets from the
// environment so they never land in config files. The Config type
// centralizes every knob the daemon and CLI need in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
