// Package config loads, normalizes, and validates cardflow configuration.
//
// Configuration is read from TOML (default ~/.config/cardflow/config.toml,
// falling back to ./cardflow.toml), overlaid with environment variables for
// secrets and worker tuning, and then normalized so every numeric setting has
// a safe positive value. A missing or unparsable numeric environment override
// leaves the file or default value in place.
//
// Use Load to obtain a ready-to-use *Config and CreateSample to scaffold a new
// configuration file for operators.
package config
