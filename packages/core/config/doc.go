// Package config handles configuration loading and management for pagespec.
//
// It provides functionality for:
//   - Loading pagespec.config.yaml (or .json, .pagespecrc) through viper
//   - PAGESPEC_* environment overrides for every scalar setting
//   - Default configuration values and CI/local run-mode resolution
//   - Validation of reporters, artifact policies and browser names
package config
