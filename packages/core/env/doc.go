// Package env handles environment variables and variable resolution for pagespec.
//
// It provides functionality for:
//   - Loading .env files and exporting them for PAGESPEC_* overrides
//   - Variable interpolation using {{variable}} syntax
//   - {{$VAR}} environment lookups and {{func()}} built-in calls
//   - PAGESPEC_VAR_* overrides of suite variables
package env
