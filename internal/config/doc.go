// Package config loads and validates voxgate configuration from YAML
// files with ${VAR} environment expansion.
package config
