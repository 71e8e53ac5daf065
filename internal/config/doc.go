// Package config loads poolwatch configuration.
//
// The watcher reads a YAML file with ${VAR} environment expansion; defaults
// are applied before validation. The deployer takes its settings, including
// the signing key, from environment variables only.
package config
