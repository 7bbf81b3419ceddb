// Package config handles YAML configuration loading and validation.
// Capture parameters are validated once at startup and stay immutable for
// the lifetime of every recording session created from them.
package config
