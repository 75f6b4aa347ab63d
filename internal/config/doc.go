// Package config loads and validates throttleq's settings from defaults, an
// optional YAML file and THROTTLEQ_-prefixed environment variables.
// Environment variables take precedence over the file, which takes
// precedence over the defaults.
package config
