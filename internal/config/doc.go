// Package config loads and validates the relay's YAML configuration.
// Secrets are never stored in the file itself; the config names the
// environment variables that hold them. Watch provides fsnotify-based hot
// reload for the settings that can change at runtime (log level).
package config
