// Package config defines the configuration for shelfwatch.
//
// Configuration flows from three sources, in increasing precedence:
// built-in defaults, the optional .shelfwatch YAML file, and CLI flags.
// The resolved Config is passed through the application by value rather
// than held in global state.
package config
