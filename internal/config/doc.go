// Package config loads the relay configuration.
//
// Values are resolved in increasing order of precedence: built-in defaults,
// an optional YAML file, environment variables, and finally command-line
// flags applied by the caller. Validate reports every inconsistency of the
// resulting Config at once.
package config
