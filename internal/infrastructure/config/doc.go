// Package config loads and validates ThermoGuard Core configuration.
//
// Configuration is layered: hardcoded defaults, then a YAML file, then
// THERMOGUARD_* environment variable overrides. Load returns a fully
// validated Config or an error describing every problem found.
package config
