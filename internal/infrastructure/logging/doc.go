// Package logging provides structured logging for ThermoGuard Core.
//
// It wraps log/slog with service-wide default fields and configuration
// driven level and format selection.
package logging
