// Package database provides the SQLite connection and schema migration
// machinery for ThermoGuard Core.
//
// SQLite is the system of record for rooms, sensors, readings, alerts,
// and command logs. The connection is opened with WAL mode and foreign
// keys enabled, and restricted to a single writer connection as SQLite
// requires. Schema migrations are embedded into the binary and applied
// in version order at startup.
package database
