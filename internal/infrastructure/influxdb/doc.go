// Package influxdb mirrors accepted sensor readings into InfluxDB v2.
//
// The mirror is optional and best-effort: when disabled or unreachable
// the rest of the platform runs unaffected, with SQLite holding the
// authoritative data. Writes go through the non-blocking batched
// WriteAPI; failures surface via an error callback rather than blocking
// the ingestion path.
package influxdb
