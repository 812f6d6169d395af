// Package housekeeping runs the periodic background sweeps: sensor
// liveness, reading compaction and retention, alert retention, and
// critical alert escalation.
package housekeeping
