// Package sensor manages the ESP32 probe fleet and its measurements.
//
// It covers sensor registration and liveness (heartbeats, the stale
// sweep's offline detection), raw reading storage, and the retention
// pipeline that compacts day-old readings into hourly aggregates before
// pruning.
package sensor
