// Package ingest is the reading intake pipeline: it validates and
// persists incoming measurements, then feeds them to the alert engine,
// the automatic cooling loop, the time-series mirror, and the live
// event stream.
package ingest
