// Package datacenter holds the facility topology: data centers and the
// monitored rooms inside them.
//
// Rooms carry the climate setpoints that the alert engine's thresholds
// and the hysteresis control loop are computed against, plus the
// operation mode that decides whether cooling is driven automatically
// or only by explicit operator commands.
package datacenter
