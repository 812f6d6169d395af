// Package alert turns readings that cross room thresholds into
// operator-facing alerts.
//
// The engine applies a setpoint-relative ladder (critical high, warning
// high, warning low, high humidity) and deduplicates repeats of the
// same condition behind a per-(room, type) cooldown window that ends
// when the alert is acknowledged. Critical alerts left unacknowledged
// too long are escalated by the housekeeping sweep.
package alert
