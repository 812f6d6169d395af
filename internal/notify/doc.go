// Package notify fans live platform events out to connected dashboards
// and the MQTT event mirror.
package notify
