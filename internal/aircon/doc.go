// Package aircon actuates air-conditioning units over infrared.
//
// Units have no network interface of their own: commands are executed
// by replaying IR codes through ESP32 transmitters on the MQTT bus, and
// unit status is whatever the platform last commanded. Every attempt is
// audited in the command log, and the hysteresis loop drives rooms in
// automatic mode.
package aircon
