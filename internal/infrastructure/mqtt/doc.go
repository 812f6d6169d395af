// Package mqtt provides the MQTT client used to talk to ESP32 IR
// transmitters and to mirror platform events onto the broker.
//
// The client wraps paho.mqtt.golang with subscription tracking (restored
// automatically after reconnect), bounded publishes, panic-recovering
// message handlers, and a Last Will and Testament on
// thermoguard/system/status so consumers can tell a crash from a
// graceful shutdown. Topic construction lives in Topics so the Go side
// and the transmitter firmware never drift apart.
package mqtt
