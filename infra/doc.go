// Package infra holds the adapters behind the core interfaces: the MQTT
// shelf transport, metrics sinks, the SQLite store and Sentry monitoring.
package infra
