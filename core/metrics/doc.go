// Package metrics defines the sinks the dispense engine reports to.
//
// MetricsSink is the mandatory interface. Optional recorder interfaces
// (OrderRecorder, ShelfHealthRecorder) are detected with type assertions so
// a sink only implements what it can store. Concrete sinks live in
// infra/metrics and register themselves in the sink registry.
package metrics
