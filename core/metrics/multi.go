package metrics

import "errors"

// MultiSink fans out events to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDispense forwards the event to all sinks. Every sink is called even
// when one fails; the errors are joined.
func (m *MultiSink) RecordDispense(ev DispenseEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordDispense(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordOrder forwards order summaries to sinks implementing OrderRecorder.
func (m *MultiSink) RecordOrder(ev OrderEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(OrderRecorder); ok {
			if err := rec.RecordOrder(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordShelfHealth forwards liveness transitions.
func (m *MultiSink) RecordShelfHealth(ev ShelfHealthEvent) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ShelfHealthRecorder); ok {
			if err := rec.RecordShelfHealth(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
