package stoat

import "time"

// StoreMetrics receives measurements from the store and the inline
// projection runtime. The middleware/metrics package provides a Prometheus
// implementation; the default is a no-op.
type StoreMetrics interface {
	// RecordAppend is called once per stream appended by a saved unit of
	// work, whether it succeeded or failed. The duration covers the whole
	// save, including inline projections.
	RecordAppend(streamID string, events int, duration time.Duration, err error)

	// RecordFanOut is called per fan-out expansion with the number of
	// derived events produced.
	RecordFanOut(projection, sourceType string, derived int)

	// RecordFold is called per create/apply fold invocation.
	RecordFold(projection, eventType string, duration time.Duration, err error)

	// RecordDocumentWrite is called per document upserted by the runtime.
	RecordDocumentWrite(docType string)
}

type noopMetrics struct{}

func (noopMetrics) RecordAppend(streamID string, events int, duration time.Duration, err error) {}
func (noopMetrics) RecordFanOut(projection, sourceType string, derived int)                     {}
func (noopMetrics) RecordFold(projection, eventType string, duration time.Duration, err error)  {}
func (noopMetrics) RecordDocumentWrite(docType string)                                          {}
