package stoat

import "context"

// QuerySession is a read-only view over committed state. It never opens a
// write transaction and never observes in-flight sessions, so it is safe to
// hold across requests and share between goroutines.
type QuerySession struct {
	store *DocumentStore
}

// QuerySession returns a read-only session over the store.
func (ds *DocumentStore) QuerySession() *QuerySession {
	return &QuerySession{store: ds}
}

// LoadDocument returns the committed document under key, or ErrNotFound.
func (q *QuerySession) LoadDocument(ctx context.Context, docType, key string) (any, error) {
	return q.store.LoadDocument(ctx, docType, key)
}

// QueryDocuments returns committed documents of a type matching predicate.
func (q *QuerySession) QueryDocuments(ctx context.Context, docType string, predicate func(doc any) bool) ([]any, error) {
	return q.store.QueryDocuments(ctx, docType, predicate)
}

// LoadEvents returns a stream's committed events.
func (q *QuerySession) LoadEvents(ctx context.Context, streamID string) ([]Event, error) {
	return q.store.LoadEvents(ctx, streamID)
}

// GetStreamInfo returns metadata about a stream.
func (q *QuerySession) GetStreamInfo(ctx context.Context, streamID string) (*StreamInfo, error) {
	return q.store.GetStreamInfo(ctx, streamID)
}
