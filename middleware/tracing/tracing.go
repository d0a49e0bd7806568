// Package tracing provides OpenTelemetry spans for stoat adapters.
//
// WrapAdapter decorates any adapters.Adapter so that every storage
// operation, including the transactions opened through it, produces a span:
//
//	tp := sdktrace.NewTracerProvider(...)
//	otel.SetTracerProvider(tp)
//
//	adapter := tracing.WrapAdapter(memory.NewAdapter())
//	store := stoat.New(adapter)
//
// Spans carry the stream ID, event counts, document type and the error when
// an operation fails. Because inline projections run inside the append's
// transaction, one SaveChanges shows up as a commit span with its append,
// read and upsert spans as siblings under the caller's span.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/weaselworks/go-stoat/adapters"
)

// TracerName is the instrumentation scope name.
const TracerName = "github.com/weaselworks/go-stoat"

var _ adapters.Adapter = (*Adapter)(nil)

// Adapter decorates an adapters.Adapter with OpenTelemetry spans.
type Adapter struct {
	inner  adapters.Adapter
	tracer trace.Tracer
}

// Option configures the tracing adapter.
type Option func(*Adapter)

// WithTracerProvider sets a custom TracerProvider; the global provider is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Adapter) {
		a.tracer = tp.Tracer(TracerName)
	}
}

// WrapAdapter decorates an adapter so every operation produces a span.
func WrapAdapter(inner adapters.Adapter, opts ...Option) *Adapter {
	a := &Adapter{
		inner:  inner,
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// BeginTx starts a transaction; operations on it are traced too.
func (a *Adapter) BeginTx(ctx context.Context) (adapters.Tx, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.tx.begin")
	inner, err := a.inner.BeginTx(ctx)
	a.end(span, err)
	if err != nil {
		return nil, err
	}
	return &tracedTx{inner: inner, tracer: a.tracer}, nil
}

// LoadEvents traces a committed-state event load.
func (a *Adapter) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.load_events",
		trace.WithAttributes(
			attribute.String("stoat.stream_id", streamID),
			attribute.Int64("stoat.from_version", fromVersion),
		))
	events, err := a.inner.LoadEvents(ctx, streamID, fromVersion)
	span.SetAttributes(attribute.Int("stoat.events_loaded", len(events)))
	a.end(span, err)
	return events, err
}

func (a *Adapter) GetStreamInfo(ctx context.Context, streamID string) (*adapters.StreamInfo, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.get_stream_info",
		trace.WithAttributes(attribute.String("stoat.stream_id", streamID)))
	info, err := a.inner.GetStreamInfo(ctx, streamID)
	a.end(span, err)
	return info, err
}

func (a *Adapter) ListStreams(ctx context.Context) ([]adapters.StreamInfo, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.list_streams")
	infos, err := a.inner.ListStreams(ctx)
	a.end(span, err)
	return infos, err
}

func (a *Adapter) GetLastPosition(ctx context.Context) (uint64, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.get_last_position")
	position, err := a.inner.GetLastPosition(ctx)
	a.end(span, err)
	return position, err
}

func (a *Adapter) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.get_document",
		trace.WithAttributes(
			attribute.String("stoat.document_type", docType),
			attribute.String("stoat.document_key", key),
		))
	data, err := a.inner.GetDocument(ctx, docType, key)
	a.end(span, err)
	return data, err
}

func (a *Adapter) ListDocuments(ctx context.Context, docType string) ([]adapters.DocumentRecord, error) {
	ctx, span := a.tracer.Start(ctx, "stoat.list_documents",
		trace.WithAttributes(attribute.String("stoat.document_type", docType)))
	records, err := a.inner.ListDocuments(ctx, docType)
	a.end(span, err)
	return records, err
}

func (a *Adapter) Initialize(ctx context.Context) error {
	ctx, span := a.tracer.Start(ctx, "stoat.initialize")
	err := a.inner.Initialize(ctx)
	a.end(span, err)
	return err
}

func (a *Adapter) Close() error {
	return a.inner.Close()
}

var _ adapters.Tx = (*tracedTx)(nil)

type tracedTx struct {
	inner  adapters.Tx
	tracer trace.Tracer
}

func (t *tracedTx) end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (t *tracedTx) AppendEvents(ctx context.Context, streamID string, events []adapters.EventRecord, expectedVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := t.tracer.Start(ctx, "stoat.tx.append_events",
		trace.WithAttributes(
			attribute.String("stoat.stream_id", streamID),
			attribute.Int("stoat.event_count", len(events)),
			attribute.Int64("stoat.expected_version", expectedVersion),
		))
	stored, err := t.inner.AppendEvents(ctx, streamID, events, expectedVersion)
	t.end(span, err)
	return stored, err
}

func (t *tracedTx) LoadEvents(ctx context.Context, streamID string, fromVersion int64) ([]adapters.StoredEvent, error) {
	ctx, span := t.tracer.Start(ctx, "stoat.tx.load_events",
		trace.WithAttributes(attribute.String("stoat.stream_id", streamID)))
	events, err := t.inner.LoadEvents(ctx, streamID, fromVersion)
	t.end(span, err)
	return events, err
}

func (t *tracedTx) GetDocument(ctx context.Context, docType, key string) ([]byte, error) {
	ctx, span := t.tracer.Start(ctx, "stoat.tx.get_document",
		trace.WithAttributes(
			attribute.String("stoat.document_type", docType),
			attribute.String("stoat.document_key", key),
		))
	data, err := t.inner.GetDocument(ctx, docType, key)
	t.end(span, err)
	return data, err
}

func (t *tracedTx) UpsertDocument(ctx context.Context, docType, key string, data []byte) error {
	ctx, span := t.tracer.Start(ctx, "stoat.tx.upsert_document",
		trace.WithAttributes(
			attribute.String("stoat.document_type", docType),
			attribute.String("stoat.document_key", key),
		))
	err := t.inner.UpsertDocument(ctx, docType, key, data)
	t.end(span, err)
	return err
}

func (t *tracedTx) Commit(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "stoat.tx.commit")
	err := t.inner.Commit(ctx)
	t.end(span, err)
	return err
}

func (t *tracedTx) Rollback(ctx context.Context) error {
	ctx, span := t.tracer.Start(ctx, "stoat.tx.rollback")
	err := t.inner.Rollback(ctx)
	t.end(span, err)
	return err
}
