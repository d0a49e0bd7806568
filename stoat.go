// Package stoat is an event-sourced storage engine with inline projections.
//
// Events are appended to streams with optimistic concurrency control, and
// registered projections fold them into read-model documents inside the
// same backend transaction as the append. A reader therefore never sees
// events without the documents they imply, and a failed projection rolls
// the whole append back.
//
// Two projection shapes are supported. A single-stream projection keeps one
// document per stream, keyed by the stream ID and folded in stream order. A
// multi-stream projection routes events to independently keyed documents
// through per-event-type identity functions, optionally expanding a source
// event into many derived events first (fan-out), so one append can touch
// many documents.
//
// A minimal round trip:
//
//	store := stoat.New(memory.NewAdapter())
//	store.RegisterEvents(OrderPlaced{})
//	store.RegisterDocuments(OrderSummary{})
//
//	proj := stoat.NewSingleStreamProjection("order-summary", "OrderSummary").
//		Create("OrderPlaced", func(event any) (any, error) {
//			e := event.(OrderPlaced)
//			return OrderSummary{ID: e.OrderID, Total: e.Total}, nil
//		})
//	if err := store.RegisterProjection(proj); err != nil {
//		log.Fatal(err)
//	}
//
//	err := store.AppendEvents(ctx, orderID, []any{OrderPlaced{OrderID: orderID, Total: 42}})
//
// Storage backends plug in through the adapters.Adapter interface; the
// adapters/memory, adapters/sqlite and adapters/postgres packages provide
// ready implementations.
package stoat

// Version is the current library version.
const Version = "0.3.1"
