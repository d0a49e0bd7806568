package stoat

import "fmt"

// FanOutMode governs when a fan-out rule expands its source event.
type FanOutMode int

const (
	// FanOutBeforeGrouping expands the source event before identity
	// resolution, so each derived event is routed to its own target
	// document. This is the only supported mode.
	FanOutBeforeGrouping FanOutMode = iota
)

// String returns the mode name.
func (m FanOutMode) String() string {
	if m == FanOutBeforeGrouping {
		return "before-grouping"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// ExpandFunc derives zero or more events from one source event. It must be
// pure and deterministic: same input, same output, no I/O. Malformed input
// is reported by returning an error, which the runtime wraps as a
// ValidationError and uses to roll back the enclosing transaction.
type ExpandFunc func(event any) ([]any, error)

// FanOutRule expands one source event type into derived events prior to
// grouping. At most one rule per source event type per projection.
type FanOutRule struct {
	sourceType    string
	mode          FanOutMode
	expand        ExpandFunc
	includeSource bool
}

// SourceType returns the event type this rule expands.
func (r *FanOutRule) SourceType() string {
	return r.sourceType
}

// Mode returns the rule's fan-out mode.
func (r *FanOutRule) Mode() FanOutMode {
	return r.mode
}

// IncludesSource reports whether the source event itself joins the derived
// events in the working set.
func (r *FanOutRule) IncludesSource() bool {
	return r.includeSource
}

// Expand runs the rule against one source event. When IncludesSource is set
// the source event precedes its derived events in the returned sequence.
func (r *FanOutRule) Expand(event any) ([]any, error) {
	derived, err := r.expand(event)
	if err != nil {
		return nil, err
	}

	if !r.includeSource {
		return derived, nil
	}
	out := make([]any, 0, len(derived)+1)
	out = append(out, event)
	out = append(out, derived...)
	return out, nil
}
