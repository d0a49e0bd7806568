package stoat

// IdentityFunc resolves the identity key of the read-model document an event
// targets. It must be pure and deterministic: two events with equal keys
// fold into the same document.
type IdentityFunc func(event any) string

// CreateFunc builds a new document from the first event folded under a key.
type CreateFunc func(event any) (any, error)

// ApplyFunc folds an event into an existing document and returns the updated
// document. Implementations may mutate and return the input or return a new
// value; the runtime threads the result to the next event in the group.
type ApplyFunc func(doc any, event any) (any, error)

// Definition describes how events fold into one read-model document type.
//
// A single-stream definition produces one document per stream, keyed by the
// stream ID and folded from that stream's events in stream order. A
// multi-stream definition routes events (raw or derived through fan-out) to
// independently keyed documents via per-event-type identity functions.
//
// Fold functions are bound explicitly per event type and resolved once at
// registration time; RegisterProjection rejects incomplete definitions with
// a ConfigurationError.
type Definition struct {
	name       string
	docType    string
	multi      bool
	identities map[string]IdentityFunc
	fanOuts    map[string]*FanOutRule
	creates    map[string]CreateFunc
	applies    map[string]ApplyFunc
}

func newDefinition(name, docType string, multi bool) *Definition {
	return &Definition{
		name:       name,
		docType:    docType,
		multi:      multi,
		identities: make(map[string]IdentityFunc),
		fanOuts:    make(map[string]*FanOutRule),
		creates:    make(map[string]CreateFunc),
		applies:    make(map[string]ApplyFunc),
	}
}

// NewSingleStreamProjection starts a definition whose document identity is
// the stream ID: one document per stream.
func NewSingleStreamProjection(name, docType string) *Definition {
	return newDefinition(name, docType, false)
}

// NewMultiStreamProjection starts a definition whose documents are keyed by
// identity functions, independently of stream identity.
func NewMultiStreamProjection(name, docType string) *Definition {
	return newDefinition(name, docType, true)
}

// Name returns the unique projection name.
func (d *Definition) Name() string {
	return d.name
}

// DocumentType returns the read-model document type this definition produces.
func (d *Definition) DocumentType() string {
	return d.docType
}

// MultiStream reports whether documents are keyed independently of streams.
func (d *Definition) MultiStream() bool {
	return d.multi
}

// Identity binds an identity function to an event type. Required for every
// event type a multi-stream definition creates or applies.
func (d *Definition) Identity(eventType string, fn IdentityFunc) *Definition {
	d.identities[eventType] = fn
	return d
}

// FanOut attaches an expansion rule to a source event type.
func (d *Definition) FanOut(sourceType string, mode FanOutMode, expand ExpandFunc) *Definition {
	d.fanOuts[sourceType] = &FanOutRule{
		sourceType: sourceType,
		mode:       mode,
		expand:     expand,
	}
	return d
}

// IncludeSource marks a fan-out source type so the raw event joins its
// derived events in the working set. The source type then needs its own
// identity and fold bindings.
func (d *Definition) IncludeSource(sourceType string) *Definition {
	if rule, ok := d.fanOuts[sourceType]; ok {
		rule.includeSource = true
	}
	return d
}

// Create binds the create fold for an event type: it builds the document
// when none exists yet under the resolved key.
func (d *Definition) Create(eventType string, fn CreateFunc) *Definition {
	d.creates[eventType] = fn
	return d
}

// Apply binds the apply fold for an event type: it updates an existing
// document under the resolved key.
func (d *Definition) Apply(eventType string, fn ApplyFunc) *Definition {
	d.applies[eventType] = fn
	return d
}

// foldsEventType reports whether the definition has any fold bound for the
// event type. Working-set events of other types are dropped.
func (d *Definition) foldsEventType(eventType string) bool {
	if _, ok := d.creates[eventType]; ok {
		return true
	}
	_, ok := d.applies[eventType]
	return ok
}

// interestedIn reports whether an appended event of this type triggers the
// definition, either directly or through a fan-out rule.
func (d *Definition) interestedIn(eventType string) bool {
	if _, ok := d.fanOuts[eventType]; ok {
		return true
	}
	return d.foldsEventType(eventType)
}

// validate checks the definition for completeness. Called by
// RegisterProjection so misconfiguration fails fast at startup.
func (d *Definition) validate() error {
	if d.name == "" {
		return NewConfigurationError(d.name, "projection name is required")
	}
	if d.docType == "" {
		return NewConfigurationError(d.name, "document type is required")
	}
	if len(d.creates) == 0 {
		return NewConfigurationError(d.name, "at least one create fold is required")
	}
	for eventType, fn := range d.creates {
		if fn == nil {
			return NewConfigurationError(d.name, "nil create fold for event type "+eventType)
		}
	}
	for eventType, fn := range d.applies {
		if fn == nil {
			return NewConfigurationError(d.name, "nil apply fold for event type "+eventType)
		}
	}

	if !d.multi {
		if len(d.fanOuts) > 0 {
			return NewConfigurationError(d.name, "fan-out rules are only valid on multi-stream projections")
		}
		if len(d.identities) > 0 {
			return NewConfigurationError(d.name, "identity functions are only valid on multi-stream projections; single-stream documents are keyed by stream ID")
		}
		return nil
	}

	for eventType := range d.creates {
		if d.identities[eventType] == nil {
			return NewConfigurationError(d.name, "no identity function for folded event type "+eventType)
		}
	}
	for eventType := range d.applies {
		if d.identities[eventType] == nil {
			return NewConfigurationError(d.name, "no identity function for folded event type "+eventType)
		}
	}
	for sourceType, rule := range d.fanOuts {
		if rule.expand == nil {
			return NewConfigurationError(d.name, "nil fan-out expansion for event type "+sourceType)
		}
		if rule.mode != FanOutBeforeGrouping {
			return NewConfigurationError(d.name, "unsupported fan-out mode "+rule.mode.String())
		}
		if rule.includeSource && d.identities[sourceType] == nil {
			return NewConfigurationError(d.name, "fan-out source "+sourceType+" is included but has no identity function")
		}
	}

	return nil
}
