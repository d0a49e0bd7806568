package stoat

import (
	"context"
	"fmt"
	"time"
)

// workItem is one event headed into a projection's grouping step: either a
// raw appended event or a derived event produced by a fan-out rule. The
// origin is always the stored event that put it into the working set.
type workItem struct {
	payload  any
	typeName string
	origin   StoredEvent
}

type workGroup struct {
	key   string
	items []workItem
}

// runInlineProjections folds the freshly appended events through every
// registered projection, staging the resulting documents on the session.
// Any error aborts the enclosing transaction.
func (s *Session) runInlineProjections(ctx context.Context, appended []appendedEvent) error {
	if len(appended) == 0 {
		return nil
	}

	for _, def := range s.store.registeredProjections() {
		items, err := s.buildWorkingSet(def, appended)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}
		for _, g := range groupWorkingSet(def, items) {
			if err := s.foldGroup(ctx, def, g); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildWorkingSet turns appended events into the projection's working set:
// fan-out sources are expanded before grouping, everything else passes
// through raw. Events no fold is bound for are dropped.
func (s *Session) buildWorkingSet(def *Definition, appended []appendedEvent) ([]workItem, error) {
	var items []workItem
	for _, ev := range appended {
		stored := storedEventFromAdapter(ev.stored)

		if rule, ok := def.fanOuts[stored.Type]; ok {
			derived, err := rule.Expand(ev.payload)
			if err != nil {
				s.store.metrics.RecordFanOut(def.name, stored.Type, 0)
				return nil, fmt.Errorf("%w: projection %q: fan-out of %s on stream %q: %v",
					ErrValidation, def.name, stored.Type, stored.StreamID, err)
			}
			s.store.metrics.RecordFanOut(def.name, stored.Type, len(derived))

			for _, d := range derived {
				typeName := TypeNameOf(d)
				if !def.foldsEventType(typeName) {
					continue
				}
				items = append(items, workItem{payload: d, typeName: typeName, origin: stored})
			}
			continue
		}

		if def.foldsEventType(stored.Type) {
			items = append(items, workItem{payload: ev.payload, typeName: stored.Type, origin: stored})
		}
	}
	return items, nil
}

// groupWorkingSet buckets work items by target document key. Groups keep
// first-touch order and items keep append order within a group, so folding
// is deterministic for a given event sequence.
func groupWorkingSet(def *Definition, items []workItem) []workGroup {
	index := make(map[string]int, len(items))
	var groups []workGroup

	for _, item := range items {
		var key string
		if def.multi {
			key = def.identities[item.typeName](item.payload)
		} else {
			key = item.origin.StreamID
		}

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, workGroup{key: key})
		}
		groups[i].items = append(groups[i].items, item)
	}
	return groups
}

// foldGroup folds one key's events into its document: the first event under
// a missing document runs the create fold, later events run apply. A create
// fold seeing an existing document is a no-op, keeping replays idempotent.
func (s *Session) foldGroup(ctx context.Context, def *Definition, g workGroup) error {
	doc, exists, err := s.lookupDocument(ctx, def.docType, g.key)
	if err != nil {
		return err
	}

	for _, item := range g.items {
		start := time.Now()
		var foldErr error

		if !exists {
			create, ok := def.creates[item.typeName]
			if !ok {
				foldErr = fmt.Errorf("event type %s has no create fold and no document exists under key %q", item.typeName, g.key)
			} else {
				doc, foldErr = runCreate(create, item.payload)
				if foldErr == nil {
					exists = true
				}
			}
		} else if apply, ok := def.applies[item.typeName]; ok {
			doc, foldErr = runApply(apply, doc, item.payload)
		}

		s.store.metrics.RecordFold(def.name, item.typeName, time.Since(start), foldErr)
		if foldErr != nil {
			return NewProjectionError(def.name, item.origin.StreamID, item.typeName, foldErr)
		}
	}

	s.stageDocument(def.docType, g.key, doc)
	return nil
}

// runCreate invokes a create fold, converting a panic into an error so one
// bad fold cannot take down the process; the transaction still rolls back.
func runCreate(fn CreateFunc, event any) (doc any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("create fold panicked: %v", r)
		}
	}()
	return fn(event)
}

// runApply invokes an apply fold with the same panic containment.
func runApply(fn ApplyFunc, doc any, event any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("apply fold panicked: %v", r)
		}
	}()
	return fn(doc, event)
}
