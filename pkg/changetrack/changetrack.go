// Package changetrack records the stored field values of an entity when it is
// loaded and reports later which fields differ from that capture.
package changetrack

import (
	"reflect"
)

type deferredValue struct{}

// Deferred marks a field whose value was not loaded. Entities return it from
// TrackedFields in place of the real value.
var Deferred any = deferredValue{}

// Entity is anything whose stored fields can be tracked.
type Entity interface {
	// Persisted reports whether the entity has an identity in storage.
	Persisted() bool
	// TrackedFields returns the storable fields keyed by name.
	TrackedFields() map[string]any
}

// Snapshot holds the field values of an entity at capture time.
// The zero Snapshot behaves as unsaved.
type Snapshot struct {
	saved  bool
	values map[string]any
}

// Take captures the current field values of e. An entity that is not yet
// persisted yields an unsaved snapshot.
func Take(e Entity) Snapshot {
	if e == nil || !e.Persisted() {
		return Snapshot{}
	}

	fields := e.TrackedFields()
	values := make(map[string]any, len(fields))
	for name, v := range fields {
		if v == Deferred {
			values[name] = Deferred
			continue
		}
		values[name] = deepCopy(v)
	}
	return Snapshot{saved: true, values: values}
}

// Unsaved returns true if the snapshot was taken of an entity without identity.
func (s Snapshot) Unsaved() bool {
	return !s.saved
}

// HasChanged returns true if field of e differs from the captured value.
// Unsaved snapshots and deferred fields never report a change.
func (s Snapshot) HasChanged(e Entity, field string) bool {
	if !s.saved {
		return false
	}
	prior, ok := s.values[field]
	if ok && prior == Deferred {
		return false
	}
	current, present := e.TrackedFields()[field]
	if present && current == Deferred {
		return false
	}
	if ok != present {
		return true
	}
	return !reflect.DeepEqual(prior, current)
}

// Changed returns the fields of e that differ from the capture, or nil for
// an unsaved snapshot.
func (s Snapshot) Changed(e Entity) []string {
	if !s.saved {
		return nil
	}
	current := e.TrackedFields()
	var out []string
	for field := range current {
		if s.HasChanged(e, field) {
			out = append(out, field)
		}
	}
	for field, prior := range s.values {
		if _, present := current[field]; !present && prior != Deferred {
			out = append(out, field)
		}
	}
	return out
}

// PriorValue returns the captured value of field.
// It returns false for unsaved snapshots, deferred fields and unknown fields.
func (s Snapshot) PriorValue(field string) (any, bool) {
	if !s.saved {
		return nil, false
	}
	v, ok := s.values[field]
	if !ok || v == Deferred {
		return nil, false
	}
	return v, true
}
