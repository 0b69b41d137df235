package eventlog

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Descriptor describes one registered event type: its type string and a
// decoder from a raw payload into the statically-typed Go struct that
// carries it. This reproduces, in Go, the "typed make/decode/is triple"
// the source's generic event-schema constructor returns (§9 Design Notes).
type Descriptor struct {
	Type   EventType
	decode func(payload map[string]any) (any, error)
}

// Is reports whether ev was constructed with this descriptor's type.
func (d Descriptor) Is(ev Event) bool {
	return ev.Type == d.Type
}

// Decode parses ev's payload into the descriptor's typed struct. It returns
// an error (never panics) if the payload doesn't match.
func (d Descriptor) Decode(ev Event) (any, error) {
	return d.decode(ev.Payload)
}

var (
	registryMu sync.RWMutex
	registry   = map[EventType]Descriptor{}
)

// Register adds a descriptor to the process-wide registry. Call this from
// an init() in the package that owns the event type (see internal/llmloop
// for the reserved "iterate:*" namespaces).
func Register[T any](t EventType) Descriptor {
	d := Descriptor{
		Type: t,
		decode: func(payload map[string]any) (any, error) {
			raw, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("eventlog: re-marshal payload for %s: %w", t, err)
			}
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, fmt.Errorf("eventlog: decode payload for %s: %w", t, err)
			}
			return v, nil
		},
	}
	registryMu.Lock()
	registry[t] = d
	registryMu.Unlock()
	return d
}

// Lookup returns the registered descriptor for an event type, if any.
func Lookup(t EventType) (Descriptor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[t]
	return d, ok
}
