// Package watch keeps the configured watches and their latest state.
package watch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/flexifi/poolwatch/internal/metric"
	"github.com/flexifi/poolwatch/internal/model"
)

// ErrUnknownWatch is returned for names that were never registered.
var ErrUnknownWatch = errors.New("unknown watch")

// Info describes a registered watch.
type Info struct {
	Name     string        `json:"name"`
	Address  string        `json:"address"`
	Function string        `json:"function"`
	Metric   metric.Config `json:"-"`
	MaxValue float64       `json:"max_value"`
	Decimals int32         `json:"decimals"`
}

// Entry is a watch together with its latest state.
type Entry struct {
	Info
	State model.FetchState `json:"-"`
}

// Registry is a thread-safe set of watches indexed by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a watch in the Idle state. Names must be unique.
func (r *Registry) Register(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[info.Name]; ok {
		return fmt.Errorf("watch %q already registered", info.Name)
	}
	info.MaxValue = info.Metric.MaxValue
	info.Decimals = info.Metric.Decimals
	r.entries[info.Name] = &Entry{Info: info, State: model.IdleState()}
	r.order = append(r.order, info.Name)
	return nil
}

// Update stores the latest state for name and returns the previous phase.
func (r *Registry) Update(name string, st model.FetchState) (old model.Phase, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownWatch, name)
	}
	old = e.State.Phase
	e.State = st
	return old, nil
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// List returns copies of all entries in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, *r.entries[name])
	}
	return out
}

// Len returns the number of registered watches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
