// Package strategy defines the decision contract a tournament entrant
// implements and the registry the coordinator discovers entrants through.
package strategy

import (
	"fmt"
	"sort"
	"time"

	"quantarena/internal/domain"
)

// Snapshot is the read-only market view handed to a strategy each day. Maps
// and slices are copies owned by the strategy; mutating them has no effect on
// the run.
type Snapshot struct {
	Date     time.Time
	Prices   map[string]float64      // current close per symbol
	History  map[string][]domain.Bar // trailing bars per symbol, oldest first
	Universe []string                // tradable symbols, sorted
	Cash     float64
}

// PortfolioView is the strategy's view of current holdings, symbol to shares.
type PortfolioView map[string]int64

// Strategy is the per-day decision unit. Init runs exactly once before the
// first day; Next runs once per day and returns the day's actions. A Strategy
// instance belongs to exactly one run.
type Strategy interface {
	Init() error
	Next(snap Snapshot, portfolio PortfolioView) []domain.Action
}

// Descriptor names a strategy and knows how to build a fresh instance, so
// every run gets isolated state.
type Descriptor struct {
	Name string
	New  func() Strategy
}

// Registry is a named set of strategy descriptors.
type Registry struct {
	byName map[string]Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Descriptor)}
}

// Register adds a descriptor. Empty names, nil constructors, and duplicate
// names are registration errors.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("strategy name must not be empty")
	}
	if d.New == nil {
		return fmt.Errorf("strategy %q has no constructor", d.Name)
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("strategy %q already registered", d.Name)
	}
	r.byName[d.Name] = d
	return nil
}

// Get looks up a descriptor by name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// All returns every descriptor sorted by name.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered names sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for name := range r.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// defaultRegistry holds the built-in strategies.
var defaultRegistry = NewRegistry()

// Register adds a descriptor to the default registry.
func Register(d Descriptor) error { return defaultRegistry.Register(d) }

// Default returns the registry holding the built-in strategies.
func Default() *Registry { return defaultRegistry }
