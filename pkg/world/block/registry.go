package block

import (
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/atomic"
)

// ErrUnknownType is reported when a tag has no registered Block.
var ErrUnknownType = errors.New("unknown block type")

// Registry maps every Type to its shared Block record. A Registry is
// immutable after construction and safe for concurrent use without locks.
type Registry struct {
	table  [256]*Block
	byName map[string]*Block
	warned [256]atomic.Bool
	log    *slog.Logger
}

// NewRegistry builds a registry from defs. Air must be among them.
func NewRegistry(log *slog.Logger, defs []Block) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		byName: make(map[string]*Block, len(defs)),
		log:    log,
	}
	for i := range defs {
		b := defs[i]
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("register block: %w", err)
		}
		if r.table[b.Type] != nil {
			return nil, fmt.Errorf("register block %s: type %d already taken by %s", b.Name, b.Type, r.table[b.Type].Name)
		}
		if _, ok := r.byName[b.Name]; ok {
			return nil, fmt.Errorf("register block %s: duplicate name", b.Name)
		}
		b.Drops = append([]Drop(nil), b.Drops...)
		r.table[b.Type] = &b
		r.byName[b.Name] = &b
	}
	air := r.table[Air]
	if air == nil || air.Solid || air.Opaque || air.LightOpacity != 0 {
		return nil, errors.New("register block: air must be registered as a non-solid transparent block")
	}
	return r, nil
}

// Default returns a registry holding the built-in block table.
func Default(log *slog.Logger) *Registry {
	r, err := NewRegistry(log, Defaults())
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the Block for t. Unregistered tags resolve to Air and are
// reported once per tag.
func (r *Registry) Resolve(t Type) *Block {
	if b := r.table[t]; b != nil {
		return b
	}
	r.warnUnknown(t)
	return r.table[Air]
}

// Lookup returns the Block for t without falling back to Air.
func (r *Registry) Lookup(t Type) (*Block, bool) {
	b := r.table[t]
	return b, b != nil
}

// Known reports whether t is registered.
func (r *Registry) Known(t Type) bool {
	return r.table[t] != nil
}

// Sanitize returns t if it is registered and Air otherwise.
func (r *Registry) Sanitize(t Type) (Type, error) {
	if r.table[t] != nil {
		return t, nil
	}
	r.warnUnknown(t)
	return Air, fmt.Errorf("type %d: %w", t, ErrUnknownType)
}

// ByName finds a block by its registered name.
func (r *Registry) ByName(name string) (*Block, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// All returns the registered blocks ordered by Type.
func (r *Registry) All() []*Block {
	out := make([]*Block, 0, len(r.byName))
	for _, b := range r.table {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (r *Registry) Solid(t Type) bool     { return r.Resolve(t).Solid }
func (r *Registry) Opaque(t Type) bool    { return r.Resolve(t).Opaque }
func (r *Registry) Opacity(t Type) uint8  { return r.Resolve(t).LightOpacity }
func (r *Registry) Emission(t Type) uint8 { return r.Resolve(t).LightEmission }

func (r *Registry) warnUnknown(t Type) {
	if r.warned[t].CAS(false, true) {
		r.log.Warn("unknown block type, treating as air", "type", int(t))
	}
}
