package presence

import (
	"sync"

	"buildnblocks.io/internal/sim/world/feature/session/lifecycle"
)

// Spawn defaults for fields a join request leaves out.
const (
	DefaultX   = 0.0
	DefaultY   = 2.5
	DefaultZ   = 0.0
	DefaultYaw = 0.0
)

type Avatar struct {
	ID   string  `json:"id,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Yaw  float64 `json:"yaw"`
	Name string  `json:"name"`
}

// Patch carries the fields a client actually sent; nil means "leave as is".
type Patch struct {
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	Z    *float64 `json:"z,omitempty"`
	Yaw  *float64 `json:"yaw,omitempty"`
	Name *string  `json:"name,omitempty"`
}

func (p Patch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Z == nil && p.Yaw == nil && p.Name == nil
}

// Registry maps connection ids to avatars. A connection may only ever touch
// its own entry; callers pass the transport-assigned id, never a client value.
type Registry struct {
	nameMax int

	mu      sync.RWMutex
	avatars map[string]Avatar
}

func New(nameMax int) *Registry {
	return &Registry{
		nameMax: nameMax,
		avatars: map[string]Avatar{},
	}
}

// Join creates (or replaces) the avatar for id, filling in defaults.
func (r *Registry) Join(id string, init Patch) Avatar {
	a := Avatar{
		ID:   id,
		X:    DefaultX,
		Y:    DefaultY,
		Z:    DefaultZ,
		Yaw:  DefaultYaw,
		Name: lifecycle.DefaultName,
	}
	r.apply(&a, init)

	r.mu.Lock()
	r.avatars[id] = a
	r.mu.Unlock()
	return a
}

// UpdatePosition applies the present fields and returns them as stored
// (names truncated). ok is false when id has no avatar.
func (r *Registry) UpdatePosition(id string, p Patch) (applied Patch, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.avatars[id]
	if !ok {
		return Patch{}, false
	}
	r.apply(&a, p)
	r.avatars[id] = a

	applied = p
	if p.Name != nil {
		name := a.Name
		applied.Name = &name
	}
	return applied, true
}

func (r *Registry) Rename(id, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.avatars[id]
	if !ok {
		return "", false
	}
	a.Name = lifecycle.RenameTarget(name, r.nameMax)
	r.avatars[id] = a
	return a.Name, true
}

func (r *Registry) Leave(id string) (Avatar, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.avatars[id]
	if ok {
		delete(r.avatars, id)
	}
	return a, ok
}

func (r *Registry) Get(id string) (Avatar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.avatars[id]
	return a, ok
}

// DisplayName returns the avatar's name, or the default for unknown ids.
func (r *Registry) DisplayName(id string) string {
	if a, ok := r.Get(id); ok {
		return a.Name
	}
	return lifecycle.DefaultName
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.avatars)
}

// SnapshotAll copies the registry. Avatars in the map omit their id (it is the key).
func (r *Registry) SnapshotAll() map[string]Avatar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Avatar, len(r.avatars))
	for id, a := range r.avatars {
		a.ID = ""
		out[id] = a
	}
	return out
}

func (r *Registry) apply(a *Avatar, p Patch) {
	if p.X != nil {
		a.X = *p.X
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.Z != nil {
		a.Z = *p.Z
	}
	if p.Yaw != nil {
		a.Yaw = *p.Yaw
	}
	if p.Name != nil {
		a.Name = lifecycle.TruncateName(*p.Name, r.nameMax)
	}
}
