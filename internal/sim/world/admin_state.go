package world

import "buildnblocks.io/internal/sim/world/feature/session/presence"

// AdminState is the operator view served on the loopback admin endpoint.
type AdminState struct {
	Metrics WorldMetrics               `json:"metrics"`
	Digest  string                     `json:"digest"`
	Players map[string]presence.Avatar `json:"players"`
}

// AdminState reads the concurrently-safe parts of the world; it may be
// called from any goroutine.
func (w *World) AdminState() AdminState {
	return AdminState{
		Metrics: w.Metrics(),
		Digest:  w.store.Digest(),
		Players: w.presence.SnapshotAll(),
	}
}
