package world

import (
	"errors"

	"buildnblocks.io/internal/sim/world/logic/coords"
	"buildnblocks.io/internal/sim/world/terrain/store"
)

// Audit actions.
const (
	AuditBuild      = "BUILD"
	AuditRemove     = "REMOVE"
	AuditWorldSet   = "WORLD_SET"
	AuditVoteOpen   = "VOTE_OPEN"
	AuditVotePass   = "VOTE_PASS"
	AuditVoteExpire = "VOTE_EXPIRE"
	AuditJoin       = "JOIN"
	AuditLeave      = "LEAVE"
)

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// MultiAudit writes every entry to each logger in order and joins their errors.
type MultiAudit []AuditLogger

func (m MultiAudit) WriteAudit(entry AuditEntry) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.WriteAudit(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type AuditEntry struct {
	Seq    uint64 `json:"seq"`
	TimeMs int64  `json:"ts_ms"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	Color  uint32 `json:"color"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason,omitempty"`

	// WORLD_SET carries the destructible voxels that were installed.
	Voxels []store.Voxel `json:"voxels,omitempty"`

	// Vote tallies for VOTE_* entries.
	Yes    int `json:"yes,omitempty"`
	No     int `json:"no,omitempty"`
	Needed int `json:"needed,omitempty"`
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger == nil {
		return
	}
	w.auditSeq++
	e.Seq = w.auditSeq
	e.TimeMs = w.now().UnixMilli()
	if err := w.auditLogger.WriteAudit(e); err != nil {
		w.logger.Printf("audit %s: %v", e.Action, err)
	}
}

func (w *World) auditVoxel(actor, action string, p coords.Vec3i, color uint32) {
	w.audit(AuditEntry{
		Actor:  actor,
		Action: action,
		Pos:    [3]int{p.X, p.Y, p.Z},
		Color:  color,
	})
}

// ApplyAudit replays one journal entry onto s. It reports whether the store changed.
// Entries that do not touch voxels are ignored.
func ApplyAudit(s *store.Store, e AuditEntry) bool {
	p := coords.Vec3i{X: e.Pos[0], Y: e.Pos[1], Z: e.Pos[2]}
	switch e.Action {
	case AuditBuild:
		return s.AddVoxel(p, e.Color, false)
	case AuditRemove:
		return s.RemoveVoxel(p)
	case AuditWorldSet:
		s.ReplaceDestructible(e.Voxels)
		return true
	default:
		return false
	}
}
