package world

import (
	"errors"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/world/feature/governance/quorum"
	"buildnblocks.io/internal/sim/world/feature/session/presence"
	"buildnblocks.io/internal/sim/world/logic/coords"
)

const (
	msgVoteInProgress = "A vote is already in progress!"
	msgUploadTooLarge = "World upload is too large."
)

func (w *World) handleConnect(req ConnectRequest) {
	if req.ID == "" || req.Out == nil {
		return
	}
	if _, ok := w.clients[req.ID]; ok {
		w.logger.Printf("duplicate connection id %s ignored", req.ID)
		return
	}
	c := &clientState{Out: req.Out}
	w.clients[req.ID] = c

	players := map[string]protocol.AvatarPayload{}
	for id, a := range w.presence.SnapshotAll() {
		players[id] = avatarPayload(a)
	}
	w.sendTo(req.ID, w.encode(protocol.TypeInit, protocol.InitPayload{
		Blocks:  voxelPayloads(w.store.Snapshot()),
		Players: players,
	}))
}

func (w *World) handleDisconnect(id string) {
	if c, ok := w.clients[id]; ok {
		delete(w.clients, id)
		close(c.Out)
	}
	w.leavePresence(id)
}

func (w *World) leavePresence(id string) {
	a, ok := w.presence.Leave(id)
	if !ok {
		return
	}
	w.broadcastExcept(id, w.encode(protocol.TypePlayerLeave, protocol.PlayerLeavePayload{ID: id}))
	w.audit(AuditEntry{Actor: id, Action: AuditLeave, Name: a.Name})
}

func (w *World) handleMessage(m ClientMessage) {
	if _, ok := w.clients[m.ConnID]; !ok {
		return
	}
	w.counters.messages++

	switch msg := m.Msg.(type) {
	case protocol.JoinMsg:
		w.handleJoin(m.ConnID, msg)
	case protocol.MoveMsg:
		w.handleMove(m.ConnID, msg)
	case protocol.BuildMsg:
		w.handleBuild(m.ConnID, msg)
	case protocol.RemoveMsg:
		w.handleRemove(m.ConnID, msg)
	case protocol.RequestSaveMsg:
		w.sendTo(m.ConnID, w.encodeBlocks(protocol.TypeWorldData))
	case protocol.LoadWorldMsg:
		w.handleLoadWorld(m.ConnID, msg)
	case protocol.VoteMsg:
		w.handleVote(m.ConnID, msg)
	case protocol.ChatMsg:
		w.broadcastAll(w.encodeRaw(protocol.TypeChat, msg.Raw))
	case protocol.NameChangeMsg:
		w.handleNameChange(m.ConnID, msg)
	}
}

func (w *World) handleJoin(id string, m protocol.JoinMsg) {
	a := w.presence.Join(id, presence.Patch(m.Fields))
	w.broadcastExcept(id, w.encode(protocol.TypePlayerJoin, avatarPayload(a)))
	w.audit(AuditEntry{Actor: id, Action: AuditJoin, Name: a.Name})
}

func (w *World) handleMove(id string, m protocol.MoveMsg) {
	patch := presence.Patch(m.Fields)
	if patch.Empty() {
		return
	}
	applied, ok := w.presence.UpdatePosition(id, patch)
	if !ok {
		return
	}
	w.broadcastExcept(id, w.encode(protocol.TypePlayerUpdate, protocol.PlayerUpdatePayload{
		ID:           id,
		AvatarFields: protocol.AvatarFields(applied),
	}))
}

func (w *World) handleNameChange(id string, m protocol.NameChangeMsg) {
	name, ok := w.presence.Rename(id, m.Name)
	if !ok {
		return
	}
	w.broadcastExcept(id, w.encode(protocol.TypePlayerUpdate, protocol.PlayerUpdatePayload{
		ID:           id,
		AvatarFields: protocol.AvatarFields{Name: &name},
	}))
}

func (w *World) handleBuild(id string, m protocol.BuildMsg) {
	p := coords.Vec3i{X: m.X, Y: m.Y, Z: m.Z}
	if !w.cfg.Bounds.Contains(p) {
		return
	}
	if !w.store.AddVoxel(p, m.Color, false) {
		return
	}
	w.broadcastAll(w.encode(protocol.TypeBuild, protocol.BuildPayload{X: m.X, Y: m.Y, Z: m.Z, Color: m.Color}))
	w.auditVoxel(id, AuditBuild, p, m.Color)
}

func (w *World) handleRemove(id string, m protocol.RemoveMsg) {
	p := coords.Vec3i{X: m.X, Y: m.Y, Z: m.Z}
	if !w.cfg.Bounds.Contains(p) {
		return
	}
	if !w.store.RemoveVoxel(p) {
		return
	}
	w.broadcastAll(w.encode(protocol.TypeRemove, protocol.RemovePayload{X: m.X, Y: m.Y, Z: m.Z}))
	w.auditVoxel(id, AuditRemove, p, 0)
}

func (w *World) handleLoadWorld(id string, m protocol.LoadWorldMsg) {
	if len(m.Blocks) > w.cfg.MaxBlocksUpload {
		w.counters.rejectedUploads++
		w.logger.Printf("load-world from %s rejected: %d blocks > %d", id, len(m.Blocks), w.cfg.MaxBlocksUpload)
		w.sendVoteError(id, msgUploadTooLarge, protocol.ErrTooLarge)
		return
	}
	if w.quorum.Active() {
		w.sendVoteError(id, msgVoteInProgress, protocol.ErrConflict)
		return
	}

	eligible := w.presence.Count()
	tally, err := w.quorum.Open(id, eligible, voxelsFromPayloads(m.Candidates()), w.now())
	if errors.Is(err, quorum.ErrVoteInProgress) {
		w.sendVoteError(id, msgVoteInProgress, protocol.ErrConflict)
		return
	}
	w.broadcastAll(w.encode(protocol.TypeVoteStart, protocol.VoteStartPayload{
		Initiator:    w.presence.DisplayName(id),
		Needed:       tally.Needed,
		YesCount:     tally.Yes,
		TotalPlayers: eligible,
	}))
	w.audit(AuditEntry{Actor: id, Action: AuditVoteOpen, Yes: tally.Yes, Needed: tally.Needed})
	w.resolveVote()
}

func (w *World) handleVote(id string, m protocol.VoteMsg) {
	tally, err := w.quorum.Cast(id, m.Choice)
	if err != nil {
		return
	}
	w.broadcastAll(w.encode(protocol.TypeVoteUpdate, protocol.VoteUpdatePayload{
		Voter:    w.presence.DisplayName(id),
		YesCount: tally.Yes,
		NoCount:  tally.No,
		Needed:   tally.Needed,
	}))
	w.resolveVote()
}

// resolveVote installs the proposed world once the vote has passed. The
// replacement and the world-set snapshot happen without any other message
// in between.
func (w *World) resolveVote() {
	voxels, tally, ok := w.quorum.Resolve()
	if !ok {
		return
	}
	installed := w.store.ReplaceDestructible(voxels)
	w.counters.worldLoads++
	w.logger.Printf("world loaded: %d blocks (excluding ground)", installed)

	w.broadcastAll(w.encode(protocol.TypeVoteSuccess, protocol.VoteSuccessPayload{
		YesCount: tally.Yes,
		Needed:   tally.Needed,
	}))
	w.broadcastAll(w.encodeBlocks(protocol.TypeWorldSet))

	w.audit(AuditEntry{Actor: tally.Initiator, Action: AuditVotePass, Yes: tally.Yes, No: tally.No, Needed: tally.Needed})
	w.audit(AuditEntry{Actor: tally.Initiator, Action: AuditWorldSet, Voxels: w.store.Destructible()})
}

func (w *World) sendVoteError(id, message, code string) {
	w.sendTo(id, w.encode(protocol.TypeVoteError, protocol.VoteErrorPayload{Message: message, Code: code}))
}
