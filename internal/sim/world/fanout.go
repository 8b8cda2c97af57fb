package world

import (
	"encoding/json"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/world/feature/governance/quorum"
	"buildnblocks.io/internal/sim/world/feature/session/presence"
	"buildnblocks.io/internal/sim/world/terrain/store"
)

// enqueue never blocks. A client whose queue is full is marked slow and
// dropped after the current message has been handled.
func (w *World) enqueue(id string, c *clientState, b []byte) {
	select {
	case c.Out <- b:
	default:
		w.slow = append(w.slow, id)
	}
}

func (w *World) broadcastAll(b []byte) {
	if b == nil {
		return
	}
	for id, c := range w.clients {
		w.enqueue(id, c, b)
	}
}

func (w *World) broadcastExcept(except string, b []byte) {
	if b == nil {
		return
	}
	for id, c := range w.clients {
		if id == except {
			continue
		}
		w.enqueue(id, c, b)
	}
}

func (w *World) sendTo(id string, b []byte) {
	if b == nil {
		return
	}
	if c := w.clients[id]; c != nil {
		w.enqueue(id, c, b)
	}
}

// flushSlow drops slow clients. Dropping broadcasts player-leave, which may
// mark further clients slow, so it loops until the list is empty.
func (w *World) flushSlow() {
	for len(w.slow) > 0 {
		id := w.slow[0]
		w.slow = w.slow[1:]
		c, ok := w.clients[id]
		if !ok {
			continue
		}
		w.counters.droppedClients++
		w.logger.Printf("dropping slow client %s (queue=%d)", id, cap(c.Out))
		delete(w.clients, id)
		close(c.Out)
		w.leavePresence(id)
	}
}

func (w *World) encode(typ string, data any) []byte {
	b, err := protocol.Encode(typ, data)
	if err != nil {
		w.logger.Printf("encode %s: %v", typ, err)
		return nil
	}
	return b
}

func (w *World) encodeRaw(typ string, data json.RawMessage) []byte {
	b, err := protocol.EncodeRaw(typ, data)
	if err != nil {
		w.logger.Printf("encode %s: %v", typ, err)
		return nil
	}
	return b
}

func (w *World) encodeBlocks(typ string) []byte {
	return w.encode(typ, protocol.BlocksPayload{Blocks: voxelPayloads(w.store.Snapshot())})
}

func (w *World) encodeVoteExpired(t quorum.Tally) []byte {
	return w.encode(protocol.TypeVoteExpired, protocol.VoteExpiredPayload{
		YesCount: t.Yes,
		NoCount:  t.No,
		Needed:   t.Needed,
	})
}

func voxelPayloads(vs []store.Voxel) []protocol.VoxelPayload {
	out := make([]protocol.VoxelPayload, 0, len(vs))
	for _, v := range vs {
		out = append(out, protocol.VoxelPayload{
			X:              v.X,
			Y:              v.Y,
			Z:              v.Z,
			Color:          v.Color,
			Indestructible: v.Indestructible,
		})
	}
	return out
}

func voxelsFromPayloads(ps []protocol.VoxelPayload) []store.Voxel {
	out := make([]store.Voxel, 0, len(ps))
	for _, p := range ps {
		out = append(out, store.Voxel{X: p.X, Y: p.Y, Z: p.Z, Color: p.Color})
	}
	return out
}

func avatarPayload(a presence.Avatar) protocol.AvatarPayload {
	return protocol.AvatarPayload{ID: a.ID, X: a.X, Y: a.Y, Z: a.Z, Yaw: a.Yaw, Name: a.Name}
}
