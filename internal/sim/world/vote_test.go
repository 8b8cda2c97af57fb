package world

import (
	"testing"
	"time"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/world/logic/coords"
)

func joinAll(t *testing.T, w *World, ids ...string) []*fakeClient {
	t.Helper()
	cs := make([]*fakeClient, 0, len(ids))
	for _, id := range ids {
		cs = append(cs, connect(t, w, id))
	}
	for _, c := range cs {
		send(w, c.id, protocol.JoinMsg{Fields: protocol.AvatarFields{Name: str("p-" + c.id)}})
	}
	for _, c := range cs {
		for range cs[1:] {
			c.expect(t, protocol.TypePlayerJoin, nil)
		}
	}
	return cs
}

func TestVote_FourPlayersSecondYesLoadsWorld(t *testing.T) {
	w := newTestWorld(t, testConfig())
	audit := &memAudit{}
	w.SetAuditLogger(audit)
	cs := joinAll(t, w, "a", "b", "c", "d")

	send(w, "a", protocol.BuildMsg{X: 40, Y: 5, Z: 40})
	for _, c := range cs {
		c.expect(t, protocol.TypeBuild, nil)
	}

	send(w, "a", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[
		{"x":1,"y":1,"z":1,"color":255},
		{"x":0,"y":0,"z":0,"color":1},
		{"x":2,"y":1,"z":2}
	]`)})
	for _, c := range cs {
		var vs protocol.VoteStartPayload
		c.expect(t, protocol.TypeVoteStart, &vs)
		want := protocol.VoteStartPayload{Initiator: "p-a", Needed: 2, YesCount: 1, TotalPlayers: 4}
		if vs != want {
			t.Fatalf("%s vote-start: got %+v want %+v", c.id, vs, want)
		}
	}

	send(w, "b", protocol.VoteMsg{Choice: true})
	for _, c := range cs {
		var vu protocol.VoteUpdatePayload
		c.expect(t, protocol.TypeVoteUpdate, &vu)
		if vu != (protocol.VoteUpdatePayload{Voter: "p-b", YesCount: 2, NoCount: 0, Needed: 2}) {
			t.Fatalf("%s vote-update: got %+v", c.id, vu)
		}
		var ok protocol.VoteSuccessPayload
		c.expect(t, protocol.TypeVoteSuccess, &ok)
		if ok != (protocol.VoteSuccessPayload{YesCount: 2, Needed: 2}) {
			t.Fatalf("%s vote-success: got %+v", c.id, ok)
		}
		var set protocol.BlocksPayload
		c.expect(t, protocol.TypeWorldSet, &set)
		if len(set.Blocks) != 2502 {
			t.Fatalf("%s world-set: got %d blocks want 2502", c.id, len(set.Blocks))
		}
	}

	if _, ok := w.store.Get(coords.Vec3i{X: 40, Y: 5, Z: 40}); ok {
		t.Fatalf("pre-vote build survived the load")
	}
	if v, _ := w.store.Get(coords.Vec3i{X: 0, Y: 0, Z: 0}); !v.Indestructible || v.Color != 0xFFFFFF {
		t.Fatalf("ground overwritten by upload: %+v", v)
	}
	if v, _ := w.store.Get(coords.Vec3i{X: 2, Y: 1, Z: 2}); v.Color != protocol.DefaultColor {
		t.Fatalf("missing color should default to white: %+v", v)
	}

	// The vote is over; a late ballot changes nothing.
	send(w, "c", protocol.VoteMsg{Choice: true})
	for _, c := range cs {
		c.expectNone(t)
	}

	want := []string{AuditJoin, AuditJoin, AuditJoin, AuditJoin, AuditBuild, AuditVoteOpen, AuditVotePass, AuditWorldSet}
	got := audit.actions()
	if len(got) != len(want) {
		t.Fatalf("audit actions: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("audit actions: got %v want %v", got, want)
		}
	}
	if n := len(audit.entries[len(audit.entries)-1].Voxels); n != 2 {
		t.Fatalf("WORLD_SET voxels: got %d want 2", n)
	}
}

func TestVote_LoneProposerSucceedsImmediately(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cs := joinAll(t, w, "solo")
	c := cs[0]

	send(w, "solo", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[{"x":0,"y":1,"z":0}]`)})
	var vs protocol.VoteStartPayload
	c.expect(t, protocol.TypeVoteStart, &vs)
	if vs.Needed != 1 || vs.TotalPlayers != 1 {
		t.Fatalf("vote-start: got %+v", vs)
	}
	c.expect(t, protocol.TypeVoteSuccess, nil)
	c.expect(t, protocol.TypeWorldSet, nil)
	if w.quorum.Active() {
		t.Fatalf("vote should be closed")
	}
}

func TestVote_SecondProposalRejectedToRequesterOnly(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cs := joinAll(t, w, "a", "b", "c")
	send(w, "a", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[]`)})
	for _, c := range cs {
		c.expect(t, protocol.TypeVoteStart, nil)
	}

	send(w, "b", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[{"x":1,"y":1,"z":1}]`)})
	var ve protocol.VoteErrorPayload
	cs[1].expect(t, protocol.TypeVoteError, &ve)
	if ve.Code != protocol.ErrConflict || ve.Message == "" {
		t.Fatalf("vote-error: got %+v", ve)
	}
	cs[0].expectNone(t)
	cs[2].expectNone(t)

	tally, ok := w.quorum.Current()
	if !ok || tally.Initiator != "a" || tally.Yes != 1 || tally.Needed != 2 {
		t.Fatalf("active vote disturbed: %+v ok=%v", tally, ok)
	}
}

func TestVote_UploadCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBlocksUpload = 2
	w := newTestWorld(t, cfg)
	cs := joinAll(t, w, "a", "b")

	send(w, "a", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[1,2,3]`)})
	var ve protocol.VoteErrorPayload
	cs[0].expect(t, protocol.TypeVoteError, &ve)
	if ve.Code != protocol.ErrTooLarge {
		t.Fatalf("vote-error code: got %q want %q", ve.Code, protocol.ErrTooLarge)
	}
	cs[1].expectNone(t)
	if w.quorum.Active() {
		t.Fatalf("oversized upload must not open a vote")
	}
}

func TestVote_IgnoredWhenIdle(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cs := joinAll(t, w, "a", "b")
	send(w, "a", protocol.VoteMsg{Choice: true})
	cs[0].expectNone(t)
	cs[1].expectNone(t)
}

func TestVote_BallotSurvivesDisconnect(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cs := joinAll(t, w, "a", "b", "c", "d", "e", "f")
	send(w, "a", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[]`)}) // needed 3
	send(w, "b", protocol.VoteMsg{Choice: true})
	w.handleDisconnect("b")
	w.flushSlow()

	for _, c := range cs[2:] {
		c.expect(t, protocol.TypeVoteStart, nil)
		c.expect(t, protocol.TypeVoteUpdate, nil)
		c.expect(t, protocol.TypePlayerLeave, nil)
	}

	send(w, "c", protocol.VoteMsg{Choice: true})
	var vu protocol.VoteUpdatePayload
	cs[2].expect(t, protocol.TypeVoteUpdate, &vu)
	if vu.YesCount != 3 {
		t.Fatalf("yes count after disconnect: got %d want 3", vu.YesCount)
	}
	cs[2].expect(t, protocol.TypeVoteSuccess, nil)
}

func TestVote_ChangeOfMindLastWriteWins(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cs := joinAll(t, w, "a", "b", "c", "d", "e")
	send(w, "a", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[]`)}) // needed 3
	cs[0].expect(t, protocol.TypeVoteStart, nil)

	send(w, "b", protocol.VoteMsg{Choice: true})
	send(w, "b", protocol.VoteMsg{Choice: false})
	cs[0].expect(t, protocol.TypeVoteUpdate, nil)
	var vu protocol.VoteUpdatePayload
	cs[0].expect(t, protocol.TypeVoteUpdate, &vu)
	if vu.YesCount != 1 || vu.NoCount != 1 {
		t.Fatalf("tally after flip: %+v", vu)
	}
	if !w.quorum.Active() {
		t.Fatalf("vote closed early")
	}
}

func TestVote_ExpiresWhenTimeoutConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.VoteTimeout = time.Minute
	w := newTestWorld(t, cfg)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	cs := joinAll(t, w, "a", "b", "c")
	send(w, "a", protocol.LoadWorldMsg{Blocks: rawBlocks(t, `[{"x":1,"y":1,"z":1}]`)})
	for _, c := range cs {
		c.expect(t, protocol.TypeVoteStart, nil)
	}

	w.housekeeping(now.Add(30 * time.Second))
	cs[0].expectNone(t)

	w.housekeeping(now.Add(time.Minute))
	for _, c := range cs {
		var ve protocol.VoteExpiredPayload
		c.expect(t, protocol.TypeVoteExpired, &ve)
		if ve.YesCount != 1 || ve.Needed != 2 {
			t.Fatalf("vote-expired: got %+v", ve)
		}
	}
	if w.quorum.Active() {
		t.Fatalf("vote should be closed after expiry")
	}
	if total, _ := w.store.Count(); total != 2500 {
		t.Fatalf("expired vote must not change the world: total=%d", total)
	}
}
