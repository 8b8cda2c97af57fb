package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	persistlog "buildnblocks.io/internal/persistence/log"
	"buildnblocks.io/internal/sim/world"
	"buildnblocks.io/internal/sim/world/terrain/store"
)

func TestParseAABB_Normalizes(t *testing.T) {
	min, max, err := parseAABB("5,0,-2:-1,3,4")
	if err != nil {
		t.Fatalf("parseAABB: %v", err)
	}
	if min != [3]int{-1, 0, -2} || max != [3]int{5, 3, 4} {
		t.Fatalf("got min=%v max=%v", min, max)
	}
	for _, bad := range []string{"", "1,2,3", "1,2:3,4,5", "a,b,c:1,2,3"} {
		if _, _, err := parseAABB(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestReadHistory_FiltersBoxActorAndTime(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewAuditJournal(dir)
	for _, e := range []world.AuditEntry{
		{Seq: 1, TimeMs: 10, Actor: "a", Action: world.AuditBuild, Pos: [3]int{1, 1, 1}},
		{Seq: 2, TimeMs: 20, Actor: "b", Action: world.AuditBuild, Pos: [3]int{2, 1, 1}},
		{Seq: 3, TimeMs: 30, Actor: "a", Action: world.AuditRemove, Pos: [3]int{50, 1, 1}},
		{Seq: 4, TimeMs: 40, Actor: "a", Action: world.AuditJoin},
		{Seq: 5, TimeMs: 50, Actor: "b", Action: world.AuditWorldSet, Voxels: []store.Voxel{{X: 100}, {X: 3, Y: 1, Z: 1}}},
	} {
		if err := l.WriteAudit(e); err != nil {
			t.Fatalf("WriteAudit: %v", err)
		}
	}
	_ = l.Close()

	box := historyFilter{Min: [3]int{0, 0, 0}, Max: [3]int{10, 10, 10}}
	got, err := readHistory(persistlog.AuditDir(dir), box)
	if err != nil {
		t.Fatalf("readHistory: %v", err)
	}
	if len(got) != 3 || got[0].Seq != 1 || got[1].Seq != 2 || got[2].Seq != 5 {
		t.Fatalf("box: got %+v", got)
	}
	if got[2].Voxels != nil {
		t.Fatalf("world-set voxels should be elided")
	}

	box.Actor = "b"
	box.SinceMs = 25
	got, err = readHistory(persistlog.AuditDir(dir), box)
	if err != nil {
		t.Fatalf("readHistory: %v", err)
	}
	if len(got) != 1 || got[0].Action != world.AuditWorldSet {
		t.Fatalf("actor+since: got %+v", got)
	}
}

func TestFetchState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/state" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"world_id":"world_1"}`))
	}))
	defer srv.Close()

	b, status, err := fetchState(srv.URL + "/")
	if err != nil || status != http.StatusOK || string(b) != `{"world_id":"world_1"}` {
		t.Fatalf("fetchState: got %q %d %v", b, status, err)
	}
}

func TestColorHex(t *testing.T) {
	if got := colorHex(world.AuditBuild, 0xff00); got != "#00ff00" {
		t.Fatalf("colorHex: got %q want %q", got, "#00ff00")
	}
	if got := colorHex(world.AuditRemove, 0xff00); got != "" {
		t.Fatalf("colorHex for remove: got %q", got)
	}
}
