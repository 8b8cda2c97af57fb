package main

import (
	"fmt"
	"io"

	"buildnblocks.io/internal/persistence/indexdb"
	"buildnblocks.io/internal/sim/world"
	"buildnblocks.io/internal/transport/ws"
)

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw io.Writer, worldID string, m world.WorldMetrics, st ws.Stats, idx runtimeIndex) {
	fmt.Fprintf(rw, "# HELP bnb_world_clients Current number of connected clients.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_clients gauge\n")
	fmt.Fprintf(rw, "bnb_world_clients{world=%q} %d\n", worldID, m.Clients)

	fmt.Fprintf(rw, "# HELP bnb_world_avatars Current number of joined avatars.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_avatars gauge\n")
	fmt.Fprintf(rw, "bnb_world_avatars{world=%q} %d\n", worldID, m.Avatars)

	fmt.Fprintf(rw, "# HELP bnb_world_voxels Voxel count by kind.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_voxels gauge\n")
	fmt.Fprintf(rw, "bnb_world_voxels{world=%q,kind=%q} %d\n", worldID, "ground", m.GroundVoxels)
	fmt.Fprintf(rw, "bnb_world_voxels{world=%q,kind=%q} %d\n", worldID, "built", m.Voxels-m.GroundVoxels)

	open := 0
	if m.Vote.Open {
		open = 1
	}
	fmt.Fprintf(rw, "# HELP bnb_world_vote_open Whether a world-load vote is open.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_vote_open gauge\n")
	fmt.Fprintf(rw, "bnb_world_vote_open{world=%q} %d\n", worldID, open)

	fmt.Fprintf(rw, "# HELP bnb_world_vote_ballots Ballots in the open vote.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_vote_ballots gauge\n")
	fmt.Fprintf(rw, "bnb_world_vote_ballots{world=%q,choice=%q} %d\n", worldID, "yes", m.Vote.Yes)
	fmt.Fprintf(rw, "bnb_world_vote_ballots{world=%q,choice=%q} %d\n", worldID, "no", m.Vote.No)
	fmt.Fprintf(rw, "bnb_world_vote_ballots{world=%q,choice=%q} %d\n", worldID, "needed", m.Vote.Needed)

	fmt.Fprintf(rw, "# HELP bnb_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "bnb_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)

	fmt.Fprintf(rw, "# HELP bnb_world_queue_capacity Channel capacity.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_queue_capacity gauge\n")
	fmt.Fprintf(rw, "bnb_world_queue_capacity{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.InboxCapacity)

	fmt.Fprintf(rw, "# HELP bnb_world_events_total World event counters.\n")
	fmt.Fprintf(rw, "# TYPE bnb_world_events_total counter\n")
	fmt.Fprintf(rw, "bnb_world_events_total{world=%q,event=%q} %d\n", worldID, "message", m.MessagesTotal)
	fmt.Fprintf(rw, "bnb_world_events_total{world=%q,event=%q} %d\n", worldID, "client_dropped", m.DroppedClientsTotal)
	fmt.Fprintf(rw, "bnb_world_events_total{world=%q,event=%q} %d\n", worldID, "upload_rejected", m.RejectedUploadsTotal)
	fmt.Fprintf(rw, "bnb_world_events_total{world=%q,event=%q} %d\n", worldID, "world_loaded", m.WorldLoadsTotal)
	fmt.Fprintf(rw, "bnb_world_events_total{world=%q,event=%q} %d\n", worldID, "vote_expired", m.VotesExpiredTotal)

	fmt.Fprintf(rw, "# HELP bnb_ws_connections_active Open websocket connections.\n")
	fmt.Fprintf(rw, "# TYPE bnb_ws_connections_active gauge\n")
	fmt.Fprintf(rw, "bnb_ws_connections_active %d\n", st.ConnectionsActive)

	fmt.Fprintf(rw, "# HELP bnb_ws_events_total Websocket transport counters.\n")
	fmt.Fprintf(rw, "# TYPE bnb_ws_events_total counter\n")
	fmt.Fprintf(rw, "bnb_ws_events_total{event=%q} %d\n", "connection", st.ConnectionsTotal)
	fmt.Fprintf(rw, "bnb_ws_events_total{event=%q} %d\n", "origin_rejected", st.OriginRejected)
	fmt.Fprintf(rw, "bnb_ws_events_total{event=%q} %d\n", "rate_limited", st.RateLimited)
	fmt.Fprintf(rw, "bnb_ws_events_total{event=%q} %d\n", "bad_envelope", st.BadEnvelope)
	fmt.Fprintf(rw, "bnb_ws_events_total{event=%q} %d\n", "bad_payload", st.BadPayload)

	writeIndexMetrics(rw, idx)
}

func writeIndexMetrics(rw io.Writer, idx runtimeIndex) {
	switch x := idx.(type) {
	case *indexdb.SQLiteIndex:
		s := x.Stats()
		fmt.Fprintf(rw, "# HELP bnb_index_queue_depth Audit index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE bnb_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "bnb_index_queue_depth{backend=%q} %d\n", "sqlite", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP bnb_index_events_total Audit index counters.\n")
		fmt.Fprintf(rw, "# TYPE bnb_index_events_total counter\n")
		fmt.Fprintf(rw, "bnb_index_events_total{backend=%q,event=%q} %d\n", "sqlite", "written", s.AuditTotal)
		fmt.Fprintf(rw, "bnb_index_events_total{backend=%q,event=%q} %d\n", "sqlite", "dropped", s.DropAuditTotal)
		fmt.Fprintf(rw, "bnb_index_events_total{backend=%q,event=%q} %d\n", "sqlite", "write_failed", s.WriteFailTotal)
	case *indexdb.RemoteIndex:
		s := x.Stats()
		fmt.Fprintf(rw, "# HELP bnb_index_queue_depth Audit index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE bnb_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "bnb_index_queue_depth{backend=%q} %d\n", "remote", s.QueueDepth)
		fmt.Fprintf(rw, "# HELP bnb_index_events_total Audit index counters.\n")
		fmt.Fprintf(rw, "# TYPE bnb_index_events_total counter\n")
		fmt.Fprintf(rw, "bnb_index_events_total{backend=%q,event=%q} %d\n", "remote", "written", s.SentTotal)
		fmt.Fprintf(rw, "bnb_index_events_total{backend=%q,event=%q} %d\n", "remote", "dropped", s.QueueDroppedTotal+s.PendingDropTotal)
		fmt.Fprintf(rw, "bnb_index_events_total{backend=%q,event=%q} %d\n", "remote", "flush_failed", s.FlushFailTotal)
	}
}
