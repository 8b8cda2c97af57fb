package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Clients int `json:"clients"`
	Avatars int `json:"avatars"`

	Voxels       int `json:"voxels"`
	GroundVoxels int `json:"ground_voxels"`

	Vote VoteMetrics `json:"vote"`

	QueueDepths QueueDepths `json:"queue_depths"`

	MessagesTotal        uint64 `json:"messages_total"`
	DroppedClientsTotal  uint64 `json:"dropped_clients_total"`
	RejectedUploadsTotal uint64 `json:"rejected_uploads_total"`
	WorldLoadsTotal      uint64 `json:"world_loads_total"`
	VotesExpiredTotal    uint64 `json:"votes_expired_total"`
}

type VoteMetrics struct {
	Open   bool `json:"open"`
	Yes    int  `json:"yes"`
	No     int  `json:"no"`
	Needed int  `json:"needed"`
}

type QueueDepths struct {
	Inbox         int `json:"inbox"`
	InboxCapacity int `json:"inbox_capacity"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) publishMetrics() {
	total, ground := w.store.Count()
	m := WorldMetrics{
		Clients:      len(w.clients),
		Avatars:      w.presence.Count(),
		Voxels:       total,
		GroundVoxels: ground,
		QueueDepths: QueueDepths{
			Inbox:         len(w.inbox),
			InboxCapacity: cap(w.inbox),
		},
		MessagesTotal:        w.counters.messages,
		DroppedClientsTotal:  w.counters.droppedClients,
		RejectedUploadsTotal: w.counters.rejectedUploads,
		WorldLoadsTotal:      w.counters.worldLoads,
		VotesExpiredTotal:    w.counters.votesExpired,
	}
	if t, ok := w.quorum.Current(); ok {
		m.Vote = VoteMetrics{Open: true, Yes: t.Yes, No: t.No, Needed: t.Needed}
	}
	w.metrics.Store(m)
}
