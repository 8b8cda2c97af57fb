package world

import (
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/world/feature/governance/quorum"
	"buildnblocks.io/internal/sim/world/feature/session/presence"
	"buildnblocks.io/internal/sim/world/terrain/store"
)

// Input is anything a transport feeds into the world. Every input for every
// connection travels through one queue, so a connection's connect, messages
// and disconnect are handled in the order they were sent.
type Input interface {
	worldInput()
}

// ConnectRequest registers a transport connection. Out is owned by the world
// from then on: it is closed when the client disconnects or is dropped.
// Resp, if set, is closed once the client is registered and init is queued.
type ConnectRequest struct {
	ID   string
	Out  chan []byte
	Resp chan struct{}
}

// ClientMessage is one decoded inbound event from a connection.
type ClientMessage struct {
	ConnID string
	Msg    protocol.Inbound
}

// DisconnectRequest removes a connection and its avatar.
type DisconnectRequest struct {
	ID string
}

func (ConnectRequest) worldInput()    {}
func (ClientMessage) worldInput()     {}
func (DisconnectRequest) worldInput() {}

// World owns the shared voxel world, presence and the load vote.
// Mutations happen only on the Run goroutine; store and presence may be read
// concurrently.
type World struct {
	cfg    Config
	logger *log.Logger
	now    func() time.Time

	store    *store.Store
	presence *presence.Registry
	quorum   *quorum.Coordinator

	clients map[string]*clientState
	slow    []string

	inbox    chan Input
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Optional (may be nil). Implemented in internal/persistence/*.
	auditLogger AuditLogger
	auditSeq    uint64

	metrics  atomic.Value
	counters counters
}

type clientState struct {
	Out chan []byte
}

type counters struct {
	messages        uint64
	droppedClients  uint64
	rejectedUploads uint64
	worldLoads      uint64
	votesExpired    uint64
}

func New(cfg Config, logger *log.Logger) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	w := &World{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		store:    store.New(cfg.Bounds),
		presence: presence.New(cfg.NameMaxRunes),
		quorum:   quorum.New(cfg.VoteTimeout),
		clients:  map[string]*clientState{},
		inbox:    make(chan Input, cfg.InboxQueue),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	n := w.store.InitializeGround(cfg.GroundMin, cfg.GroundMax, cfg.GroundY, cfg.GroundColor)
	w.logger.Printf("ground initialized: %d voxels", n)
	w.publishMetrics()
	return w, nil
}

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLogger = l }

func (w *World) Inbox() chan<- Input { return w.inbox }

// Done is closed once Run has returned.
func (w *World) Done() <-chan struct{} { return w.done }

// Store and Presence are exposed for read-only observers (admin, metrics).
func (w *World) Store() *store.Store          { return w.store }
func (w *World) Presence() *presence.Registry { return w.presence }
func (w *World) Config() Config               { return w.cfg }
