package ws

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/tuning"
	"buildnblocks.io/internal/sim/world"
	"buildnblocks.io/internal/sim/world/feature/session/lifecycle"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Options struct {
	MaxMessageBytes int64
	ClientQueue     int
	RateLimitPerSec float64
	RateLimitBurst  int
	AllowedOrigins  []string
}

func OptionsFromTuning(t tuning.Tuning) Options {
	return Options{
		MaxMessageBytes: t.Transport.MaxMessageBytes,
		ClientQueue:     t.ClientQueue,
		RateLimitPerSec: t.Transport.RateLimitPerSec,
		RateLimitBurst:  t.Transport.RateLimitBurst,
		AllowedOrigins:  t.Transport.AllowedOrigins,
	}
}

type Stats struct {
	ConnectionsTotal  uint64 `json:"connections_total"`
	ConnectionsActive int64  `json:"connections_active"`
	OriginRejected    uint64 `json:"origin_rejected_total"`
	RateLimited       uint64 `json:"rate_limited_total"`
	BadEnvelope       uint64 `json:"bad_envelope_total"`
	BadPayload        uint64 `json:"bad_payload_total"`
}

type Server struct {
	world   *world.World
	log     *log.Logger
	decoder *protocol.Decoder
	opts    Options

	upgrader websocket.Upgrader

	connectionsTotal  atomic.Uint64
	connectionsActive atomic.Int64
	originRejected    atomic.Uint64
	rateLimited       atomic.Uint64
	badEnvelope       atomic.Uint64
	badPayload        atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger, opts Options) (*Server, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 8 << 20
	}
	if opts.ClientQueue <= 0 {
		opts.ClientQueue = 256
	}
	if opts.RateLimitPerSec > 0 && opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 1
	}
	dec, err := protocol.NewDecoder()
	if err != nil {
		return nil, err
	}
	policy, invalid := newOriginPolicy(opts.AllowedOrigins)
	for _, o := range invalid {
		logger.Printf("ignoring invalid origin in configuration: %q", o)
	}

	s := &Server{
		world:   w,
		log:     logger,
		decoder: dec,
		opts:    opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:    64 * 1024,
		WriteBufferSize:   64 * 1024,
		EnableCompression: true,
		CheckOrigin: func(r *http.Request) bool {
			if policy.allow(r) {
				return true
			}
			s.originRejected.Add(1)
			s.log.Printf("blocked websocket from disallowed origin %q", r.Header.Get("Origin"))
			return false
		},
	}
	return s, nil
}

func (s *Server) Stats() Stats {
	return Stats{
		ConnectionsTotal:  s.connectionsTotal.Load(),
		ConnectionsActive: s.connectionsActive.Load(),
		OriginRejected:    s.originRejected.Load(),
		RateLimited:       s.rateLimited.Load(),
		BadEnvelope:       s.badEnvelope.Load(),
		BadPayload:        s.badPayload.Load(),
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(rw, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadLimit(s.opts.MaxMessageBytes)

		id := lifecycle.NewConnID()
		out := make(chan []byte, s.opts.ClientQueue)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		respCh := make(chan struct{})
		select {
		case s.world.Inbox() <- world.ConnectRequest{ID: id, Out: out, Resp: respCh}:
		case <-s.world.Done():
			return
		}
		select {
		case <-respCh:
		case <-s.world.Done():
			return
		}
		s.connectionsTotal.Add(1)
		s.connectionsActive.Add(1)
		defer s.connectionsActive.Add(-1)

		// Writer goroutine.
		go func() {
			s.writePump(ctx, conn, out)
			cancel()
			_ = conn.Close()
		}()

		// Reader loop.
		s.readPump(ctx, conn, id)
		cancel()

		// Cleanup.
		select {
		case s.world.Inbox() <- world.DisconnectRequest{ID: id}:
		case <-s.world.Done():
		}
	}
}

func (s *Server) readPump(ctx context.Context, conn *websocket.Conn, id string) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	limit := rate.Inf
	if s.opts.RateLimitPerSec > 0 {
		limit = rate.Limit(s.opts.RateLimitPerSec)
	}
	limiter := rate.NewLimiter(limit, s.opts.RateLimitBurst)
	throttled := false

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.logReadError(id, err)
			return
		}
		if !limiter.Allow() {
			s.rateLimited.Add(1)
			if !throttled {
				throttled = true
				s.log.Printf("client %s: %s: dropping frames over %g/s", id, protocol.ErrRateLimit, s.opts.RateLimitPerSec)
			}
			continue
		}
		m, err := s.decoder.Decode(msg)
		if err != nil {
			switch protocol.CodeOf(err) {
			case protocol.ErrBadRequest:
				s.badPayload.Add(1)
			default:
				s.badEnvelope.Add(1)
			}
			continue
		}
		select {
		case s.world.Inbox() <- world.ClientMessage{ConnID: id, Msg: m}:
		case <-ctx.Done():
			return
		case <-s.world.Done():
			return
		}
	}
}

func (s *Server) writePump(ctx context.Context, conn *websocket.Conn, out <-chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Closed by the world: dropped as slow, or shutting down.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "dropped"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) logReadError(id string, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		s.log.Printf("client %s: message exceeded %d bytes", id, s.opts.MaxMessageBytes)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
	default:
		s.log.Printf("client %s: read: %v", id, err)
	}
}
