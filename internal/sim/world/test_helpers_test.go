package world

import (
	"encoding/json"
	"testing"
	"time"

	"buildnblocks.io/internal/protocol"
	"buildnblocks.io/internal/sim/world/logic/coords"
)

func testConfig() Config {
	return Config{
		Bounds:          coords.Bounds{Min: -512, Max: 512},
		GroundMin:       -25,
		GroundMax:       24,
		GroundY:         0,
		GroundColor:     0xFFFFFF,
		NameMaxRunes:    24,
		MaxBlocksUpload: 100,
	}
}

func newTestWorld(t *testing.T, cfg Config) *World {
	t.Helper()
	w, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

type memAudit struct {
	entries []AuditEntry
}

func (m *memAudit) WriteAudit(e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) actions() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action)
	}
	return out
}

type fakeClient struct {
	id  string
	out chan []byte
}

// connect registers a client and consumes its init event.
func connect(t *testing.T, w *World, id string) *fakeClient {
	t.Helper()
	c := connectRaw(w, id, 256)
	if env := c.next(t); env.Type != protocol.TypeInit {
		t.Fatalf("%s: first event %q want init", id, env.Type)
	}
	return c
}

func connectRaw(w *World, id string, queue int) *fakeClient {
	c := &fakeClient{id: id, out: make(chan []byte, queue)}
	w.handleConnect(ConnectRequest{ID: id, Out: c.out})
	w.flushSlow()
	return c
}

func send(w *World, id string, msg protocol.Inbound) {
	w.handleMessage(ClientMessage{ConnID: id, Msg: msg})
	w.flushSlow()
}

func (c *fakeClient) next(t *testing.T) protocol.Envelope {
	t.Helper()
	select {
	case b, ok := <-c.out:
		if !ok {
			t.Fatalf("%s: queue closed", c.id)
		}
		env, err := protocol.DecodeEnvelope(b)
		if err != nil {
			t.Fatalf("%s: decode %s: %v", c.id, b, err)
		}
		return env
	default:
		t.Fatalf("%s: expected an event, queue empty", c.id)
	}
	return protocol.Envelope{}
}

func (c *fakeClient) expect(t *testing.T, typ string, payload any) {
	t.Helper()
	env := c.next(t)
	if env.Type != typ {
		t.Fatalf("%s: got event %q want %q (data=%s)", c.id, env.Type, typ, env.Data)
	}
	if payload != nil {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			t.Fatalf("%s: decode %s payload: %v", c.id, typ, err)
		}
	}
}

func (c *fakeClient) expectNone(t *testing.T) {
	t.Helper()
	select {
	case b, ok := <-c.out:
		if ok {
			t.Fatalf("%s: unexpected event %s", c.id, b)
		}
	default:
	}
}

func (c *fakeClient) expectClosed(t *testing.T) {
	t.Helper()
	for {
		select {
		case _, ok := <-c.out:
			if !ok {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: queue not closed", c.id)
		}
	}
}

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func rawBlocks(t *testing.T, js string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	if err := json.Unmarshal([]byte(js), &out); err != nil {
		t.Fatalf("rawBlocks: %v", err)
	}
	return out
}
