package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"buildnblocks.io/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:3001/v1/ws", "ws url")
		name     = flag.String("name", "bot", "display name")
		interval = flag.Duration("interval", time.Second, "time between actions")
		duration = flag.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
		vote     = flag.String("vote", "yes", "answer to world-load votes: yes, no or none")
		load     = flag.String("load", "", "world-data JSON file to propose with load-world after init")
		seed     = flag.Int64("seed", 0, "random seed (0 uses the clock)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	b := newBot(conn, logger, *name, *vote, rand.New(rand.NewSource(*seed)))
	if err := b.join(); err != nil {
		logger.Fatalf("send join: %v", err)
	}
	if *load != "" {
		raw, err := os.ReadFile(*load)
		if err != nil {
			logger.Fatalf("read %s: %v", *load, err)
		}
		if err := b.proposeWorld(raw); err != nil {
			logger.Fatalf("send load-world: %v", err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	events := make(chan protocol.Envelope, 64)
	go func() {
		defer close(events)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				logger.Printf("read: %v", err)
				return
			}
			env, err := protocol.DecodeEnvelope(msg)
			if err != nil {
				continue
			}
			events <- env
		}
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for i := 0; ; {
		select {
		case <-stop:
			b.close()
			return
		case <-deadline:
			b.close()
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			if err := b.handle(env); err != nil {
				logger.Printf("handle %s: %v", env.Type, err)
			}
		case <-ticker.C:
			if err := b.step(i); err != nil {
				logger.Printf("step: %v", err)
				return
			}
			i++
		}
	}
}

// bot is driven from a single goroutine; gorilla connections allow one writer.
type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	name   string
	vote   string
	rng    *rand.Rand

	x, y, z float64
	yaw     float64
	built   [][3]int
}

func newBot(conn *websocket.Conn, logger *log.Logger, name, vote string, rng *rand.Rand) *bot {
	return &bot{conn: conn, logger: logger, name: name, vote: vote, rng: rng, y: 2.5}
}

func (b *bot) send(typ string, data any) error {
	msg, err := protocol.Encode(typ, data)
	if err != nil {
		return err
	}
	_ = b.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return b.conn.WriteMessage(websocket.TextMessage, msg)
}

func (b *bot) join() error {
	return b.send(protocol.TypeJoin, protocol.AvatarFields{X: &b.x, Y: &b.y, Z: &b.z, Yaw: &b.yaw, Name: &b.name})
}

func (b *bot) proposeWorld(raw []byte) error {
	blocks, err := protocol.DecodeBlocks(raw)
	if err != nil {
		return fmt.Errorf("decode world-data: %w", err)
	}
	b.logger.Printf("proposing world with %d blocks", len(blocks))
	return b.send(protocol.TypeLoadWorld, protocol.BlocksPayload{Blocks: blocks})
}

// step performs one scripted action: walk, build, chat or tidy up.
func (b *bot) step(i int) error {
	switch i % 4 {
	case 0, 2:
		b.x += float64(b.rng.Intn(5) - 2)
		b.z += float64(b.rng.Intn(5) - 2)
		b.yaw = b.rng.Float64() * 6.283
		return b.send(protocol.TypeMove, protocol.AvatarFields{X: &b.x, Y: &b.y, Z: &b.z, Yaw: &b.yaw})
	case 1:
		p := [3]int{int(b.x) + b.rng.Intn(3) - 1, 1 + b.rng.Intn(3), int(b.z) + b.rng.Intn(3) - 1}
		b.built = append(b.built, p)
		return b.send(protocol.TypeBuild, protocol.BuildPayload{X: p[0], Y: p[1], Z: p[2], Color: uint32(b.rng.Intn(0x1000000))})
	default:
		if len(b.built) > 8 {
			p := b.built[0]
			b.built = b.built[1:]
			return b.send(protocol.TypeRemove, protocol.RemovePayload{X: p[0], Y: p[1], Z: p[2]})
		}
		return b.send(protocol.TypeChat, protocol.ChatPayload{Name: b.name, Text: fmt.Sprintf("step %d at %.0f,%.0f", i, b.x, b.z)})
	}
}

func (b *bot) handle(env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeInit:
		var p protocol.InitPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		b.logger.Printf("init blocks=%d players=%d", len(p.Blocks), len(p.Players))
	case protocol.TypeVoteStart:
		var p protocol.VoteStartPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return err
		}
		b.logger.Printf("vote started by %s needed=%d of %d", p.Initiator, p.Needed, p.TotalPlayers)
		if b.vote == "yes" || b.vote == "no" {
			return b.send(protocol.TypeVote, struct {
				Choice bool `json:"choice"`
			}{Choice: b.vote == "yes"})
		}
	case protocol.TypeVoteSuccess, protocol.TypeVoteExpired, protocol.TypeVoteError:
		b.logger.Printf("%s %s", env.Type, env.Data)
	case protocol.TypeWorldSet:
		blocks, err := protocol.DecodeBlocks(env.Data)
		if err != nil {
			return err
		}
		b.built = b.built[:0]
		b.logger.Printf("world replaced: %d blocks", len(blocks))
	case protocol.TypePlayerJoin, protocol.TypePlayerLeave:
		b.logger.Printf("%s %s", env.Type, env.Data)
	}
	return nil
}

func (b *bot) close() {
	_ = b.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
}
