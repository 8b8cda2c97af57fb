package world

import (
	"context"
	"time"
)

func (w *World) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.HousekeepingEvery)
	defer ticker.Stop()
	defer close(w.done)
	defer w.closeClients()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case in := <-w.inbox:
			w.handleInput(in)
		case <-ticker.C:
			w.housekeeping(w.now())
		}
		w.flushSlow()
		w.publishMetrics()
	}
}

func (w *World) handleInput(in Input) {
	switch in := in.(type) {
	case ConnectRequest:
		w.handleConnect(in)
		if in.Resp != nil {
			close(in.Resp)
		}
	case ClientMessage:
		w.handleMessage(in)
	case DisconnectRequest:
		w.handleDisconnect(in.ID)
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

func (w *World) housekeeping(now time.Time) {
	tally, ok := w.quorum.Expire(now)
	if !ok {
		return
	}
	w.counters.votesExpired++
	w.logger.Printf("vote expired: yes=%d no=%d needed=%d", tally.Yes, tally.No, tally.Needed)
	w.broadcastAll(w.encodeVoteExpired(tally))
	w.audit(AuditEntry{
		Actor:  tally.Initiator,
		Action: AuditVoteExpire,
		Yes:    tally.Yes,
		No:     tally.No,
		Needed: tally.Needed,
	})
}

func (w *World) closeClients() {
	for id, c := range w.clients {
		close(c.Out)
		delete(w.clients, id)
	}
}
