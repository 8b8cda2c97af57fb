package protocol

import (
	"encoding/json"
	"fmt"
)

const Version = "1.0"

// Client -> server events.
const (
	TypeJoin        = "join"
	TypeMove        = "move"
	TypeBuild       = "build"
	TypeRemove      = "remove"
	TypeRequestSave = "request-save"
	TypeLoadWorld   = "load-world"
	TypeVote        = "vote"
	TypeChat        = "chat"
	TypeNameChange  = "name-change"
)

// Server -> client events. build, remove and chat are echoed under their own names.
const (
	TypeInit         = "init"
	TypePlayerJoin   = "player-join"
	TypePlayerUpdate = "player-update"
	TypePlayerLeave  = "player-leave"
	TypeWorldData    = "world-data"
	TypeWorldSet     = "world-set"
	TypeVoteStart    = "vote-start"
	TypeVoteUpdate   = "vote-update"
	TypeVoteSuccess  = "vote-success"
	TypeVoteError    = "vote-error"
	TypeVoteExpired  = "vote-expired"
)

// Envelope is the frame carried by every websocket text message.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

// Encode marshals an outbound event.
func Encode(typ string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Data: raw})
}

// EncodeRaw wraps an already-encoded payload, e.g. a chat message relayed verbatim.
func EncodeRaw(typ string, data json.RawMessage) ([]byte, error) {
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal(Envelope{Type: typ, Data: data})
}
