package protocol

import (
	"encoding/json"
	"math"
	"strconv"

	"buildnblocks.io/internal/sim/world/logic/coords"
)

// DefaultColor replaces colors that are missing or not an integer in [0, 0xFFFFFF].
const DefaultColor uint32 = 0xFFFFFF

// Inbound is one decoded client event.
type Inbound interface {
	EventType() string
}

// AvatarFields holds the avatar fields a client actually sent with the right type.
type AvatarFields struct {
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
	Z    *float64 `json:"z,omitempty"`
	Yaw  *float64 `json:"yaw,omitempty"`
	Name *string  `json:"name,omitempty"`
}

type JoinMsg struct {
	Fields AvatarFields
}

type MoveMsg struct {
	Fields AvatarFields
}

type BuildMsg struct {
	X, Y, Z int
	Color   uint32
}

type RemoveMsg struct {
	X, Y, Z int
}

type RequestSaveMsg struct{}

// LoadWorldMsg keeps the raw entries so the upload ceiling can be checked
// before anything is decoded.
type LoadWorldMsg struct {
	Blocks []json.RawMessage
}

type VoteMsg struct {
	Choice bool
}

// ChatMsg is relayed verbatim.
type ChatMsg struct {
	Raw json.RawMessage
}

type NameChangeMsg struct {
	Name string
}

func (JoinMsg) EventType() string        { return TypeJoin }
func (MoveMsg) EventType() string        { return TypeMove }
func (BuildMsg) EventType() string       { return TypeBuild }
func (RemoveMsg) EventType() string      { return TypeRemove }
func (RequestSaveMsg) EventType() string { return TypeRequestSave }
func (LoadWorldMsg) EventType() string   { return TypeLoadWorld }
func (VoteMsg) EventType() string        { return TypeVote }
func (ChatMsg) EventType() string        { return TypeChat }
func (NameChangeMsg) EventType() string  { return TypeNameChange }

// Candidates converts the uploaded entries into voxels. Entries without finite
// numeric x/y/z are skipped; coordinates are rounded half-up. Bounds and
// collisions are left to the store.
func (m LoadWorldMsg) Candidates() []VoxelPayload {
	out := make([]VoxelPayload, 0, len(m.Blocks))
	for _, raw := range m.Blocks {
		var e struct {
			X     *float64        `json:"x"`
			Y     *float64        `json:"y"`
			Z     *float64        `json:"z"`
			Color json.RawMessage `json:"color"`
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		if e.X == nil || e.Y == nil || e.Z == nil {
			continue
		}
		x, okx := coords.RoundHalfUp(*e.X)
		y, oky := coords.RoundHalfUp(*e.Y)
		z, okz := coords.RoundHalfUp(*e.Z)
		if !okx || !oky || !okz {
			continue
		}
		out = append(out, VoxelPayload{X: x, Y: y, Z: z, Color: ColorOf(e.Color)})
	}
	return out
}

// ColorOf coerces a raw JSON color value.
func ColorOf(raw json.RawMessage) uint32 {
	if len(raw) == 0 || string(raw) == "null" {
		return DefaultColor
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return DefaultColor
	}
	if f != math.Trunc(f) || f < 0 || f > float64(DefaultColor) {
		return DefaultColor
	}
	return uint32(f)
}

// nameText renders a name-change value as text. Strings pass through, non-zero
// numbers and true are printed, and every other value (false, 0, null, objects,
// arrays) becomes "" so the registry falls back to the default name.
func nameText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch v := v.(type) {
	case string:
		return v
	case float64:
		if v == 0 {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
	}
	return ""
}

// decodeAvatarFields keeps every field whose JSON type matches and drops the rest.
func decodeAvatarFields(data json.RawMessage) AvatarFields {
	var out AvatarFields
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return out
	}
	num := func(key string) *float64 {
		raw, ok := m[key]
		if !ok {
			return nil
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || string(raw) == "null" {
			return nil
		}
		return &f
	}
	out.X = num("x")
	out.Y = num("y")
	out.Z = num("z")
	out.Yaw = num("yaw")
	if raw, ok := m["name"]; ok && string(raw) != "null" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out.Name = &s
		}
	}
	return out
}
