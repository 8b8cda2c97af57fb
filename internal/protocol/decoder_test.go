package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder()
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	return d
}

func decode(t *testing.T, d *Decoder, frame string) Inbound {
	t.Helper()
	m, err := d.Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode(%s): %v", frame, err)
	}
	return m
}

func TestDecode_Build(t *testing.T) {
	d := newTestDecoder(t)
	m := decode(t, d, `{"type":"build","data":{"x":1,"y":-2,"z":3,"color":16711680}}`)
	b, ok := m.(BuildMsg)
	if !ok {
		t.Fatalf("got %T want BuildMsg", m)
	}
	if b != (BuildMsg{X: 1, Y: -2, Z: 3, Color: 0xff0000}) {
		t.Fatalf("BuildMsg: got %+v", b)
	}
}

func TestDecode_BuildColorCoercion(t *testing.T) {
	d := newTestDecoder(t)
	for _, color := range []string{`"red"`, `1.5`, `-1`, `16777216`, `null`, `true`} {
		m := decode(t, d, `{"type":"build","data":{"x":0,"y":1,"z":0,"color":`+color+`}}`)
		if got := m.(BuildMsg).Color; got != DefaultColor {
			t.Fatalf("color %s: got %#x want %#x", color, got, DefaultColor)
		}
	}
	m := decode(t, d, `{"type":"build","data":{"x":0,"y":1,"z":0}}`)
	if got := m.(BuildMsg).Color; got != DefaultColor {
		t.Fatalf("missing color: got %#x", got)
	}
	m = decode(t, d, `{"type":"build","data":{"x":0,"y":1,"z":0,"color":0}}`)
	if got := m.(BuildMsg).Color; got != 0 {
		t.Fatalf("black must survive: got %#x", got)
	}
}

func TestDecode_RejectsNonIntegerCoordinates(t *testing.T) {
	d := newTestDecoder(t)
	frames := []string{
		`{"type":"build","data":{"x":1.5,"y":1,"z":1}}`,
		`{"type":"build","data":{"x":"1","y":1,"z":1}}`,
		`{"type":"build","data":{"x":1,"y":1}}`,
		`{"type":"build"}`,
		`{"type":"remove","data":{"x":1,"y":null,"z":1}}`,
		`{"type":"remove","data":[1,2,3]}`,
		`{"type":"build","data":{"x":1e12,"y":1,"z":1}}`,
	}
	for _, f := range frames {
		_, err := d.Decode([]byte(f))
		if !errors.Is(err, ErrBadPayload) {
			t.Fatalf("Decode(%s): err=%v want ErrBadPayload", f, err)
		}
	}
}

func TestDecode_EnvelopeErrors(t *testing.T) {
	d := newTestDecoder(t)
	if _, err := d.Decode([]byte(`not json`)); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("garbage: err=%v", err)
	}
	if _, err := d.Decode([]byte(`{"data":{}}`)); !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("missing type: err=%v", err)
	}
	if _, err := d.Decode([]byte(`{"type":"teleport"}`)); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown type: err=%v", err)
	}
	if _, err := d.Decode([]byte(`{"type":"player-join","data":{}}`)); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("server-only event from client: err=%v", err)
	}
}

func TestDecode_MovePerFieldLeniency(t *testing.T) {
	d := newTestDecoder(t)
	m := decode(t, d, `{"type":"move","data":{"x":"abc","y":3,"z":null,"yaw":1.25,"name":7}}`)
	f := m.(MoveMsg).Fields
	if f.X != nil || f.Z != nil || f.Name != nil {
		t.Fatalf("wrong-typed fields should be dropped: %+v", f)
	}
	if f.Y == nil || *f.Y != 3 || f.Yaw == nil || *f.Yaw != 1.25 {
		t.Fatalf("valid fields lost: %+v", f)
	}

	m = decode(t, d, `{"type":"move"}`)
	if f := m.(MoveMsg).Fields; f != (AvatarFields{}) {
		t.Fatalf("empty move: %+v", f)
	}
	if _, err := d.Decode([]byte(`{"type":"move","data":"north"}`)); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("non-object move: err=%v", err)
	}
}

func TestDecode_JoinName(t *testing.T) {
	d := newTestDecoder(t)
	m := decode(t, d, `{"type":"join","data":{"name":"alice","x":4}}`)
	f := m.(JoinMsg).Fields
	if f.Name == nil || *f.Name != "alice" || f.X == nil || *f.X != 4 || f.Y != nil {
		t.Fatalf("join fields: %+v", f)
	}
}

func TestDecode_Vote(t *testing.T) {
	d := newTestDecoder(t)
	if m := decode(t, d, `{"type":"vote","data":{"choice":false}}`); m.(VoteMsg).Choice {
		t.Fatalf("choice false decoded as true")
	}
	for _, f := range []string{
		`{"type":"vote","data":{"choice":"yes"}}`,
		`{"type":"vote","data":{"choice":1}}`,
		`{"type":"vote","data":{}}`,
	} {
		if _, err := d.Decode([]byte(f)); !errors.Is(err, ErrBadPayload) {
			t.Fatalf("Decode(%s): err=%v want ErrBadPayload", f, err)
		}
	}
}

func TestDecode_LoadWorldCandidates(t *testing.T) {
	d := newTestDecoder(t)
	m := decode(t, d, `{"type":"load-world","data":{"blocks":[
		{"x":1,"y":1,"z":1,"color":255},
		{"x":1.5,"y":-1.5,"z":2.4,"color":"blue"},
		{"x":"1","y":1,"z":1},
		{"y":1,"z":1},
		7,
		null
	]}}`)
	lw := m.(LoadWorldMsg)
	if len(lw.Blocks) != 6 {
		t.Fatalf("raw count: got %d want 6", len(lw.Blocks))
	}
	got := lw.Candidates()
	want := []VoxelPayload{
		{X: 1, Y: 1, Z: 1, Color: 255},
		{X: 2, Y: -1, Z: 2, Color: DefaultColor},
	}
	if len(got) != len(want) {
		t.Fatalf("candidates: got %+v want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate %d: got %+v want %+v", i, got[i], want[i])
		}
	}

	if _, err := d.Decode([]byte(`{"type":"load-world","data":{"blocks":{}}}`)); !errors.Is(err, ErrBadPayload) {
		t.Fatalf("blocks must be an array: err=%v", err)
	}
}

func TestDecode_ChatVerbatimAndNameChange(t *testing.T) {
	d := newTestDecoder(t)
	m := decode(t, d, `{"type":"chat","data":{"name":"a","text":"hi","extra":[1,2]}}`)
	var back map[string]any
	if err := json.Unmarshal(m.(ChatMsg).Raw, &back); err != nil {
		t.Fatalf("chat raw: %v", err)
	}
	if back["text"] != "hi" || back["extra"] == nil {
		t.Fatalf("chat payload altered: %v", back)
	}

	if got := decode(t, d, `{"type":"name-change","data":{"name":"bob"}}`).(NameChangeMsg).Name; got != "bob" {
		t.Fatalf("name-change: got %q", got)
	}
	for in, want := range map[string]string{
		`42`:      "42",
		`-1.5`:    "-1.5",
		`true`:    "true",
		`0`:       "",
		`false`:   "",
		`null`:    "",
		`{"a":1}`: "",
		`[1,2]`:   "",
	} {
		frame := `{"type":"name-change","data":{"name":` + in + `}}`
		if got := decode(t, d, frame).(NameChangeMsg).Name; got != want {
			t.Fatalf("name-change %s: got %q want %q", in, got, want)
		}
	}
	if _, ok := decode(t, d, `{"type":"request-save"}`).(RequestSaveMsg); !ok {
		t.Fatalf("request-save not decoded")
	}
}

func TestEncode_PlayerUpdateOnlyChangedFields(t *testing.T) {
	y := 4.0
	b, err := Encode(TypePlayerUpdate, PlayerUpdatePayload{ID: "c1", AvatarFields: AvatarFields{Y: &y}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"type":"player-update","data":{"id":"c1","y":4}}`
	if string(b) != want {
		t.Fatalf("Encode: got %s want %s", b, want)
	}
}

func TestEncodeRaw_EmptyBecomesNull(t *testing.T) {
	b, err := EncodeRaw(TypeChat, nil)
	if err != nil {
		t.Fatalf("EncodeRaw: %v", err)
	}
	if string(b) != `{"type":"chat","data":null}` {
		t.Fatalf("EncodeRaw: got %s", b)
	}
}
