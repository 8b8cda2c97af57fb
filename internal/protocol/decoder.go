package protocol

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"buildnblocks.io/internal/sim/world/logic/coords"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://buildnblocks.io/schemas/"

// Decoder validates inbound frames against the embedded JSON Schemas and
// turns them into typed messages. It is safe for concurrent use.
type Decoder struct {
	envelope *jsonschema.Schema
	payloads map[string]*jsonschema.Schema
}

func NewDecoder() (*Decoder, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		f, err := schemaFS.Open("schemas/" + name)
		if err != nil {
			return nil, err
		}
		err = c.AddResource(schemaBaseURL+name, f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		names = append(names, name)
	}

	d := &Decoder{payloads: map[string]*jsonschema.Schema{}}
	for _, name := range names {
		s, err := c.Compile(schemaBaseURL + name)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		typ := strings.TrimSuffix(name, ".schema.json")
		if typ == "envelope" {
			d.envelope = s
			continue
		}
		d.payloads[typ] = s
	}
	if d.envelope == nil {
		return nil, fmt.Errorf("missing envelope schema")
	}
	return d, nil
}

// Decode parses one frame. Errors wrap ErrBadEnvelope, ErrUnknownType or ErrBadPayload.
func (d *Decoder) Decode(b []byte) (Inbound, error) {
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	if err := d.envelope.Validate(doc); err != nil {
		if obj, ok := doc.(map[string]any); ok {
			if typ, ok := obj["type"].(string); ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	env, err := DecodeEnvelope(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}

	if s, ok := d.payloads[env.Type]; ok {
		var payload any
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &payload); err != nil {
				return nil, fmt.Errorf("%s: %w: %v", env.Type, ErrBadPayload, err)
			}
		}
		if err := s.Validate(payload); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", env.Type, ErrBadPayload, err)
		}
	}
	return decodeTyped(env)
}

func decodeTyped(env Envelope) (Inbound, error) {
	switch env.Type {
	case TypeJoin:
		return JoinMsg{Fields: decodeAvatarFields(env.Data)}, nil
	case TypeMove:
		return MoveMsg{Fields: decodeAvatarFields(env.Data)}, nil
	case TypeBuild:
		var p struct {
			X, Y, Z float64
			Color   json.RawMessage `json:"color"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("build: %w: %v", ErrBadPayload, err)
		}
		x, y, z, err := exactXYZ(p.X, p.Y, p.Z)
		if err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
		return BuildMsg{X: x, Y: y, Z: z, Color: ColorOf(p.Color)}, nil
	case TypeRemove:
		var p struct{ X, Y, Z float64 }
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("remove: %w: %v", ErrBadPayload, err)
		}
		x, y, z, err := exactXYZ(p.X, p.Y, p.Z)
		if err != nil {
			return nil, fmt.Errorf("remove: %w", err)
		}
		return RemoveMsg{X: x, Y: y, Z: z}, nil
	case TypeRequestSave:
		return RequestSaveMsg{}, nil
	case TypeLoadWorld:
		var p struct {
			Blocks []json.RawMessage `json:"blocks"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("load-world: %w: %v", ErrBadPayload, err)
		}
		return LoadWorldMsg{Blocks: p.Blocks}, nil
	case TypeVote:
		var p struct {
			Choice bool `json:"choice"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("vote: %w: %v", ErrBadPayload, err)
		}
		return VoteMsg{Choice: p.Choice}, nil
	case TypeChat:
		return ChatMsg{Raw: append(json.RawMessage(nil), env.Data...)}, nil
	case TypeNameChange:
		var p struct {
			Name json.RawMessage `json:"name"`
		}
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("name-change: %w: %v", ErrBadPayload, err)
		}
		return NameChangeMsg{Name: nameText(p.Name)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func exactXYZ(fx, fy, fz float64) (x, y, z int, err error) {
	var ok [3]bool
	x, ok[0] = coords.ExactInt(fx)
	y, ok[1] = coords.ExactInt(fy)
	z, ok[2] = coords.ExactInt(fz)
	if !ok[0] || !ok[1] || !ok[2] {
		return 0, 0, 0, fmt.Errorf("%w: non-integer coordinate", ErrBadPayload)
	}
	return x, y, z, nil
}
