package protocol

import "encoding/json"

type VoxelPayload struct {
	X              int    `json:"x"`
	Y              int    `json:"y"`
	Z              int    `json:"z"`
	Color          uint32 `json:"color"`
	Indestructible bool   `json:"indestructible"`
}

type AvatarPayload struct {
	ID   string  `json:"id,omitempty"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	Yaw  float64 `json:"yaw"`
	Name string  `json:"name"`
}

// init (server -> client, once per connection)
type InitPayload struct {
	Blocks  []VoxelPayload           `json:"blocks"`
	Players map[string]AvatarPayload `json:"players"`
}

// world-data and world-set
type BlocksPayload struct {
	Blocks []VoxelPayload `json:"blocks"`
}

type BuildPayload struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
	Color uint32 `json:"color"`
}

type RemovePayload struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// PlayerUpdatePayload carries only the fields that changed.
type PlayerUpdatePayload struct {
	ID string `json:"id"`
	AvatarFields
}

type PlayerLeavePayload struct {
	ID string `json:"id"`
}

type VoteStartPayload struct {
	Initiator    string `json:"initiator"`
	Needed       int    `json:"needed"`
	YesCount     int    `json:"yesCount"`
	TotalPlayers int    `json:"totalPlayers"`
}

type VoteUpdatePayload struct {
	Voter    string `json:"voter"`
	YesCount int    `json:"yesCount"`
	NoCount  int    `json:"noCount"`
	Needed   int    `json:"needed"`
}

type VoteSuccessPayload struct {
	YesCount int `json:"yesCount"`
	Needed   int `json:"needed"`
}

type VoteErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type VoteExpiredPayload struct {
	YesCount int `json:"yesCount"`
	NoCount  int `json:"noCount"`
	Needed   int `json:"needed"`
}

// ChatPayload is the conventional chat shape; relayed chat keeps whatever the client sent.
type ChatPayload struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// DecodeBlocks reads the blocks of an init, world-data or world-set payload.
func DecodeBlocks(data json.RawMessage) ([]VoxelPayload, error) {
	var p BlocksPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return p.Blocks, nil
}
