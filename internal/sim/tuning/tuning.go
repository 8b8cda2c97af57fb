package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	MinCoord    int    `yaml:"min_coord"`
	MaxCoord    int    `yaml:"max_coord"`
	GroundMin   int    `yaml:"ground_min"`
	GroundMax   int    `yaml:"ground_max"`
	GroundY     int    `yaml:"ground_y"`
	GroundColor uint32 `yaml:"ground_color"`

	NameMaxRunes       int `yaml:"name_max_runes"`
	MaxBlocksUpload    int `yaml:"max_blocks_upload"`
	VoteTimeoutSeconds int `yaml:"vote_timeout_seconds"`

	ClientQueue    int `yaml:"client_queue"`
	InboxQueue     int `yaml:"inbox_queue"`
	HousekeepingMs int `yaml:"housekeeping_ms"`

	Transport Transport `yaml:"transport"`
}

type Transport struct {
	MaxMessageBytes int64    `yaml:"max_message_bytes"`
	RateLimitPerSec float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		MinCoord:        -512,
		MaxCoord:        512,
		GroundMin:       -25,
		GroundMax:       24,
		GroundY:         0,
		GroundColor:     0xFFFFFF,

		NameMaxRunes:       24,
		MaxBlocksUpload:    100000,
		VoteTimeoutSeconds: 0,

		ClientQueue:    256,
		InboxQueue:     1024,
		HousekeepingMs: 1000,

		Transport: Transport{
			MaxMessageBytes: 8 << 20,
			RateLimitPerSec: 60,
			RateLimitBurst:  120,
			AllowedOrigins:  []string{"*"},
		},
	}
}

// Load reads a tuning file on top of Defaults. A missing file yields Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.MinCoord > t.MaxCoord:
		return fmt.Errorf("min_coord %d > max_coord %d", t.MinCoord, t.MaxCoord)
	case t.GroundMin > t.GroundMax:
		return fmt.Errorf("ground_min %d > ground_max %d", t.GroundMin, t.GroundMax)
	case t.GroundMin < t.MinCoord || t.GroundMax > t.MaxCoord:
		return fmt.Errorf("ground [%d,%d] outside world bounds", t.GroundMin, t.GroundMax)
	case t.GroundY < t.MinCoord || t.GroundY > t.MaxCoord:
		return fmt.Errorf("ground_y %d outside world bounds", t.GroundY)
	case t.GroundColor > 0xFFFFFF:
		return fmt.Errorf("ground_color %#x out of range", t.GroundColor)
	case t.NameMaxRunes <= 0:
		return fmt.Errorf("name_max_runes must be > 0")
	case t.MaxBlocksUpload <= 0:
		return fmt.Errorf("max_blocks_upload must be > 0")
	case t.VoteTimeoutSeconds < 0:
		return fmt.Errorf("vote_timeout_seconds must be >= 0")
	case t.ClientQueue <= 0 || t.InboxQueue <= 0:
		return fmt.Errorf("client_queue and inbox_queue must be > 0")
	case t.HousekeepingMs <= 0:
		return fmt.Errorf("housekeeping_ms must be > 0")
	case t.Transport.MaxMessageBytes <= 0:
		return fmt.Errorf("transport.max_message_bytes must be > 0")
	case t.Transport.RateLimitPerSec < 0 || t.Transport.RateLimitBurst < 0:
		return fmt.Errorf("transport rate limits must be >= 0")
	}
	return nil
}

func (t Tuning) VoteTimeout() time.Duration {
	return time.Duration(t.VoteTimeoutSeconds) * time.Second
}

func (t Tuning) HousekeepingInterval() time.Duration {
	return time.Duration(t.HousekeepingMs) * time.Millisecond
}
