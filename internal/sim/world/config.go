package world

import (
	"fmt"
	"time"

	"buildnblocks.io/internal/sim/tuning"
	"buildnblocks.io/internal/sim/world/logic/coords"
)

type Config struct {
	Bounds coords.Bounds

	GroundMin   int
	GroundMax   int
	GroundY     int
	GroundColor uint32

	NameMaxRunes    int
	MaxBlocksUpload int

	// VoteTimeout <= 0 keeps a vote open until it passes.
	VoteTimeout time.Duration

	InboxQueue        int
	HousekeepingEvery time.Duration
}

func ConfigFromTuning(t tuning.Tuning) Config {
	return Config{
		Bounds:            coords.Bounds{Min: t.MinCoord, Max: t.MaxCoord},
		GroundMin:         t.GroundMin,
		GroundMax:         t.GroundMax,
		GroundY:           t.GroundY,
		GroundColor:       t.GroundColor,
		NameMaxRunes:      t.NameMaxRunes,
		MaxBlocksUpload:   t.MaxBlocksUpload,
		VoteTimeout:       t.VoteTimeout(),
		InboxQueue:        t.InboxQueue,
		HousekeepingEvery: t.HousekeepingInterval(),
	}
}

func (c *Config) applyDefaults() {
	if c.Bounds == (coords.Bounds{}) {
		c.Bounds = coords.Bounds{Min: -512, Max: 512}
	}
	if c.NameMaxRunes <= 0 {
		c.NameMaxRunes = 24
	}
	if c.MaxBlocksUpload <= 0 {
		c.MaxBlocksUpload = 100000
	}
	if c.InboxQueue <= 0 {
		c.InboxQueue = 1024
	}
	if c.HousekeepingEvery <= 0 {
		c.HousekeepingEvery = time.Second
	}
}

func (c Config) validate() error {
	if c.Bounds.Min > c.Bounds.Max {
		return fmt.Errorf("world bounds: min %d > max %d", c.Bounds.Min, c.Bounds.Max)
	}
	if c.GroundMin > c.GroundMax {
		return fmt.Errorf("ground: min %d > max %d", c.GroundMin, c.GroundMax)
	}
	if !c.Bounds.ContainsAxis(c.GroundMin) || !c.Bounds.ContainsAxis(c.GroundMax) || !c.Bounds.ContainsAxis(c.GroundY) {
		return fmt.Errorf("ground outside world bounds")
	}
	return nil
}
