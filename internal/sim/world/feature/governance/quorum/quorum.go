package quorum

import (
	"errors"
	"time"

	"buildnblocks.io/internal/sim/world/terrain/store"
)

var (
	ErrVoteInProgress = errors.New("a vote is already in progress")
	ErrNoActiveVote   = errors.New("no active vote")
)

// Tally is the public view of a pending vote.
type Tally struct {
	Initiator string
	Yes       int
	No        int
	Needed    int
	Eligible  int
}

func (t Tally) Passed() bool { return t.Yes >= t.Needed }

type pendingVote struct {
	initiator string
	voxels    []store.Voxel
	ballots   map[string]bool
	needed    int
	eligible  int
	openedAt  time.Time
}

// Coordinator gates a world replacement behind a majority vote. At most one
// vote exists at a time. It is not safe for concurrent use; the world loop
// owns it.
type Coordinator struct {
	timeout time.Duration
	vote    *pendingVote
}

// New returns an idle coordinator. timeout <= 0 means votes never expire.
func New(timeout time.Duration) *Coordinator {
	return &Coordinator{timeout: timeout}
}

// Needed is the yes-count that passes a vote among n participants: ceil(n/2).
// With no participants it is zero; the initiator's own ballot still passes it.
func Needed(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + 1) / 2
}

func (c *Coordinator) Active() bool { return c.vote != nil }

// Open starts a vote with the initiator's yes already recorded.
func (c *Coordinator) Open(initiator string, eligible int, voxels []store.Voxel, now time.Time) (Tally, error) {
	if c.vote != nil {
		return Tally{}, ErrVoteInProgress
	}
	c.vote = &pendingVote{
		initiator: initiator,
		voxels:    voxels,
		ballots:   map[string]bool{initiator: true},
		needed:    Needed(eligible),
		eligible:  eligible,
		openedAt:  now,
	}
	return c.tally(), nil
}

// Cast records (or overwrites) voter's ballot.
func (c *Coordinator) Cast(voter string, yes bool) (Tally, error) {
	if c.vote == nil {
		return Tally{}, ErrNoActiveVote
	}
	c.vote.ballots[voter] = yes
	return c.tally(), nil
}

// Resolve closes the vote if it has passed and hands back the proposed world.
func (c *Coordinator) Resolve() (voxels []store.Voxel, t Tally, ok bool) {
	if c.vote == nil {
		return nil, Tally{}, false
	}
	t = c.tally()
	if !t.Passed() {
		return nil, t, false
	}
	voxels = c.vote.voxels
	c.vote = nil
	return voxels, t, true
}

// Expire abandons the vote once it has been open longer than the timeout.
func (c *Coordinator) Expire(now time.Time) (Tally, bool) {
	if c.vote == nil || c.timeout <= 0 {
		return Tally{}, false
	}
	if now.Sub(c.vote.openedAt) < c.timeout {
		return Tally{}, false
	}
	t := c.tally()
	c.vote = nil
	return t, true
}

// Current reports the tally of the open vote, if any.
func (c *Coordinator) Current() (Tally, bool) {
	if c.vote == nil {
		return Tally{}, false
	}
	return c.tally(), true
}

func (c *Coordinator) tally() Tally {
	t := Tally{
		Initiator: c.vote.initiator,
		Needed:    c.vote.needed,
		Eligible:  c.vote.eligible,
	}
	for _, yes := range c.vote.ballots {
		if yes {
			t.Yes++
		} else {
			t.No++
		}
	}
	return t
}
