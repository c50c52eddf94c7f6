package simulation

import (
	"math/rand"
	"time"

	"library-simulation/library"
)

// Chance is the randomized event generator behind every borrow and return
// decision. It draws from an injected *rand.Rand so a fixed seed reproduces a
// whole run; the randomness is deliberately not cryptographic.
type Chance struct {
	rng               *rand.Rand
	borrowProbability float64
	returnProbability float64
}

// NewChance builds an event generator with the given per-minute borrow
// probability and per-due-copy return probability, both in [0, 1].
func NewChance(borrowProbability, returnProbability float64, rng *rand.Rand) *Chance {
	return &Chance{
		rng:               rng,
		borrowProbability: borrowProbability,
		returnProbability: returnProbability,
	}
}

// ShouldBorrow rolls the dice for this minute's borrow attempt.
func (c *Chance) ShouldBorrow() bool {
	return c.rng.Float64() < c.borrowProbability
}

// ShouldReturn rolls the dice for a due copy actually coming back.
func (c *Chance) ShouldReturn() bool {
	return c.rng.Float64() < c.returnProbability
}

// PickCopy selects uniformly over all tracked copies, borrowed ones included;
// the caller decides what picking a borrowed copy means. ok is false when
// there is nothing to pick from.
func (c *Chance) PickCopy(copies []*library.BookCopy) (*library.BookCopy, bool) {
	if len(copies) == 0 {
		return nil, false
	}
	return copies[c.rng.Intn(len(copies))], true
}

// ReturnTime draws the minute a borrow becomes due: uniform over the whole
// minutes strictly after now and strictly before dayEnd. When that range is
// empty (a borrow on the day's final minute) it falls back to now itself,
// which can only match a tick after rollover carries it into the next day.
func (c *Chance) ReturnTime(now, dayEnd time.Time) time.Time {
	lo := now.Truncate(time.Minute).Add(time.Minute)
	hi := dayEnd.Truncate(time.Minute).Add(-time.Minute)
	if lo.After(hi) {
		return now.Truncate(time.Minute)
	}
	minutes := int(hi.Sub(lo)/time.Minute) + 1
	return lo.Add(time.Duration(c.rng.Intn(minutes)) * time.Minute)
}
