package simulation

import (
	"fmt"
	"time"
)

// Default simulation parameters: a ten-hour service day, an even chance that
// somebody tries to borrow in any given minute, a 95% chance that a due copy
// actually comes back, and gentle real-time pacing so a human can follow the
// output.
const (
	DefaultDayStart          = 10 * time.Hour
	DefaultDayEnd            = 20 * time.Hour
	DefaultBorrowProbability = 0.5
	DefaultReturnProbability = 0.95
	DefaultTickInterval      = 50 * time.Millisecond
	DefaultDayPause          = 5 * time.Second
)

// Config carries every tunable of a simulation run. It is built once by the
// CLI from flags and handed to the Simulator at construction; nothing in the
// loop reads configuration from anywhere else.
type Config struct {
	// StorePath locates the catalog store backing the run.
	StorePath string

	// DayStart and DayEnd bound the simulated service day as wall-clock
	// offsets from midnight. Minutes are ticked in [DayStart, DayEnd).
	DayStart time.Duration
	DayEnd   time.Duration

	// BorrowProbability is the per-minute chance of one borrow attempt;
	// ReturnProbability is the chance a due copy actually comes back.
	BorrowProbability float64
	ReturnProbability float64

	// TickInterval paces real time per simulated minute and DayPause pauses
	// between simulated days. Zero disables either; neither affects
	// correctness.
	TickInterval time.Duration
	DayPause     time.Duration

	// MaxDays stops the run after that many simulated days. Zero means run
	// until the context is cancelled.
	MaxDays int
}

// Validate rejects configurations the day loop cannot run.
func (c Config) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("store path must not be empty")
	}
	if c.DayStart < 0 || c.DayStart >= 24*time.Hour {
		return fmt.Errorf("day start %s outside 00:00-23:59", FormatClock(c.DayStart))
	}
	if c.DayEnd > 24*time.Hour {
		return fmt.Errorf("day end %s past midnight", FormatClock(c.DayEnd))
	}
	if c.DayEnd <= c.DayStart {
		return fmt.Errorf("day end %s not after day start %s", FormatClock(c.DayEnd), FormatClock(c.DayStart))
	}
	if c.BorrowProbability < 0 || c.BorrowProbability > 1 {
		return fmt.Errorf("borrow probability %.2f outside [0, 1]", c.BorrowProbability)
	}
	if c.ReturnProbability < 0 || c.ReturnProbability > 1 {
		return fmt.Errorf("return probability %.2f outside [0, 1]", c.ReturnProbability)
	}
	if c.TickInterval < 0 {
		return fmt.Errorf("tick interval must not be negative")
	}
	if c.DayPause < 0 {
		return fmt.Errorf("day pause must not be negative")
	}
	if c.MaxDays < 0 {
		return fmt.Errorf("max days must not be negative")
	}
	return nil
}

// ParseClock parses a wall-clock "HH:MM" value into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FormatClock renders an offset from midnight as "HH:MM".
func FormatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}
