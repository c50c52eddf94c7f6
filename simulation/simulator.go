package simulation

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"library-simulation/library"
)

// CopyStore is the slice of the catalog store the day loop mutates. Every
// successful borrow or return commits through it before the in-memory copy
// changes, so the store never lags the inventory.
type CopyStore interface {
	DecrementCopies(title string) error
	IncrementCopies(title string) error
}

// Dice is the decision surface the day loop consults each minute. *Chance is
// the production implementation; tests script their own.
type Dice interface {
	ShouldBorrow() bool
	ShouldReturn() bool
	PickCopy(copies []*library.BookCopy) (*library.BookCopy, bool)
	ReturnTime(now, dayEnd time.Time) time.Time
}

// Simulator steps a library's circulation minute by minute across simulated
// days. Event lines and daily summaries go to out; operational diagnostics go
// to the logger. Store failures never stop the loop, they only fail the
// attempt that hit them.
type Simulator struct {
	store CopyStore
	inv   *library.Inventory
	dice  Dice
	cfg   Config
	log   *zap.Logger
	out   io.Writer

	day  int
	date time.Time // midnight of the current simulated day
}

// Option tweaks a Simulator at construction.
type Option func(*Simulator)

// WithStartDate pins the calendar date of day 1. The default is the
// wall-clock date the run starts on.
func WithStartDate(t time.Time) Option {
	return func(s *Simulator) {
		s.date = midnight(t)
	}
}

// New wires a Simulator. The store may be nil when the catalog store was
// unavailable at startup; every borrow and return then fails and is logged,
// matching a catalog that cannot be written.
func New(store CopyStore, inv *library.Inventory, dice Dice, cfg Config, log *zap.Logger, out io.Writer, opts ...Option) *Simulator {
	s := &Simulator{
		store: store,
		inv:   inv,
		dice:  dice,
		cfg:   cfg,
		log:   log,
		out:   out,
		day:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run drives simulated days until ctx is cancelled or cfg.MaxDays days have
// completed. Each day ticks one minute at a time through the service window,
// emits its summary, and rolls unreturned copies into the next day.
func (s *Simulator) Run(ctx context.Context) error {
	if s.date.IsZero() {
		s.date = midnight(time.Now())
	}

	s.log.Info("simulation starting",
		zap.Int("copies", s.inv.Len()),
		zap.String("window", FormatClock(s.cfg.DayStart)+"-"+FormatClock(s.cfg.DayEnd)),
		zap.Int("max_days", s.cfg.MaxDays),
	)

	for {
		if err := s.runDay(ctx); err != nil {
			return err
		}
		s.rollover()

		if s.cfg.MaxDays > 0 && s.day >= s.cfg.MaxDays {
			s.log.Info("simulation finished", zap.Int("days", s.day))
			return nil
		}
		if err := s.pause(ctx, s.cfg.DayPause); err != nil {
			return err
		}

		s.day++
		s.date = s.date.AddDate(0, 0, 1)
	}
}

// runDay ticks every minute of one service day: all due returns first, then
// at most one borrow attempt, then the pacing delay. The day closes with its
// summary block.
func (s *Simulator) runDay(ctx context.Context) error {
	fmt.Fprintf(s.out, "--- Starting day %d ---\n", s.day)

	dayStart := s.date.Add(s.cfg.DayStart)
	dayEnd := s.date.Add(s.cfg.DayEnd)

	for minute := dayStart; minute.Before(dayEnd); minute = minute.Add(time.Minute) {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.processReturns(minute)
		s.attemptBorrow(minute, dayEnd)
		if err := s.pause(ctx, s.cfg.TickInterval); err != nil {
			return err
		}
	}

	fmt.Fprint(s.out, Summarize(s.day, s.inv.Copies()).Render())
	return nil
}

// processReturns gives every due copy its chance to come back this minute.
// A failed dice roll is silent; the copy stays out and rollover gives it
// another day. A failed store write keeps the copy out too, but is reported.
func (s *Simulator) processReturns(minute time.Time) {
	for _, c := range s.inv.Copies() {
		if !c.Borrowed || c.Returned || !c.ReturnTime.Equal(minute) {
			continue
		}
		if !s.dice.ShouldReturn() {
			continue
		}
		if err := s.persistReturn(c.Title); err != nil {
			s.log.Warn("return not persisted",
				zap.String("title", c.Title),
				zap.String("copy_id", c.ID.String()),
				zap.Error(err),
			)
			s.eventf(minute, "The book %s couldn't be returned.", c.Title)
			continue
		}
		c.Returned = true
		s.eventf(minute, "%s has been returned.", c.Title)
	}
}

// attemptBorrow performs the minute's single borrow attempt. A pick that
// lands on an already-borrowed copy, or a store write that fails, counts as
// a failed borrow and changes no state.
func (s *Simulator) attemptBorrow(minute, dayEnd time.Time) {
	if !s.dice.ShouldBorrow() {
		return
	}

	c, ok := s.dice.PickCopy(s.inv.Copies())
	if !ok {
		s.log.Debug("nothing to borrow, catalog has no copies", zap.Int("day", s.day))
		return
	}
	if c.Borrowed {
		s.eventf(minute, "The book %s couldn't be borrowed.", c.Title)
		return
	}

	if err := s.persistBorrow(c.Title); err != nil {
		s.log.Warn("borrow not persisted",
			zap.String("title", c.Title),
			zap.String("copy_id", c.ID.String()),
			zap.Error(err),
		)
		s.eventf(minute, "The book %s couldn't be borrowed.", c.Title)
		return
	}

	c.Borrowed = true
	c.Returned = false
	c.ReturnTime = s.dice.ReturnTime(minute, dayEnd)
	s.eventf(minute, "%s has been borrowed.", c.Title)
}

// rollover pushes every still-unreturned copy's due minute forward by one
// calendar day. Flags are never touched here; a borrowed copy stays borrowed
// and a returned copy stays returned.
func (s *Simulator) rollover() {
	carried := 0
	for _, c := range s.inv.Copies() {
		if c.Borrowed && !c.Returned {
			c.ReturnTime = c.ReturnTime.AddDate(0, 0, 1)
			carried++
		}
	}
	if carried > 0 {
		s.log.Debug("unreturned copies carried to next day",
			zap.Int("day", s.day),
			zap.Int("copies", carried),
		)
	}
}

func (s *Simulator) persistBorrow(title string) error {
	if s.store == nil {
		return library.ErrStoreUnavailable
	}
	return s.store.DecrementCopies(title)
}

func (s *Simulator) persistReturn(title string) error {
	if s.store == nil {
		return library.ErrStoreUnavailable
	}
	return s.store.IncrementCopies(title)
}

// eventf writes one "Day <n> <HH:MM>: ..." line.
func (s *Simulator) eventf(minute time.Time, format string, args ...any) {
	fmt.Fprintf(s.out, "Day %d %s: %s\n", s.day, minute.Format("15:04"), fmt.Sprintf(format, args...))
}

// pause sleeps for d unless ctx ends first. Zero and negative d return
// immediately so tests run days at full speed.
func (s *Simulator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
