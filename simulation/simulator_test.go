package simulation

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"library-simulation/library"
)

// scriptedDice replaces Chance with fixed decisions: borrows and returns are
// consumed per roll (exhausted borrows mean no, exhausted returns mean yes),
// the pick always lands on the configured copy, and due times are fixed.
type scriptedDice struct {
	borrows  []bool
	returns  []bool
	pick     *library.BookCopy
	returnAt time.Time
}

func (d *scriptedDice) ShouldBorrow() bool {
	if len(d.borrows) == 0 {
		return false
	}
	next := d.borrows[0]
	d.borrows = d.borrows[1:]
	return next
}

func (d *scriptedDice) ShouldReturn() bool {
	if len(d.returns) == 0 {
		return true
	}
	next := d.returns[0]
	d.returns = d.returns[1:]
	return next
}

func (d *scriptedDice) PickCopy(copies []*library.BookCopy) (*library.BookCopy, bool) {
	if d.pick == nil {
		return nil, false
	}
	return d.pick, true
}

func (d *scriptedDice) ReturnTime(now, dayEnd time.Time) time.Time {
	return d.returnAt
}

// failingStore simulates a catalog store whose writes always break.
type failingStore struct{ err error }

func (f failingStore) DecrementCopies(string) error { return f.err }
func (f failingStore) IncrementCopies(string) error { return f.err }

var baseDate = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		StorePath:         "unused",
		DayStart:          DefaultDayStart,
		DayEnd:            DefaultDayEnd,
		BorrowProbability: DefaultBorrowProbability,
		ReturnProbability: DefaultReturnProbability,
		MaxDays:           1,
	}
}

func newStore(t *testing.T, records []library.BookRecord) *library.Store {
	t.Helper()
	s, err := library.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err, "open store")
	require.NoError(t, s.ReplaceAll(records), "seed store")
	t.Cleanup(func() { s.Close() })
	return s
}

func storeCount(t *testing.T, s *library.Store, title string) int {
	t.Helper()
	records, err := s.FindByTitle(title)
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0].AvailableCopies
}

func duneCatalog(copies int) []library.BookRecord {
	return []library.BookRecord{
		{Title: "Dune", Author: "Frank Herbert", PublicationYear: 1965, AvailableCopies: copies},
	}
}

func TestDayBorrowReturnRoundTrip(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)
	c := inv.Copies()[0]

	dice := &scriptedDice{
		borrows:  []bool{true},
		pick:     c,
		returnAt: baseDate.Add(10*time.Hour + 5*time.Minute),
	}
	var out bytes.Buffer
	sim := New(store, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	require.NoError(t, sim.Run(context.Background()))

	assert.Contains(t, out.String(), "--- Starting day 1 ---")
	assert.Contains(t, out.String(), "Day 1 10:00: Dune has been borrowed.")
	assert.Contains(t, out.String(), "Day 1 10:05: Dune has been returned.")

	assert.True(t, c.Borrowed, "a returned copy stays flagged borrowed for the day's bookkeeping")
	assert.True(t, c.Returned)
	assert.Equal(t, library.StateReturned, c.State())
	assert.Equal(t, 1, storeCount(t, store, "Dune"), "return restores the pre-borrow count")

	assert.Contains(t, out.String(), "End of Day 1 summary:")
	assert.Contains(t, out.String(), "1 books were borrowed.")
	assert.Contains(t, out.String(), "The most popular book was: Dune, borrowed 1 times.")
	assert.Contains(t, out.String(), "0 books were not returned.")
}

func TestAttemptBorrowMarksCopyAndStore(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)
	c := inv.Copies()[0]

	due := baseDate.Add(15*time.Hour + 30*time.Minute)
	dice := &scriptedDice{borrows: []bool{true}, pick: c, returnAt: due}
	var out bytes.Buffer
	sim := New(store, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.attemptBorrow(baseDate.Add(10*time.Hour), baseDate.Add(20*time.Hour))

	assert.True(t, c.Borrowed)
	assert.False(t, c.Returned)
	assert.Equal(t, due, c.ReturnTime)
	assert.Equal(t, 0, storeCount(t, store, "Dune"), "borrow decrements the store immediately")
	assert.Contains(t, out.String(), "Day 1 10:00: Dune has been borrowed.")
}

func TestAttemptBorrowDrawsDueTimeInsideDay(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)

	chance := NewChance(1, 1, rand.New(rand.NewSource(42)))
	var out bytes.Buffer
	sim := New(store, inv, chance, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	minute := baseDate.Add(10 * time.Hour)
	dayEnd := baseDate.Add(20 * time.Hour)
	sim.attemptBorrow(minute, dayEnd)

	c := inv.Copies()[0]
	require.True(t, c.Borrowed)
	assert.True(t, c.ReturnTime.After(minute), "due strictly after the borrow minute")
	assert.True(t, c.ReturnTime.Before(dayEnd), "due strictly before closing")
	assert.Zero(t, c.ReturnTime.Second())
	assert.Zero(t, c.ReturnTime.Nanosecond())
}

func TestBorrowFailsWhenStoreHasNoCopies(t *testing.T) {
	// The store says zero copies while the inventory still tracks one, so the
	// attempt reaches the store and must be rejected there.
	store := newStore(t, duneCatalog(0))
	inv := library.NewInventory(duneCatalog(1))
	c := inv.Copies()[0]

	dice := &scriptedDice{borrows: []bool{true}, pick: c}
	var out bytes.Buffer
	sim := New(store, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.attemptBorrow(baseDate.Add(10*time.Hour), baseDate.Add(20*time.Hour))

	assert.Contains(t, out.String(), "Day 1 10:00: The book Dune couldn't be borrowed.")
	assert.False(t, c.Borrowed, "failed borrow leaves no flag set")
	assert.Equal(t, 0, storeCount(t, store, "Dune"))
}

func TestBorrowFailsOnAlreadyBorrowedPick(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)
	c := inv.Copies()[0]
	c.Borrowed = true

	dice := &scriptedDice{borrows: []bool{true}, pick: c}
	var out bytes.Buffer
	sim := New(store, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.attemptBorrow(baseDate.Add(11*time.Hour), baseDate.Add(20*time.Hour))

	assert.Contains(t, out.String(), "Day 1 11:00: The book Dune couldn't be borrowed.")
	assert.Equal(t, 1, storeCount(t, store, "Dune"), "no decrement for a doomed attempt")
}

func TestBorrowFailsWithoutStore(t *testing.T) {
	inv := library.NewInventory(duneCatalog(1))
	c := inv.Copies()[0]

	dice := &scriptedDice{borrows: []bool{true}, pick: c}
	var out bytes.Buffer
	sim := New(nil, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.attemptBorrow(baseDate.Add(10*time.Hour), baseDate.Add(20*time.Hour))

	assert.Contains(t, out.String(), "The book Dune couldn't be borrowed.")
	assert.False(t, c.Borrowed)
}

func TestReturnFiresOnlyAtDueMinute(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)
	c := inv.Copies()[0]
	due := baseDate.Add(10*time.Hour + 5*time.Minute)
	c.Borrowed = true
	c.ReturnTime = due

	dice := &scriptedDice{}
	var out bytes.Buffer
	sim := New(store, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.processReturns(due.Add(-time.Minute))
	assert.False(t, c.Returned)
	assert.Empty(t, out.String())

	sim.processReturns(due)
	assert.True(t, c.Returned)
	assert.Contains(t, out.String(), "Day 1 10:05: Dune has been returned.")
}

func TestReturnDiceFailureIsSilent(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, duneCatalog(0))
	inv := library.NewInventory(records)
	c := inv.Copies()[0]
	due := baseDate.Add(12 * time.Hour)
	c.Borrowed = true
	c.ReturnTime = due

	dice := &scriptedDice{returns: []bool{false}}
	var out bytes.Buffer
	sim := New(store, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.processReturns(due)

	assert.False(t, c.Returned, "copy stays out until rollover gives it another day")
	assert.Empty(t, out.String(), "a kept copy is not an event")
	assert.Equal(t, 0, storeCount(t, store, "Dune"))
}

func TestReturnStoreFailureKeepsCopyOut(t *testing.T) {
	inv := library.NewInventory(duneCatalog(1))
	c := inv.Copies()[0]
	due := baseDate.Add(12 * time.Hour)
	c.Borrowed = true
	c.ReturnTime = due

	dice := &scriptedDice{}
	var out bytes.Buffer
	sim := New(failingStore{err: errors.New("disk full")}, inv, dice, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	sim.processReturns(due)

	assert.Contains(t, out.String(), "Day 1 12:00: The book Dune couldn't be returned.")
	assert.False(t, c.Returned)
	assert.Equal(t, library.StateBorrowed, c.State())
}

func TestRolloverShiftsOnlyUnreturnedCopies(t *testing.T) {
	inv := library.NewInventory([]library.BookRecord{
		{Title: "Dune", Author: "Frank Herbert", PublicationYear: 1965, AvailableCopies: 3},
	})
	copies := inv.Copies()

	unreturned := copies[0]
	unreturned.Borrowed = true
	unreturned.ReturnTime = baseDate.Add(14*time.Hour + 37*time.Minute)

	returned := copies[1]
	returned.Borrowed = true
	returned.Returned = true
	returned.ReturnTime = baseDate.Add(11 * time.Hour)

	available := copies[2]

	sim := New(nil, inv, &scriptedDice{}, testConfig(), zap.NewNop(), &bytes.Buffer{}, WithStartDate(baseDate))
	sim.rollover()

	assert.Equal(t, baseDate.AddDate(0, 0, 1).Add(14*time.Hour+37*time.Minute), unreturned.ReturnTime,
		"due minute moves exactly one calendar day")
	assert.True(t, unreturned.Borrowed)
	assert.False(t, unreturned.Returned)

	assert.Equal(t, baseDate.Add(11*time.Hour), returned.ReturnTime, "returned copies are left alone")
	assert.True(t, returned.Borrowed)
	assert.True(t, returned.Returned)

	assert.False(t, available.Borrowed)
	assert.True(t, available.ReturnTime.IsZero())
}

func TestUnreturnedCopyComesBackNextDay(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)
	c := inv.Copies()[0]

	// Day 1: borrowed at 10:00, due 10:05, kept out by the dice. Day 2: the
	// rolled-over due minute comes around again and the return succeeds.
	dice := &scriptedDice{
		borrows:  []bool{true},
		returns:  []bool{false},
		pick:     c,
		returnAt: baseDate.Add(10*time.Hour + 5*time.Minute),
	}
	cfg := testConfig()
	cfg.MaxDays = 2
	var out bytes.Buffer
	sim := New(store, inv, dice, cfg, zap.NewNop(), &out, WithStartDate(baseDate))

	require.NoError(t, sim.Run(context.Background()))

	assert.Contains(t, out.String(), "Day 1 10:00: Dune has been borrowed.")
	assert.NotContains(t, out.String(), "Day 1 10:05: Dune has been returned.")
	assert.Contains(t, out.String(), "Day 2 10:05: Dune has been returned.")
	assert.True(t, c.Returned)
	assert.Equal(t, 1, storeCount(t, store, "Dune"))

	// Day 1 closed with the copy still out, day 2 with it back.
	assert.Contains(t, out.String(), "1 books were not returned.")
	assert.Contains(t, out.String(), "0 books were not returned.")
}

func TestRunStopsAfterMaxDays(t *testing.T) {
	inv := library.NewInventory(nil)
	cfg := testConfig()
	cfg.MaxDays = 2

	var out bytes.Buffer
	sim := New(nil, inv, &scriptedDice{}, cfg, zap.NewNop(), &out, WithStartDate(baseDate))

	require.NoError(t, sim.Run(context.Background()))

	assert.Contains(t, out.String(), "--- Starting day 1 ---")
	assert.Contains(t, out.String(), "--- Starting day 2 ---")
	assert.NotContains(t, out.String(), "--- Starting day 3 ---")
	assert.Equal(t, 2, strings.Count(out.String(), "End of Day"))
}

func TestRunReturnsWhenCancelled(t *testing.T) {
	inv := library.NewInventory(nil)
	cfg := testConfig()
	cfg.MaxDays = 0 // would run forever

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sim := New(nil, inv, &scriptedDice{}, cfg, zap.NewNop(), &bytes.Buffer{}, WithStartDate(baseDate))
	err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestZeroBorrowDaySummary(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)

	var out bytes.Buffer
	sim := New(store, inv, &scriptedDice{}, testConfig(), zap.NewNop(), &out, WithStartDate(baseDate))

	require.NoError(t, sim.Run(context.Background()))

	assert.Contains(t, out.String(), "0 books were borrowed.")
	assert.Contains(t, out.String(), "No books were borrowed today.")
	assert.NotContains(t, out.String(), "most popular")
}

func TestSummaryCountsAccumulateAcrossDays(t *testing.T) {
	records := duneCatalog(1)
	store := newStore(t, records)
	inv := library.NewInventory(records)
	c := inv.Copies()[0]

	dice := &scriptedDice{
		borrows:  []bool{true},
		pick:     c,
		returnAt: baseDate.Add(10*time.Hour + 5*time.Minute),
	}
	cfg := testConfig()
	cfg.MaxDays = 2
	var out bytes.Buffer
	sim := New(store, inv, dice, cfg, zap.NewNop(), &out, WithStartDate(baseDate))

	require.NoError(t, sim.Run(context.Background()))

	// The borrowed flag survives the day boundary, so day 2 still reports the
	// day 1 borrow.
	assert.Equal(t, 2, strings.Count(out.String(), "1 books were borrowed."))
}
