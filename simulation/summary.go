package simulation

import (
	"errors"
	"fmt"
	"strings"

	"library-simulation/library"
)

// ErrNoBorrows reports a day that ended with zero borrowed copies, which
// leaves "most popular" undefined. Summarize handles it by rendering the
// no-borrows line instead of failing.
var ErrNoBorrows = errors.New("no books were borrowed")

// DaySummary is the end-of-day circulation tally. Borrowed counts every copy
// flagged borrowed, returned or not; Unreturned counts the ones still out.
type DaySummary struct {
	Day          int
	Borrowed     int
	Unreturned   int
	PopularTitle string
	PopularCount int
}

// Summarize tallies the day's circulation from the copy flags.
func Summarize(day int, copies []*library.BookCopy) DaySummary {
	sum := DaySummary{Day: day}
	for _, c := range copies {
		if !c.Borrowed {
			continue
		}
		sum.Borrowed++
		if !c.Returned {
			sum.Unreturned++
		}
	}

	title, count, err := mostBorrowed(copies)
	if errors.Is(err, ErrNoBorrows) {
		return sum // rendered as the no-borrows line
	}
	sum.PopularTitle = title
	sum.PopularCount = count
	return sum
}

// mostBorrowed returns the most frequent title among borrowed copies,
// breaking ties toward the lexicographically smallest title so the result
// does not depend on iteration order. Fails with ErrNoBorrows when nothing
// is borrowed.
func mostBorrowed(copies []*library.BookCopy) (string, int, error) {
	counts := make(map[string]int)
	for _, c := range copies {
		if c.Borrowed {
			counts[c.Title]++
		}
	}
	if len(counts) == 0 {
		return "", 0, ErrNoBorrows
	}

	var top string
	var n int
	for title, count := range counts {
		if count > n || (count == n && title < top) {
			top, n = title, count
		}
	}
	return top, n, nil
}

// Render formats the end-of-day block. A zero-borrow day is reported, never
// treated as an error.
func (d DaySummary) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "End of Day %d summary:\n\n", d.Day)
	fmt.Fprintf(&b, "%d books were borrowed.\n", d.Borrowed)
	if d.Borrowed == 0 {
		b.WriteString("No books were borrowed today.\n")
	} else {
		fmt.Fprintf(&b, "The most popular book was: %s, borrowed %d times.\n", d.PopularTitle, d.PopularCount)
	}
	fmt.Fprintf(&b, "%d books were not returned.\n", d.Unreturned)
	return b.String()
}
