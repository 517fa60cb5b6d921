package ticketnumber

import (
	"context"
	"fmt"
	"time"
)

// Generator produces unique, human-readable ticket numbers.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// CounterStore hands out monotonically increasing counters scoped by key.
type CounterStore interface {
	// Add increments the counter for scope and returns the new value.
	Add(ctx context.Context, scope string, offset int64) (int64, error)
}

// Clock allows deterministic testing.
type Clock interface{ Now() time.Time }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the default wall clock.
var SystemClock Clock = systemClock{}

// YearSeq generates numbers of the form TK-<year>-<6 digit sequence>. The
// sequence restarts each year because the counter scope embeds the year.
type YearSeq struct {
	store CounterStore
	clock Clock
}

// NewYearSeq builds the generator used for email-sourced tickets.
func NewYearSeq(store CounterStore, clock Clock) *YearSeq {
	if clock == nil {
		clock = SystemClock
	}
	return &YearSeq{store: store, clock: clock}
}

func (g *YearSeq) Next(ctx context.Context) (string, error) {
	year := g.clock.Now().Year()
	counter, err := g.store.Add(ctx, fmt.Sprintf("ticket:%04d", year), 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TK-%04d-%06d", year, counter), nil
}
