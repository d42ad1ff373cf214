package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/adamspd/DesignQuizBot/db"
)

const dateLayout = "2006-01-02"

// QuotaGate derives the per-day answer allowance from daily_progress rows.
type QuotaGate struct {
	limit int
	loc   *time.Location
	now   func() time.Time
}

func NewQuotaGate(limit int, loc *time.Location, now func() time.Time) *QuotaGate {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &QuotaGate{limit: limit, loc: loc, now: now}
}

func (g *QuotaGate) Limit() int {
	return g.limit
}

// Today is the current calendar date in the gate's time zone.
func (g *QuotaGate) Today() string {
	return g.now().In(g.loc).Format(dateLayout)
}

// RemainingFrom converts an answered count into the remaining allowance.
func (g *QuotaGate) RemainingFrom(answered int) int {
	if r := g.limit - answered; r > 0 {
		return r
	}
	return 0
}

func (g *QuotaGate) Remaining(ctx context.Context, q db.Querier, userID int64) (int, error) {
	asked, err := q.GetDaily(ctx, userID, g.Today())
	if err != nil {
		return 0, fmt.Errorf("read daily progress: %w", err)
	}
	return g.RemainingFrom(asked), nil
}

// RecordAnswer counts one more answer for today and returns what is left.
func (g *QuotaGate) RecordAnswer(ctx context.Context, q db.Querier, userID int64) (int, error) {
	asked, err := q.IncrementDaily(ctx, userID, g.Today(), 1)
	if err != nil {
		return 0, fmt.Errorf("record daily progress: %w", err)
	}
	return g.RemainingFrom(asked), nil
}

// Rollover deletes every daily_progress row that is not for today.
func (g *QuotaGate) Rollover(ctx context.Context, q db.Querier) (int64, error) {
	return q.DeleteDailyExcept(ctx, g.Today())
}
