package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyCompletedCounts(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	cfg := testConfig()
	cfg.Location = loc
	f := newFixtureWith(t, newSQLiteRepo(t), cfg, 1)
	f.svc.now = func() time.Time { return time.Date(2024, 6, 20, 12, 0, 0, 0, loc) }
	ctx := context.Background()

	complete := func(at time.Time) {
		d := f.book(t, f.clientReq(0), at)
		f.advance(t, d.ID, StatusConfirmed, StatusCompleted)
	}

	complete(time.Date(2024, 6, 2, 10, 0, 0, 0, loc))
	complete(time.Date(2024, 6, 5, 10, 0, 0, 0, loc))
	// 01:00 UTC on June 1st is still May 31st in BRT
	complete(time.Date(2024, 6, 1, 1, 0, 0, 0, time.UTC))
	complete(time.Date(2023, 7, 15, 10, 0, 0, 0, loc))
	// outside the twelve month window
	complete(time.Date(2023, 6, 15, 10, 0, 0, 0, loc))

	cancelled := f.book(t, f.clientReq(0), time.Date(2024, 6, 9, 10, 0, 0, 0, loc))
	f.advance(t, cancelled.ID, StatusCancelled)

	counts, err := f.svc.MonthlyCompletedCounts(ctx, f.pro.ID, 12)
	require.NoError(t, err)
	require.Len(t, counts, 12)

	assert.Equal(t, "2023-07", counts[0].Label)
	assert.Equal(t, "2024-06", counts[11].Label)
	assert.Equal(t, 1, counts[0].Count)
	assert.Equal(t, 1, counts[10].Count)
	assert.Equal(t, 2, counts[11].Count)

	sum := 0
	for i, c := range counts {
		sum += c.Count
		if i > 0 {
			assert.Equal(t, counts[i-1].Month.AddDate(0, 1, 0), c.Month)
		}
	}
	assert.Equal(t, 4, sum)

	def, err := f.svc.MonthlyCompletedCounts(ctx, f.pro.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, counts, def)

	three, err := f.svc.MonthlyCompletedCounts(ctx, f.pro.ID, 3)
	require.NoError(t, err)
	require.Len(t, three, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{three[0].Count, three[1].Count, three[2].Count})
}

func TestMonthlyCompletedCountsEmptyAndInvalid(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	counts, err := f.svc.MonthlyCompletedCounts(ctx, f.pro.ID, 24)
	require.NoError(t, err)
	require.Len(t, counts, 24)
	for _, c := range counts {
		assert.Zero(t, c.Count)
	}

	_, err = f.svc.MonthlyCompletedCounts(ctx, f.pro.ID, 121)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPeriodSummary(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	now := time.Date(2024, 6, 20, 15, 0, 0, 0, time.UTC)

	at := func(ts time.Time) { f.svc.now = func() time.Time { return ts } }

	// created five weeks ago: only inside no window
	at(now.AddDate(0, 0, -35))
	f.book(t, f.clientReq(0), slotTime.Add(-time.Hour))

	// created ten days ago: month only
	at(now.AddDate(0, 0, -10))
	old := f.book(t, f.clientReq(0), slotTime)
	f.advance(t, old.ID, StatusConfirmed, StatusCompleted)

	// created today
	at(now.Add(-2 * time.Hour))
	f.book(t, f.clientReq(1), slotTime.Add(time.Hour))
	dec := f.book(t, f.clientReq(1), slotTime.Add(2*time.Hour))
	f.advance(t, dec.ID, StatusDeclined)
	can := f.book(t, f.clientReq(0), slotTime.Add(3*time.Hour))
	f.advance(t, can.ID, StatusCancelled)

	issued := now.Add(-time.Hour)
	require.NoError(t, f.svc.RecordLogin(ctx, f.clients[0].ID, issued))
	require.NoError(t, f.svc.RecordLogin(ctx, f.clients[0].ID, issued))
	require.NoError(t, f.svc.RecordLogin(ctx, f.clients[1].ID, now.AddDate(0, 0, -3)))

	at(now)

	today, err := f.svc.PeriodSummary(ctx, "hoje")
	require.NoError(t, err)
	assert.Equal(t, PeriodToday, today.Period)
	assert.Equal(t, 3, today.Created)
	assert.Equal(t, 1, today.Pending)
	assert.Equal(t, 1, today.Declined)
	assert.Equal(t, 1, today.Cancelled)
	assert.Equal(t, 0, today.Completed)
	assert.Equal(t, 1, today.Logins)

	week, err := f.svc.PeriodSummary(ctx, "SEMANA")
	require.NoError(t, err)
	assert.Equal(t, PeriodWeek, week.Period)
	assert.Equal(t, 3, week.Created)
	assert.Equal(t, 2, week.Logins)

	month, err := f.svc.PeriodSummary(ctx, "Mês")
	require.NoError(t, err)
	assert.Equal(t, PeriodMonth, month.Period)
	assert.Equal(t, 4, month.Created)
	assert.Equal(t, 1, month.Completed)
	assert.True(t, now.AddDate(0, -1, 0).Equal(month.Since))

	fallback, err := f.svc.PeriodSummary(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, PeriodToday, fallback.Period)
	assert.Equal(t, today.Activity, fallback.Activity)
}
