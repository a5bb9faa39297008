package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMonthsBack = 12
	maxMonthsBack     = 120
)

type MonthCount struct {
	Month time.Time // first instant of the month in the calendar location
	Label string    // 2006-01
	Count int
}

type Summary struct {
	Period Period
	Since  time.Time
	Until  time.Time
	Activity
}

// MonthlyCompletedCounts returns exactly monthsBack entries, oldest first,
// ending with the current month. Months without completed appointments
// count zero.
func (s *Service) MonthlyCompletedCounts(ctx context.Context, professionalID uuid.UUID, monthsBack int) ([]MonthCount, error) {
	if monthsBack <= 0 {
		monthsBack = defaultMonthsBack
	}
	if monthsBack > maxMonthsBack {
		return nil, invalid("months_back must be at most %d", maxMonthsBack)
	}

	loc := s.location()
	now := s.now().In(loc)
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	start := current.AddDate(0, -(monthsBack - 1), 0)
	end := current.AddDate(0, 1, 0)

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := s.requireProfessional(ctx, professionalID); err != nil {
		return nil, err
	}

	times, err := s.repo.ListCompletedTimes(ctx, professionalID, start, end)
	if err != nil {
		return nil, classify("monthly completed counts", err)
	}

	out := make([]MonthCount, monthsBack)
	for i := range out {
		m := start.AddDate(0, i, 0)
		out[i] = MonthCount{Month: m, Label: m.Format("2006-01")}
	}
	for _, t := range times {
		lt := t.In(loc)
		idx := (lt.Year()-start.Year())*12 + int(lt.Month()) - int(start.Month())
		if idx >= 0 && idx < monthsBack {
			out[idx].Count++
		}
	}
	return out, nil
}

// PeriodSummary counts logins and appointments created in the window of
// the given period, which is parsed leniently with ParsePeriod.
func (s *Service) PeriodSummary(ctx context.Context, period any) (*Summary, error) {
	p := ParsePeriod(period)
	now := s.now()
	since := p.Since(now, s.location())

	ctx, cancel := s.bound(ctx)
	defer cancel()

	act, err := s.repo.CountActivity(ctx, since, now)
	if err != nil {
		return nil, classify("period summary", err)
	}
	return &Summary{Period: p, Since: since, Until: now, Activity: *act}, nil
}
