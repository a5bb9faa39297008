package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParsePeriod(t *testing.T) {
	cases := []struct {
		in   any
		want Period
	}{
		{"Mês", PeriodMonth},
		{"MES", PeriodMonth},
		{"monthly", PeriodMonth},
		{" Semana ", PeriodWeek},
		{"week", PeriodWeek},
		{"semanal", PeriodWeek},
		{"hoje", PeriodToday},
		{"Diário", PeriodToday},
		{"today", PeriodToday},
		{"year", PeriodToday},
		{"", PeriodToday},
		{42, PeriodToday},
		{nil, PeriodToday},
		{[]string{"month"}, PeriodToday},
		{PeriodWeek, PeriodWeek},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, ParsePeriod(tc.in), "%#v", tc.in)
	}
}

func TestPeriodSince(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	// 01:30 UTC is still the previous day in BRT
	now := time.Date(2024, 6, 15, 1, 30, 0, 0, time.UTC)

	assert.True(t, time.Date(2024, 6, 14, 0, 0, 0, 0, loc).Equal(PeriodToday.Since(now, loc)))
	assert.True(t, now.Add(-7*24*time.Hour).Equal(PeriodWeek.Since(now, loc)))
	assert.True(t, time.Date(2024, 5, 15, 1, 30, 0, 0, time.UTC).Equal(PeriodMonth.Since(now, loc)))
}
