package appointment

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

var periodSynonyms = map[string]Period{
	"today":   PeriodToday,
	"day":     PeriodToday,
	"daily":   PeriodToday,
	"hoje":    PeriodToday,
	"dia":     PeriodToday,
	"diario":  PeriodToday,
	"week":    PeriodWeek,
	"weekly":  PeriodWeek,
	"semana":  PeriodWeek,
	"semanal": PeriodWeek,
	"month":   PeriodMonth,
	"monthly": PeriodMonth,
	"mes":     PeriodMonth,
	"mensal":  PeriodMonth,
}

// ParsePeriod maps free-form input to a Period. Anything that is not a
// recognised string, including non-string values, is PeriodToday.
func ParsePeriod(v any) Period {
	var raw string
	switch t := v.(type) {
	case string:
		raw = t
	case Period:
		raw = string(t)
	default:
		return PeriodToday
	}
	if p, ok := periodSynonyms[foldText(raw)]; ok {
		return p
	}
	return PeriodToday
}

// foldText lowercases and strips diacritics: "Mês " -> "mes".
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return out
}

// Since returns the start of the window ending at now. Day boundaries are
// taken in loc.
func (p Period) Since(now time.Time, loc *time.Location) time.Time {
	switch p {
	case PeriodWeek:
		return now.Add(-7 * 24 * time.Hour)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	default:
		local := now.In(loc)
		return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	}
}
