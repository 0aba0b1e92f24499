package query

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Confidence tiers for resolved time expressions. An explicit date beats a
// well-known relative phrase, which beats no match at all.
const (
	confidenceAbsolute = 0.95
	confidenceRelative = 0.7
	confidenceNoMatch  = 0.3
	confidenceEmpty    = 0.2
)

// Resolver turns natural-language time expressions into absolute windows.
// It is total: unresolvable input degrades to a low-confidence "current"
// scope instead of an error.
type Resolver struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver constructs the resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{
		logger: logger.With("component", "query.resolver"),
		now:    time.Now,
	}
}

type timeToken struct {
	token      string
	offsetDays int
	spanDays   int
	timeType   TimeType
	period     string
}

// Supported relative expressions across English, Traditional Chinese and
// Japanese. Matching prefers longer tokens, so "next week" wins over "next"
// style prefixes and "明後日" wins over "明日".
var timeTokens = []timeToken{
	{"day after tomorrow", 2, 1, TimeForecast, "day after tomorrow"},
	{"next week", 1, 7, TimeForecast, "next week"},
	{"last week", -7, 7, TimeHistorical, "last week"},
	{"this week", 0, 7, TimeForecast, "this week"},
	{"tomorrow", 1, 1, TimeForecast, "tomorrow"},
	{"yesterday", -1, 1, TimeHistorical, "yesterday"},
	{"tonight", 0, 1, TimeForecast, "tonight"},
	{"today", 0, 1, TimeCurrent, "today"},
	{"now", 0, 1, TimeCurrent, "now"},
	{"currently", 0, 1, TimeCurrent, "now"},
	{"明後日", 2, 1, TimeForecast, "day after tomorrow"},
	{"後天", 2, 1, TimeForecast, "day after tomorrow"},
	{"明天", 1, 1, TimeForecast, "tomorrow"},
	{"明日", 1, 1, TimeForecast, "tomorrow"},
	{"昨天", -1, 1, TimeHistorical, "yesterday"},
	{"昨日", -1, 1, TimeHistorical, "yesterday"},
	{"今天", 0, 1, TimeCurrent, "today"},
	{"今日", 0, 1, TimeCurrent, "today"},
	{"今晚", 0, 1, TimeForecast, "tonight"},
	{"下週", 1, 7, TimeForecast, "next week"},
	{"下周", 1, 7, TimeForecast, "next week"},
	{"来週", 1, 7, TimeForecast, "next week"},
	{"上週", -7, 7, TimeHistorical, "last week"},
	{"上周", -7, 7, TimeHistorical, "last week"},
	{"先週", -7, 7, TimeHistorical, "last week"},
	{"現在", 0, 1, TimeCurrent, "now"},
}

var absoluteDatePattern = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)

type tokenMatch struct {
	pos   int
	token timeToken
}

// Resolve scans the expression for time-indicating tokens and anchors the
// first unambiguous match against "now" in the given timezone. Discarded
// alternatives are logged for diagnostics only.
func (r *Resolver) Resolve(expression string, tz *time.Location) TimeScope {
	if tz == nil {
		tz = time.UTC
	}
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return TimeScope{Type: TimeCurrent, Confidence: confidenceEmpty}
	}

	if scope, ok := r.resolveAbsolute(trimmed, tz); ok {
		return scope
	}

	matches := findTokenMatches(trimmed)
	if len(matches) == 0 {
		return TimeScope{Type: TimeCurrent, Confidence: confidenceNoMatch}
	}
	chosen := matches[0]
	for _, discarded := range matches[1:] {
		if discarded.token.period != chosen.token.period {
			r.logger.Debug("discarded time token", "chosen", chosen.token.token, "discarded", discarded.token.token)
		}
	}

	start := startOfDay(r.now().In(tz), tz).AddDate(0, 0, chosen.token.offsetDays)
	end := start.AddDate(0, 0, chosen.token.spanDays)
	return TimeScope{
		Type:       chosen.token.timeType,
		Period:     chosen.token.period,
		Start:      &start,
		End:        &end,
		Confidence: confidenceRelative,
	}
}

func (r *Resolver) resolveAbsolute(expression string, tz *time.Location) (TimeScope, bool) {
	raw := absoluteDatePattern.FindString(expression)
	if raw == "" {
		return TimeScope{}, false
	}
	day, err := time.ParseInLocation("2006-01-02", raw, tz)
	if err != nil {
		return TimeScope{}, false
	}
	today := startOfDay(r.now().In(tz), tz)
	end := day.AddDate(0, 0, 1)

	timeType := TimeCurrent
	switch {
	case day.After(today):
		timeType = TimeForecast
	case day.Before(today):
		timeType = TimeHistorical
	}
	return TimeScope{
		Type:       timeType,
		Period:     raw,
		Start:      &day,
		End:        &end,
		Confidence: confidenceAbsolute,
	}, true
}

func findTokenMatches(expression string) []tokenMatch {
	lowered := strings.ToLower(expression)
	matches := make([]tokenMatch, 0, 2)
	for _, tok := range timeTokens {
		if pos := indexKeyword(lowered, tok.token); pos >= 0 {
			matches = append(matches, tokenMatch{pos: pos, token: tok})
		}
	}
	// Earliest match wins; at the same start the longer token takes priority.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].pos != matches[j].pos {
			return matches[i].pos < matches[j].pos
		}
		return len(matches[i].token.token) > len(matches[j].token.token)
	})
	return matches
}

func startOfDay(t time.Time, tz *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, tz)
}

// CurrentContext is a "now" snapshot injected into prompts so the AI parser
// never has to compute the current time itself.
type CurrentContext struct {
	Now         time.Time `json:"now"`
	Timezone    string    `json:"timezone"`
	Description string    `json:"description"`
}

// Snapshot builds the current context for the given timezone.
func (r *Resolver) Snapshot(tz *time.Location) CurrentContext {
	if tz == nil {
		tz = time.UTC
	}
	now := r.now().In(tz)
	return CurrentContext{
		Now:         now,
		Timezone:    tz.String(),
		Description: fmt.Sprintf("%s, %s (local time in %s)", now.Weekday(), now.Format("2006-01-02 15:04"), tz.String()),
	}
}
