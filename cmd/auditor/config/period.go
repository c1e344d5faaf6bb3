package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ErrInvalidPeriod is returned for periods that are neither human nor Go durations
var ErrInvalidPeriod = errors.New("invalid period, expected e.g. '5 days' or '2 months'")

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 2629746 * time.Second  // average Gregorian month
	year  = 31556952 * time.Second // average Gregorian year
)

var periodUnits = map[string]time.Duration{
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": day, "day": day, "days": day,
	"w": week, "week": week, "weeks": week,
	"month": month, "months": month,
	"y": year, "year": year, "years": year,
}

// ParsePeriod parses "5 days", "2 months 1 week", "36h" and similar.
// Terms are summed; Go duration syntax is accepted as is.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPeriod)
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("%w: %q is negative", ErrInvalidPeriod, s)
		}
		return d, nil
	}

	tokens := tokenize(s)
	if len(tokens)%2 != 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}

	var total time.Duration
	for i := 0; i < len(tokens); i += 2 {
		n, err := strconv.ParseUint(tokens[i], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: %q is not a count", ErrInvalidPeriod, tokens[i])
		}
		unit, ok := periodUnits[tokens[i+1]]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidPeriod, tokens[i+1])
		}
		if n > uint64(math.MaxInt64/unit) {
			return 0, fmt.Errorf("%w: %q is too long", ErrInvalidPeriod, s)
		}
		d := time.Duration(n) * unit
		if total > math.MaxInt64-d {
			return 0, fmt.Errorf("%w: %q is too long", ErrInvalidPeriod, s)
		}
		total += d
	}
	return total, nil
}

// tokenize splits "2months, 3 d" into ["2" "months" "3" "d"].
func tokenize(s string) []string {
	var (
		tokens []string
		cur    strings.Builder
		digits bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsSpace(r) || r == ',':
			flush()
		case unicode.IsDigit(r):
			if !digits {
				flush()
			}
			digits = true
			cur.WriteRune(r)
		default:
			if digits {
				flush()
			}
			digits = false
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
