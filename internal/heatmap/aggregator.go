// Package heatmap turns raw timestamp values into per-day counts and
// normalized densities.
//
// Only the day token of each value is used: the text before the first space
// is split on "-" and its last part must be a day from 1 to 31. Values that
// fail this are skipped with a diagnostic and never abort aggregation.
package heatmap

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// DaysInMonth is the number of day buckets; index i holds day i+1.
const DaysInMonth = 31

// DayCounts holds per-day event counts
type DayCounts [DaysInMonth]int

// Densities holds per-day counts normalized to [0,1]
type Densities [DaysInMonth]float64

// SkipReason explains why a timestamp value was not counted
type SkipReason string

const (
	SkipUnparsable SkipReason = "unparsable"
	SkipOutOfRange SkipReason = "out_of_range"
)

// Skip records one malformed value. Row is the 1-based position of the
// value in the input sequence.
type Skip struct {
	Row    int        `json:"row"`
	Value  string     `json:"value"`
	Reason SkipReason `json:"reason"`
	// Day is the parsed day for out-of-range skips
	Day int `json:"day,omitempty"`
}

// Message is the human-readable diagnostic for the skip
func (s Skip) Message() string {
	if s.Reason == SkipOutOfRange {
		return fmt.Sprintf("Invalid day detected: %d. Skipping.", s.Day)
	}
	return fmt.Sprintf("Invalid timestamp format: %s. Skipping.", s.Value)
}

// Result is the outcome of aggregating one column of timestamps
type Result struct {
	Counts    DayCounts `json:"counts"`
	Densities Densities `json:"densities"`
	// Total is the number of values that were counted
	Total   int    `json:"total"`
	Skipped []Skip `json:"skipped"`
}

// Max returns the largest day count
func (r *Result) Max() int {
	return r.Counts.Max()
}

// Max returns the largest count, or zero for an empty month
func (c DayCounts) Max() int {
	max := 0
	for _, n := range c {
		if n > max {
			max = n
		}
	}
	return max
}

// Sum returns the total of all counts
func (c DayCounts) Sum() int {
	sum := 0
	for _, n := range c {
		sum += n
	}
	return sum
}

// Normalize divides every count by the maximum. All-zero counts stay zero.
func Normalize(counts DayCounts) Densities {
	var densities Densities
	max := counts.Max()
	if max == 0 {
		return densities
	}
	for i, n := range counts {
		densities[i] = float64(n) / float64(max)
	}
	return densities
}

// DayOfMonth extracts the day from a value shaped like "YYYY-MM-DD[ rest]".
// Only the text before the first space and its last '-' separated token are
// considered; the token is not validated against the 1..31 range.
func DayOfMonth(value string) (int, error) {
	date, _, _ := strings.Cut(value, " ")
	token := date
	if i := strings.LastIndexByte(date, '-'); i >= 0 {
		token = date[i+1:]
	}
	day, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, fmt.Errorf("day token %q: %w", token, err)
	}
	return day, nil
}

// MonthLength returns the number of days in the month named by the year
// and month tokens preceding the day token. ok is false when the value does
// not carry a parsable year and month.
func MonthLength(value string) (days int, ok bool) {
	date, _, _ := strings.Cut(value, " ")
	tokens := strings.Split(date, "-")
	if len(tokens) < 3 {
		return 0, false
	}
	year, err := strconv.Atoi(strings.TrimSpace(tokens[len(tokens)-3]))
	if err != nil {
		return 0, false
	}
	month, err := strconv.Atoi(strings.TrimSpace(tokens[len(tokens)-2]))
	if err != nil || month < 1 || month > 12 {
		return 0, false
	}
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day(), true
}

// Aggregator buckets timestamp values by day of month
type Aggregator struct {
	logger      *slog.Logger
	monthLength bool
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithMonthLengthCheck toggles rejecting days past the end of the value's
// own month (e.g. "2024-02-30"). Enabled by default; when disabled only the
// 1..31 range applies.
func WithMonthLengthCheck(enabled bool) Option {
	return func(a *Aggregator) {
		a.monthLength = enabled
	}
}

// NewAggregator creates an aggregator; a nil logger uses slog.Default()
func NewAggregator(logger *slog.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Aggregator{
		logger:      logger.With(slog.String("component", "aggregator")),
		monthLength: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) inRange(value string, day int) bool {
	if day < 1 || day > DaysInMonth {
		return false
	}
	if a.monthLength {
		if n, ok := MonthLength(value); ok && day > n {
			return false
		}
	}
	return true
}

// Aggregate counts every value into its day bucket and normalizes the
// counts. Malformed values are skipped, logged and reported in
// Result.Skipped; they never fail the batch.
func (a *Aggregator) Aggregate(ctx context.Context, values []string) *Result {
	result := &Result{Skipped: []Skip{}}

	for i, value := range values {
		day, err := DayOfMonth(value)
		if err != nil {
			a.skip(ctx, result, Skip{Row: i + 1, Value: value, Reason: SkipUnparsable})
			continue
		}
		if !a.inRange(value, day) {
			a.skip(ctx, result, Skip{Row: i + 1, Value: value, Reason: SkipOutOfRange, Day: day})
			continue
		}
		result.Counts[day-1]++
		result.Total++
	}

	result.Densities = Normalize(result.Counts)

	a.logger.InfoContext(ctx, "Aggregated timestamps",
		slog.Int("values", len(values)),
		slog.Int("counted", result.Total),
		slog.Int("skipped", len(result.Skipped)),
		slog.Int("max_count", result.Max()))

	return result
}

func (a *Aggregator) skip(ctx context.Context, result *Result, s Skip) {
	result.Skipped = append(result.Skipped, s)
	a.logger.WarnContext(ctx, s.Message(),
		slog.Int("row", s.Row),
		slog.String("value", s.Value),
		slog.String("reason", string(s.Reason)))
}
