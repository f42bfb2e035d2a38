package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
)

const (
	MaxURLLength   = 500
	MaxNotesLength = 2000
	MinScore       = 0
	MaxScore       = 100
)

var (
	ErrInvalidMetric = errors.New("metric failed validation")
	ErrInvalidLimit  = errors.New("limit must be positive")
)

// Layouts emitted by browser datetime-local inputs. Anything else goes
// through dateparse.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
}

func (v Violation) String() string {
	return v.Field + ": " + v.Constraint
}

type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("%s: %s", ErrInvalidMetric, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMetric
}

// Validate checks every bounded field and returns all violations found.
// An empty result means the input can be persisted.
func (in MetricInput) Validate() []Violation {
	var out []Violation

	switch {
	case strings.TrimSpace(in.URL) == "":
		out = append(out, Violation{"url", "is required"})
	case utf8.RuneCountInString(in.URL) > MaxURLLength:
		out = append(out, Violation{"url", fmt.Sprintf("must be at most %d characters", MaxURLLength)})
	}

	if in.RunDatetime != nil && strings.TrimSpace(*in.RunDatetime) != "" {
		if _, err := ParseRunDatetime(*in.RunDatetime); err != nil {
			out = append(out, Violation{"run_datetime", "must be a valid date-time"})
		}
	}

	if in.Strategy != nil {
		if s := Strategy(*in.Strategy); s != StrategyMobile && s != StrategyDesktop {
			out = append(out, Violation{"strategy", `must be one of "mobile", "desktop"`})
		}
	}

	scores := []struct {
		name string
		val  *int
	}{
		{"score_performance", in.ScorePerformance},
		{"score_accessibility", in.ScoreAccessibility},
		{"score_best_practices", in.ScoreBestPractices},
		{"score_seo", in.ScoreSEO},
	}
	for _, s := range scores {
		if s.val != nil && (*s.val < MinScore || *s.val > MaxScore) {
			out = append(out, Violation{s.name, fmt.Sprintf("must be between %d and %d", MinScore, MaxScore)})
		}
	}

	counters := []struct {
		name string
		val  *int
	}{
		{"fcp_ms", in.FCPMs},
		{"lcp_ms", in.LCPMs},
		{"inp_ms", in.INPMs},
		{"ttfb_ms", in.TTFBMs},
		{"speed_index_ms", in.SpeedIndexMs},
		{"tbt_ms", in.TBTMs},
		{"total_requests", in.TotalRequests},
		{"total_transfer_kb", in.TotalTransferKB},
	}
	for _, c := range counters {
		if c.val != nil && *c.val < 0 {
			out = append(out, Violation{c.name, "must be greater than or equal to 0"})
		}
	}

	if in.CLS != nil && *in.CLS < 0 {
		out = append(out, Violation{"cls", "must be greater than or equal to 0"})
	}

	if in.Notes != nil && utf8.RuneCountInString(*in.Notes) > MaxNotesLength {
		out = append(out, Violation{"notes", fmt.Sprintf("must be at most %d characters", MaxNotesLength)})
	}

	return out
}

// NewMetric validates in and converts it into a Metric ready to be stored.
// The returned error is a *ValidationError when validation fails.
func NewMetric(in MetricInput) (Metric, error) {
	if violations := in.Validate(); len(violations) > 0 {
		return Metric{}, &ValidationError{Violations: violations}
	}

	m := Metric{
		URL:                in.URL,
		Strategy:           DefaultStrategy,
		ScorePerformance:   in.ScorePerformance,
		ScoreAccessibility: in.ScoreAccessibility,
		ScoreBestPractices: in.ScoreBestPractices,
		ScoreSEO:           in.ScoreSEO,
		FCPMs:              in.FCPMs,
		LCPMs:              in.LCPMs,
		INPMs:              in.INPMs,
		TTFBMs:             in.TTFBMs,
		CLS:                in.CLS,
		SpeedIndexMs:       in.SpeedIndexMs,
		TBTMs:              in.TBTMs,
		TotalRequests:      in.TotalRequests,
		TotalTransferKB:    in.TotalTransferKB,
		Notes:              in.Notes,
	}
	if in.Strategy != nil {
		m.Strategy = Strategy(*in.Strategy)
	}
	if in.RunDatetime != nil && strings.TrimSpace(*in.RunDatetime) != "" {
		t, err := ParseRunDatetime(*in.RunDatetime)
		if err != nil {
			return Metric{}, &ValidationError{Violations: []Violation{{"run_datetime", "must be a valid date-time"}}}
		}
		m.RunDatetime = &t
	}
	return m, nil
}

// ParseRunDatetime parses an audit time. Zone-less values are taken as UTC;
// an explicit offset is kept as given.
func ParseRunDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return dateparse.ParseIn(s, time.UTC)
}
