package domain

import (
	"context"
	"time"
)

type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

const DefaultStrategy = StrategyMobile

// Metric is one stored performance-audit sample. Optional fields are nil when
// the audit did not report them.
type Metric struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	RunDatetime *time.Time `json:"run_datetime"`
	Strategy    Strategy   `json:"strategy"`

	ScorePerformance   *int `json:"score_performance"`
	ScoreAccessibility *int `json:"score_accessibility"`
	ScoreBestPractices *int `json:"score_best_practices"`
	ScoreSEO           *int `json:"score_seo"`

	FCPMs        *int     `json:"fcp_ms"`
	LCPMs        *int     `json:"lcp_ms"`
	INPMs        *int     `json:"inp_ms"`
	TTFBMs       *int     `json:"ttfb_ms"`
	CLS          *float64 `json:"cls"`
	SpeedIndexMs *int     `json:"speed_index_ms"`
	TBTMs        *int     `json:"tbt_ms"`

	TotalRequests   *int `json:"total_requests"`
	TotalTransferKB *int `json:"total_transfer_kb"`

	Notes *string `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
}

// MetricInput is the candidate record accepted from clients. It has no id or
// created_at; those are assigned by the store.
type MetricInput struct {
	URL         string  `json:"url"`
	RunDatetime *string `json:"run_datetime"`
	Strategy    *string `json:"strategy"`

	ScorePerformance   *int `json:"score_performance"`
	ScoreAccessibility *int `json:"score_accessibility"`
	ScoreBestPractices *int `json:"score_best_practices"`
	ScoreSEO           *int `json:"score_seo"`

	FCPMs        *int     `json:"fcp_ms"`
	LCPMs        *int     `json:"lcp_ms"`
	INPMs        *int     `json:"inp_ms"`
	TTFBMs       *int     `json:"ttfb_ms"`
	CLS          *float64 `json:"cls"`
	SpeedIndexMs *int     `json:"speed_index_ms"`
	TBTMs        *int     `json:"tbt_ms"`

	TotalRequests   *int `json:"total_requests"`
	TotalTransferKB *int `json:"total_transfer_kb"`

	Notes *string `json:"notes"`
}

type MetricStore interface {
	Init() error
	// StoreMetric persists m and returns it with ID and CreatedAt populated.
	StoreMetric(ctx context.Context, m Metric) (Metric, error)
	// ListRecent returns up to limit metrics, newest first.
	ListRecent(ctx context.Context, limit int) ([]Metric, error)
	Close() error
}
