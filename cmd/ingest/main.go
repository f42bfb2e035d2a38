package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/spf13/pflag"

	"pagespeed-tracker/internal/config"
	"pagespeed-tracker/internal/domain"
	"pagespeed-tracker/internal/repository"
)

func main() {
	var (
		configPath string
		dbPath     string
		url        string
		count      int
		span       time.Duration
	)

	pflag.StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	pflag.StringVar(&dbPath, "db", "", "Path to the SQLite database (default from config)")
	pflag.StringVar(&url, "url", "https://example.com", "Audited URL")
	pflag.IntVarP(&count, "count", "n", 30, "Number of audits to generate")
	pflag.DurationVar(&span, "span", 24*time.Hour, "Spread audit run times over this window ending now")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	if dbPath == "" {
		dbPath = cfg.Database.Path
	}

	sqliteStore := repository.NewSQLiteStore(dbPath, repository.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err := sqliteStore.Init(); err != nil {
		log.Fatalf("Failed to initialize SQLite store for ingestion: %v", err)
	}
	defer sqliteStore.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	stored := generateAndIngest(context.Background(), sqliteStore, rng, url, count, span)
	log.Printf("Data ingestion complete: %d of %d audits stored.", stored, count)
}

func generateAndIngest(ctx context.Context, s domain.MetricStore, rng *rand.Rand, url string, count int, span time.Duration) int {
	endTime := time.Now().UTC()
	startTime := endTime.Add(-span)

	log.Printf("Ingesting %d audits for %s from %s to %s...", count, url, startTime.Format(time.RFC3339), endTime.Format(time.RFC3339))

	stored := 0
	for i := 0; i < count; i++ {
		input := randomAudit(rng, url)
		if count > 1 {
			runAt := startTime.Add(span * time.Duration(i) / time.Duration(count-1)).Format(time.RFC3339)
			input.RunDatetime = &runAt
		}

		metric, err := domain.NewMetric(input)
		if err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				log.Printf("Skipping invalid audit %d: %v", i, verr.Violations)
				continue
			}
			log.Printf("Skipping audit %d: %v", i, err)
			continue
		}

		if _, err := s.StoreMetric(ctx, metric); err != nil {
			log.Printf("Error inserting audit %d: %v", i, err)
			continue
		}
		stored++
	}
	return stored
}

func randomAudit(rng *rand.Rand, url string) domain.MetricInput {
	score := func() *int { v := 40 + rng.Intn(61); return &v }
	ms := func(lo, hi int) *int { v := lo + rng.Intn(hi-lo+1); return &v }

	strategy := string(domain.StrategyMobile)
	if rng.Intn(2) == 0 {
		strategy = string(domain.StrategyDesktop)
	}
	cls := float64(rng.Intn(400)) / 1000
	notes := fmt.Sprintf("generated by ingest (%s)", strategy)

	return domain.MetricInput{
		URL:                url,
		Strategy:           &strategy,
		ScorePerformance:   score(),
		ScoreAccessibility: score(),
		ScoreBestPractices: score(),
		ScoreSEO:           score(),
		FCPMs:              ms(300, 3000),
		LCPMs:              ms(800, 6000),
		INPMs:              ms(50, 600),
		TTFBMs:             ms(50, 1200),
		CLS:                &cls,
		SpeedIndexMs:       ms(800, 7000),
		TBTMs:              ms(0, 900),
		TotalRequests:      ms(10, 200),
		TotalTransferKB:    ms(100, 5000),
		Notes:              &notes,
	}
}
