package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"pagespeed-tracker/internal/domain"
	"pagespeed-tracker/internal/util"

	_ "github.com/mattn/go-sqlite3"
)

const DefaultBusyTimeout = 5 * time.Second

// Fixed-width so that text order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	url VARCHAR(500) NOT NULL,
	run_datetime TEXT,
	strategy VARCHAR(20) NOT NULL DEFAULT 'mobile' CHECK (strategy IN ('mobile', 'desktop')),

	score_performance INTEGER,
	score_accessibility INTEGER,
	score_best_practices INTEGER,
	score_seo INTEGER,

	fcp_ms INTEGER,
	lcp_ms INTEGER,
	inp_ms INTEGER,
	ttfb_ms INTEGER,
	cls REAL,
	speed_index_ms INTEGER,
	tbt_ms INTEGER,

	total_requests INTEGER,
	total_transfer_kb INTEGER,

	notes VARCHAR(2000),

	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_url ON metrics(url);
CREATE INDEX IF NOT EXISTS idx_metrics_run_datetime ON metrics(run_datetime);
CREATE INDEX IF NOT EXISTS idx_metrics_created_at ON metrics(created_at);
`

const metricColumns = `id, url, run_datetime, strategy,
	score_performance, score_accessibility, score_best_practices, score_seo,
	fcp_ms, lcp_ms, inp_ms, ttfb_ms, cls, speed_index_ms, tbt_ms,
	total_requests, total_transfer_kb, notes, created_at`

const insertMetricSQL = `INSERT INTO metrics(url, run_datetime, strategy,
	score_performance, score_accessibility, score_best_practices, score_seo,
	fcp_ms, lcp_ms, inp_ms, ttfb_ms, cls, speed_index_ms, tbt_ms,
	total_requests, total_transfer_kb, notes, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectMetricByIDSQL = "SELECT " + metricColumns + " FROM metrics WHERE id = ?"

const selectRecentMetricsSQL = "SELECT " + metricColumns + " FROM metrics ORDER BY created_at DESC, id DESC LIMIT ?"

type Option func(*SQLiteStore)

func WithBusyTimeout(d time.Duration) Option {
	return func(s *SQLiteStore) {
		s.busyTimeout = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		s.now = now
	}
}

type SQLiteStore struct {
	db          *sql.DB
	dbPath      string
	busyTimeout time.Duration
	now         func() time.Time
}

func NewSQLiteStore(path string, opts ...Option) *SQLiteStore {
	s := &SQLiteStore{
		dbPath:      path,
		busyTimeout: DefaultBusyTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSQLiteStoreFromDB wraps an already opened handle. Init will not reopen it.
func NewSQLiteStoreFromDB(db *sql.DB, opts ...Option) *SQLiteStore {
	s := NewSQLiteStore("", opts...)
	s.db = db
	return s
}

// Init opens the database and creates the schema. Running it against an
// existing database leaves the data untouched.
func (s *SQLiteStore) Init() error {
	var err error

	if s.db == nil {
		if dir := filepath.Dir(s.dbPath); dir != "." {
			if err = util.CheckAndCreateFolder(dir); err != nil {
				return fmt.Errorf("error creating database folder: %w", err)
			}
		}

		s.db, err = sql.Open("sqlite3", s.dsn())
		if err != nil {
			return fmt.Errorf("error opening database: %w", err)
		}
	}

	if err = s.db.Ping(); err != nil {
		return fmt.Errorf("error connecting to database: %w", err)
	}

	if _, err = s.db.Exec(createSchemaSQL); err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}

	log.Println("SQLiteStore initialized.")
	return nil
}

// WAL lets readers run alongside the single writer; _txlock=immediate takes
// the write lock at BEGIN so concurrent inserts wait on busy_timeout instead
// of failing on lock upgrade.
func (s *SQLiteStore) dsn() string {
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate",
		s.dbPath, s.busyTimeout.Milliseconds())
}

func (s *SQLiteStore) StoreMetric(ctx context.Context, m domain.Metric) (domain.Metric, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return domain.Metric{}, fmt.Errorf("error acquiring connection: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return domain.Metric{}, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// Taken under the write lock, so created_at never goes backwards relative to id.
	m.CreatedAt = s.now().UTC()

	var runDatetime *string
	if m.RunDatetime != nil {
		v := m.RunDatetime.Format(timeLayout)
		runDatetime = &v
	}

	res, err := tx.ExecContext(ctx, insertMetricSQL,
		m.URL, runDatetime, string(m.Strategy),
		m.ScorePerformance, m.ScoreAccessibility, m.ScoreBestPractices, m.ScoreSEO,
		m.FCPMs, m.LCPMs, m.INPMs, m.TTFBMs, m.CLS, m.SpeedIndexMs, m.TBTMs,
		m.TotalRequests, m.TotalTransferKB, m.Notes, m.CreatedAt.Format(timeLayout))
	if err != nil {
		return domain.Metric{}, fmt.Errorf("error inserting metric: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return domain.Metric{}, fmt.Errorf("error reading inserted id: %w", err)
	}

	stored, err := scanMetric(tx.QueryRowContext(ctx, selectMetricByIDSQL, id))
	if err != nil {
		return domain.Metric{}, fmt.Errorf("error reading inserted metric: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.Metric{}, fmt.Errorf("error committing metric: %w", err)
	}
	return stored, nil
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]domain.Metric, error) {
	if limit <= 0 {
		return nil, domain.ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, selectRecentMetricsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	fetchedMetrics := make([]domain.Metric, 0, min(limit, 64))

	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		fetchedMetrics = append(fetchedMetrics, m)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return fetchedMetrics, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMetric(row rowScanner) (domain.Metric, error) {
	var (
		m                                                    domain.Metric
		strategy, createdAt                                  string
		runDatetime, notes                                   sql.NullString
		perf, access, bestPractices, seo                     sql.NullInt64
		fcp, lcp, inp, ttfb, speedIndex, tbt, reqs, transfer sql.NullInt64
		cls                                                  sql.NullFloat64
	)

	err := row.Scan(&m.ID, &m.URL, &runDatetime, &strategy,
		&perf, &access, &bestPractices, &seo,
		&fcp, &lcp, &inp, &ttfb, &cls, &speedIndex, &tbt,
		&reqs, &transfer, &notes, &createdAt)
	if err != nil {
		return domain.Metric{}, err
	}

	m.Strategy = domain.Strategy(strategy)
	m.ScorePerformance = intOrNil(perf)
	m.ScoreAccessibility = intOrNil(access)
	m.ScoreBestPractices = intOrNil(bestPractices)
	m.ScoreSEO = intOrNil(seo)
	m.FCPMs = intOrNil(fcp)
	m.LCPMs = intOrNil(lcp)
	m.INPMs = intOrNil(inp)
	m.TTFBMs = intOrNil(ttfb)
	m.SpeedIndexMs = intOrNil(speedIndex)
	m.TBTMs = intOrNil(tbt)
	m.TotalRequests = intOrNil(reqs)
	m.TotalTransferKB = intOrNil(transfer)
	if cls.Valid {
		v := cls.Float64
		m.CLS = &v
	}
	if notes.Valid {
		v := notes.String
		m.Notes = &v
	}

	if runDatetime.Valid {
		t, err := time.Parse(time.RFC3339Nano, runDatetime.String)
		if err != nil {
			return domain.Metric{}, fmt.Errorf("bad run_datetime %q: %w", runDatetime.String, err)
		}
		m.RunDatetime = &t
	}

	m.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return domain.Metric{}, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	return m, nil
}

func intOrNil(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
