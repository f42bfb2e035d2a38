package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagespeed-tracker/internal/repository"
	"pagespeed-tracker/internal/util"
)

type testServer struct {
	*httptest.Server
}

func newTestServer(t *testing.T, opts Options, storeOpts ...repository.Option) testServer {
	t.Helper()

	store := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "metrics.db"), storeOpts...)
	require.NoError(t, store.Init())

	srv := httptest.NewServer(NewHandler(store, &util.MetricsLogger{}, opts))
	t.Cleanup(func() {
		srv.Close()
		store.Close()
	})
	return testServer{srv}
}

func (s testServer) post(t *testing.T, body string) (*http.Response, map[string]interface{}) {
	t.Helper()

	resp, err := http.Post(s.URL+"/metrics", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp, decoded
}

func (s testServer) list(t *testing.T, query string) (*http.Response, []map[string]interface{}) {
	t.Helper()

	resp, err := http.Get(s.URL + "/metrics" + query)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded []map[string]interface{}
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestInsertThenListReturnsSubmittedFields(t *testing.T) {
	srv := newTestServer(t, Options{})

	payload := map[string]interface{}{
		"url":                  "https://example.com/pricing",
		"run_datetime":         "2024-05-01T09:30:00+02:00",
		"strategy":             "desktop",
		"score_performance":    87,
		"score_accessibility":  92,
		"score_best_practices": 100,
		"score_seo":            0,
		"fcp_ms":               900,
		"lcp_ms":               1200,
		"inp_ms":               180,
		"ttfb_ms":              120,
		"cls":                  0.07,
		"speed_index_ms":       2100,
		"tbt_ms":               30,
		"total_requests":       54,
		"total_transfer_kb":    980,
		"notes":                "baseline",
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, created := srv.post(t, string(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, listed := srv.list(t, "?limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listed, 1)

	got := listed[0]
	for key, want := range payload {
		assert.EqualValues(t, want, got[key], key)
	}
	assert.EqualValues(t, 1, got["id"])
	assert.NotEmpty(t, got["created_at"])
	assert.Equal(t, created, got, "POST response and list entry describe the same record")
}

func TestMinimalInsertAppliesDefaults(t *testing.T) {
	srv := newTestServer(t, Options{})

	resp, created := srv.post(t, `{"url":"https://example.com","score_performance":87,"lcp_ms":1200}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.EqualValues(t, 1, created["id"])
	assert.Equal(t, "mobile", created["strategy"])
	assert.NotEmpty(t, created["created_at"])
	assert.Nil(t, created["run_datetime"], "run_datetime is not defaulted to the insertion time")
	assert.Nil(t, created["cls"])
	assert.Nil(t, created["notes"])
}

func TestRejectedInsertsAreNotPersisted(t *testing.T) {
	srv := newTestServer(t, Options{})

	for _, body := range []string{
		`{"url":"https://example.com","score_performance":-1}`,
		`{"url":"https://example.com","score_accessibility":101}`,
		`{"url":"https://example.com","strategy":"tablet"}`,
		`{"score_seo":50}`,
		`not json`,
	} {
		resp, decoded := srv.post(t, body)
		assert.GreaterOrEqual(t, resp.StatusCode, 400, body)
		assert.Less(t, resp.StatusCode, 500, body)
		assert.Equal(t, false, decoded["status"])
		assert.NotEmpty(t, decoded["error"])
	}

	resp, listed := srv.list(t, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, listed)
}

func TestListReturnsNewestFirst(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := start
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick = tick.Add(time.Second)
		return tick
	}
	srv := newTestServer(t, Options{}, repository.WithClock(clock))

	const total = 25
	for i := 0; i < total; i++ {
		resp, _ := srv.post(t, fmt.Sprintf(`{"url":"https://example.com/%d"}`, i))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, listed := srv.list(t, "?limit=7")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listed, 7)
	for i, m := range listed {
		assert.Equal(t, fmt.Sprintf("https://example.com/%d", total-1-i), m["url"])
	}

	resp, listed = srv.list(t, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, listed, 20, "limit defaults to 20")

	resp, listed = srv.list(t, "?limit=1000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, listed, total)
}

func TestListRejectsNonPositiveLimit(t *testing.T) {
	srv := newTestServer(t, Options{})
	srv.post(t, `{"url":"https://example.com"}`)

	for _, query := range []string{"?limit=0", "?limit=-5", "?limit=ten"} {
		resp, listed := srv.list(t, query)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.Nil(t, listed)
	}
}

func TestConcurrentInserts(t *testing.T) {
	srv := newTestServer(t, Options{})

	const workers = 25
	var wg sync.WaitGroup
	codes := make(chan int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := http.Post(srv.URL+"/metrics", "application/json",
				bytes.NewBufferString(fmt.Sprintf(`{"url":"https://example.com/c/%d","tbt_ms":%d}`, i, i)))
			if err != nil {
				codes <- 0
				return
			}
			resp.Body.Close()
			codes <- resp.StatusCode
		}(i)
	}
	wg.Wait()
	close(codes)

	for code := range codes {
		assert.Equal(t, http.StatusCreated, code)
	}

	resp, listed := srv.list(t, fmt.Sprintf("?limit=%d", workers))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, listed, workers)

	ids := map[float64]bool{}
	for _, m := range listed {
		ids[m["id"].(float64)] = true
	}
	assert.Len(t, ids, workers, "every insert gets its own id")
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStaticFilesAndCORS(t *testing.T) {
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>audits</h1>"), 0644))

	srv := newTestServer(t, Options{StaticDir: staticDir})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "audits")

	resp, listed := srv.list(t, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "API routes win over the static catch-all")
	assert.Empty(t, listed)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req, err = http.NewRequest(http.MethodOptions, srv.URL+"/metrics", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300, "preflight succeeds")
	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	srv := newTestServer(t, Options{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "trace-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "trace-123", resp.Header.Get(RequestIDHeader))
}
