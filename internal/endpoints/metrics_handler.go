package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"pagespeed-tracker/internal/domain"
	"pagespeed-tracker/internal/util"
)

const (
	DefaultListLimit = 20
	maxBodyBytes     = 1 << 20
)

type Metrics struct {
	Response     APIResponse
	logger       *util.MetricsLogger
	store        domain.MetricStore
	defaultLimit int
}

func (m *Metrics) Init(store domain.MetricStore, webSlogger *util.MetricsLogger, defaultLimit int) {
	m.store = store
	m.logger = webSlogger
	m.defaultLimit = defaultLimit
	if m.defaultLimit <= 0 {
		m.defaultLimit = DefaultListLimit
	}
}

// CreateMetricHandler serves POST /metrics.
func (m *Metrics) CreateMetricHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodPost {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed on create:", r.Method)
		m.Response.WriteErrorResponseWithStatusCode(w, fmt.Errorf("%w: only POST requests are supported", ErrMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var input domain.MetricInput

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while unmarshalling JSON Body. Err -", err)
		m.Response.WriteErrorResponseWithStatusCode(w, fmt.Errorf("%w: %v", ErrInvalidRequestBody, err), http.StatusBadRequest)
		return
	}

	metric, err := domain.NewMetric(input)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Rejected metric for", input.URL, "-", err)
		m.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusUnprocessableEntity)
		return
	}

	stored, err := m.store.StoreMetric(r.Context(), metric)
	if err != nil {
		m.writeStoreError(w, "StoreMetric()", err)
		return
	}

	m.logger.LogEvent(util.LOG_LEVEL_DEBUG, "Stored metric", stored.ID, "for", stored.URL)
	m.Response.WriteResultResponseWithStatusCode(w, stored, http.StatusCreated)
}

// ListMetricsHandler serves GET /metrics?limit=N.
func (m *Metrics) ListMetricsHandler(w http.ResponseWriter, r *http.Request) {

	if r.Method != http.MethodGet {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed on list:", r.Method)
		m.Response.WriteErrorResponseWithStatusCode(w, fmt.Errorf("%w: only GET requests are supported", ErrMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	limit := m.defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit from URL. Err -", err)
			m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
			return
		}
	}

	if limit <= 0 {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Rejected non-positive limit", limit)
		m.Response.WriteErrorResponseWithStatusCode(w, domain.ErrInvalidLimit, http.StatusBadRequest)
		return
	}

	fetchedMetrics, err := m.store.ListRecent(r.Context(), limit)
	if err != nil {
		m.writeStoreError(w, "ListRecent()", err)
		return
	}

	m.Response.WriteResultResponse(w, fetchedMetrics)
}

func (m *Metrics) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled during", op)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
	case errors.Is(err, domain.ErrInvalidLimit):
		m.Response.WriteErrorResponseWithStatusCode(w, err, http.StatusBadRequest)
	default:
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while", op, "Err -", err)
		m.Response.WriteErrorResponse(w, ErrStorageFailure)
	}
}
