package endpoints

import (
	"errors"

	"pagespeed-tracker/internal/domain"
)

const (
	API_SUCCESS = iota + 303000 // 303000
	API_FAILURE                 // 303001 - Generic API failure
)

const (
	INVALID_REQUEST_BODY = iota + 101 // 101 - Body is not valid JSON for the metric schema
	INVALID_PARAMETERS                // 102 - Query parameter is not an integer
	INVALID_LIMIT                     // 103 - limit is zero or negative
	VALIDATION_FAILED                 // 104 - Metric violates one or more field constraints
	REQUEST_CANCELLED                 // 105 - Request was cancelled by client or server timeout
	STORAGE_FAILURE                   // 106 - Database read or write failed
)

var (
	ErrInvalidRequestBody = errors.New("invalid request body format")
	ErrInvalidParameters  = errors.New("invalid limit parameter; must be an integer")
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
	ErrStorageFailure     = errors.New("metric storage is unavailable")
	ErrMethodNotAllowed   = errors.New("method not allowed")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, ErrInvalidRequestBody):
		return INVALID_REQUEST_BODY
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, domain.ErrInvalidLimit):
		return INVALID_LIMIT
	case errors.Is(err, domain.ErrInvalidMetric):
		return VALIDATION_FAILED
	case errors.Is(err, ErrRequestCancelled):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrStorageFailure):
		return STORAGE_FAILURE
	default:
		return API_FAILURE // Default for any unhandled error
	}
}
