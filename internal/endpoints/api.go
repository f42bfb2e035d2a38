package endpoints

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"pagespeed-tracker/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// APIResponse is the error envelope. Successful calls write the payload
// itself so clients receive the record or the list directly.
type APIResponse struct {
	Status     bool               `json:"status"`
	Error      string             `json:"error,omitempty"`
	ErrorCode  int                `json:"error_code"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

func (res APIResponse) WriteErrorResponse(w http.ResponseWriter, err error) {
	res.WriteErrorResponseWithStatusCode(w, err, http.StatusInternalServerError)
}

func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, StatusCode int) {
	res.Status = false
	res.Error = err.Error()
	res.ErrorCode = GetErrorCode(err)

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		res.Violations = verr.Violations
	}

	errJson, _ := json.Marshal(res)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(StatusCode)
	w.Write(errJson)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, result interface{}) {
	res.WriteResultResponseWithStatusCode(w, result, http.StatusOK)
}

func (res APIResponse) WriteResultResponseWithStatusCode(w http.ResponseWriter, result interface{}, StatusCode int) {
	body, err := json.Marshal(result)
	if err != nil {
		res.WriteErrorResponse(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(StatusCode)
	w.Write(body)
}
