package endpoints

import "net/http"

type HealthStatus struct {
	Status string `json:"status"`
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	APIResponse{}.WriteResultResponse(w, HealthStatus{Status: "ok"})
}
