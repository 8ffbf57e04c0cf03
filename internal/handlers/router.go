package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ServiceName = "bulk-void-service"
	Version     = "1.0.0"
)

// NewRouter arma las rutas HTTP del servicio.
func NewRouter(voidHandler *VoidHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/void", WithLogging(voidHandler.Void))
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// HEALTH CHECK
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Service: ServiceName,
		Version: Version,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
