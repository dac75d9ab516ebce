package handlers

import "net/http"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Videos       VideoStore
	Fetcher      FetchController
	AdminLimiter RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Fetcher: deps.Fetcher}
	videos := VideoHandler{Videos: deps.Videos}
	admin := AdminHandler{Fetcher: deps.Fetcher, Limiter: deps.AdminLimiter}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/videos", videos.List)
	mux.HandleFunc("/api/v1/videos/latest", videos.Latest)
	mux.HandleFunc("/api/v1/videos/stats", videos.Stats)
	mux.HandleFunc("/api/v1/videos/", videos.Get)
	mux.HandleFunc("/api/v1/admin/status", admin.Status)
	mux.HandleFunc("/api/v1/admin/fetcher/start", admin.Start)
	mux.HandleFunc("/api/v1/admin/fetcher/stop", admin.Stop)
	mux.HandleFunc("/api/v1/admin/fetcher/force", admin.ForceFetch)
}
