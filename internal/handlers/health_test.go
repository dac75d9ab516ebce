package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tubefeed/backend/internal/fetcher"
)

func TestHealthHandlerHandle(t *testing.T) {
	handler := HealthHandler{Fetcher: &fetchControllerStub{status: fetcher.Status{Running: true, FetchCount: 4}}}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected json content type got %s", got)
	}

	var payload struct {
		Status         string `json:"status"`
		FetcherRunning bool   `json:"fetcher_running"`
		FetchCount     int    `json:"fetch_count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Status != "ok" || !payload.FetcherRunning || payload.FetchCount != 4 {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	req = httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec = httptest.NewRecorder()

	handler.Handle(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed got %d", rec.Code)
	}
}
