package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tubefeed/backend/internal/config"
)

type fakePool struct{}

func (fakePool) Acquire(context.Context) (*pgxpool.Conn, error) {
	return nil, errors.New("not implemented")
}

func (fakePool) Close() {}

func TestBuildDependencies(t *testing.T) {
	cfg := config.Config{
		APIKeys:       []string{"key-a", "key-b"},
		DailyQuota:    10000,
		SearchCost:    100,
		SearchQuery:   "golang programming",
		MaxResults:    25,
		FetchInterval: time.Minute,
	}

	deps, scheduler := buildDependencies(fakePool{}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if deps.Videos == nil {
		t.Fatal("expected video repository to be configured")
	}
	if deps.Fetcher == nil {
		t.Fatal("expected fetch scheduler to be configured")
	}
	if deps.AdminLimiter == nil {
		t.Fatal("expected admin rate limiter to be configured")
	}
	if scheduler == nil {
		t.Fatal("expected scheduler to be returned for lifecycle control")
	}

	status := scheduler.Status()
	if status.Running {
		t.Fatal("expected scheduler to start stopped")
	}
	if status.Quota.Total != 2 {
		t.Fatalf("expected both credentials in the pool, got %d", status.Quota.Total)
	}
}
