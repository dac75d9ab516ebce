package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/tubefeed/backend/internal/logging"
	"github.com/tubefeed/backend/internal/models"
	"github.com/tubefeed/backend/internal/quota"
	"github.com/tubefeed/backend/internal/youtube"
)

// ErrCycleInFlight rejects a forced fetch while another cycle is executing.
// At most one fetch cycle runs at any instant, scheduled or forced.
var ErrCycleInFlight = errors.New("a fetch cycle is already in flight")

// Failure reasons recorded on a cycle report.
const (
	ReasonNoCredential = "no_credential_available"
	ReasonQuota        = "quota_exceeded"
	ReasonInvalidKey   = "invalid_credential"
	ReasonTransient    = "transient_error"
	ReasonMalformed    = "malformed_response"
	ReasonStorage      = "storage_error"
)

// Report summarises one fetch cycle for status reporting. Only the latest
// report is retained; history is not persisted.
type Report struct {
	Timestamp time.Time `json:"timestamp"`
	Fetched   int       `json:"fetched"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Cost      int       `json:"cost"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason,omitempty"`
}

// Status is a point-in-time snapshot of the scheduler and its credential pool.
type Status struct {
	Running       bool           `json:"running"`
	Interval      time.Duration  `json:"interval"`
	Query         string         `json:"query"`
	MaxResults    int64          `json:"max_results"`
	FetchCount    int            `json:"fetch_count"`
	ErrorCount    int            `json:"error_count"`
	LastFetchTime *time.Time     `json:"last_fetch_time,omitempty"`
	LastReport    *Report        `json:"last_report,omitempty"`
	Quota         quota.Snapshot `json:"quota"`
}

// CredentialPool selects API credentials and tracks their consumption.
type CredentialPool interface {
	NextAvailable() (*quota.Credential, error)
	RecordUsage(cred *quota.Credential, cost int)
	MarkExhausted(cred *quota.Credential)
	MarkInvalid(cred *quota.Credential)
	Snapshot() quota.Snapshot
}

// VideoStore persists fetched videos.
type VideoStore interface {
	UpsertMany(ctx context.Context, videos []models.Video) (inserted, updated int, err error)
}

// Config carries the fetch parameters for the scheduler.
type Config struct {
	Query      string
	MaxResults int64
	Interval   time.Duration
}

// Scheduler drives the periodic fetch loop: select a credential, fetch via the
// video source, record usage, upsert results, repeat on an interval. It owns
// all of its mutable state behind one mutex; status reads never observe a
// partial update.
type Scheduler struct {
	cfg    Config
	pool   CredentialPool
	source youtube.Source
	store  VideoStore
	logger *slog.Logger

	mu         sync.Mutex
	running    bool
	inFlight   bool
	stopCh     chan struct{}
	fetchCount int
	errorCount int
	lastFetch  time.Time
	lastReport *Report

	// NowFunc allows tests to override the time source.
	NowFunc func() time.Time
}

// New constructs a scheduler with its collaborators. The loop is not started;
// call Start.
func New(cfg Config, pool CredentialPool, source youtube.Source, store VideoStore, logger *slog.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 50
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:     cfg,
		pool:    pool,
		source:  source,
		store:   store,
		logger:  logger,
		NowFunc: time.Now,
	}
}

// Start launches the background fetch loop. It is a no-op when already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn("fetch loop already running")
		return
	}

	s.running = true
	s.stopCh = make(chan struct{})
	go s.loop(s.stopCh)

	s.logger.Info("started fetch loop", "interval", s.cfg.Interval, "query", s.cfg.Query)
}

// Stop signals the fetch loop to exit. An in-flight cycle is allowed to finish;
// Stop never blocks waiting for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Warn("fetch loop not running")
		return
	}

	s.running = false
	close(s.stopCh)
	s.stopCh = nil

	s.logger.Info("stopped fetch loop")
}

// ForceFetch runs one cycle immediately. It is rejected with ErrCycleInFlight
// when a cycle is already executing, scheduled or forced.
func (s *Scheduler) ForceFetch(ctx context.Context) (Report, error) {
	return s.runCycle(ctx)
}

// Status reports the scheduler state together with a credential pool snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Running:    s.running,
		Interval:   s.cfg.Interval,
		Query:      s.cfg.Query,
		MaxResults: s.cfg.MaxResults,
		FetchCount: s.fetchCount,
		ErrorCount: s.errorCount,
		Quota:      s.pool.Snapshot(),
	}

	if !s.lastFetch.IsZero() {
		t := s.lastFetch
		status.LastFetchTime = &t
	}
	if s.lastReport != nil {
		report := *s.lastReport
		status.LastReport = &report
	}

	return status
}

func (s *Scheduler) loop(stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// The first cycle runs immediately rather than one interval in.
	if _, err := s.runCycle(context.Background()); err != nil && !errors.Is(err, ErrCycleInFlight) {
		s.logger.Error("fetch cycle failed", "error", err)
	}

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := s.runCycle(context.Background()); err != nil && !errors.Is(err, ErrCycleInFlight) {
				s.logger.Error("fetch cycle failed", "error", err)
			}
		}
	}
}

// runCycle claims the in-flight slot, executes one cycle, and folds the result
// into the counters. Only one caller can hold the slot at a time.
func (s *Scheduler) runCycle(ctx context.Context) (Report, error) {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return Report{}, ErrCycleInFlight
	}
	s.inFlight = true
	s.mu.Unlock()

	report := s.executeCycle(ctx)

	s.mu.Lock()
	s.inFlight = false
	s.fetchCount++
	if !report.Success {
		s.errorCount++
	}
	s.lastFetch = report.Timestamp
	s.lastReport = &report
	s.mu.Unlock()

	return report, nil
}

// cycleAttempts bounds how many credentials one cycle may try: the first pick
// plus exactly one retry after a quota or invalid-key rejection.
const cycleAttempts = 2

func (s *Scheduler) executeCycle(ctx context.Context) Report {
	ctx, span := logging.StartSpan(ctx, "fetch_cycle")
	defer span.End()

	logger := logging.FromContext(ctx)
	report := Report{Timestamp: s.NowFunc().UTC()}

	for attempt := 0; attempt < cycleAttempts; attempt++ {
		cred, err := s.pool.NextAvailable()
		if err != nil {
			logger.Warn("no api credential available, skipping cycle")
			report.Reason = ReasonNoCredential
			return report
		}

		result, err := s.source.Fetch(ctx, s.cfg.Query, s.cfg.MaxResults, cred.Key)
		switch {
		case err == nil:
			s.pool.RecordUsage(cred, result.Cost)
			return s.storeResults(ctx, report, result)

		case errors.Is(err, youtube.ErrQuotaExceeded):
			logger.Warn("credential quota exhausted", "key", cred.Suffix())
			s.pool.MarkExhausted(cred)
			report.Reason = ReasonQuota

		case errors.Is(err, youtube.ErrInvalidKey):
			logger.Error("credential rejected, removing from rotation", "key", cred.Suffix())
			s.pool.MarkInvalid(cred)
			report.Reason = ReasonInvalidKey

		case errors.Is(err, youtube.ErrMalformedResponse):
			logger.Error("malformed response from video api", "error", err)
			report.Reason = ReasonMalformed
			return report

		default:
			logger.Warn("transient fetch failure", "error", err)
			report.Reason = ReasonTransient
			return report
		}
	}

	logger.Warn("fetch cycle failed after credential retry", "reason", report.Reason)
	return report
}

func (s *Scheduler) storeResults(ctx context.Context, report Report, result youtube.FetchResult) Report {
	logger := logging.FromContext(ctx)

	report.Fetched = len(result.Videos)
	report.Cost = result.Cost

	if len(result.Videos) == 0 {
		logger.Info("no videos found this cycle")
		report.Success = true
		return report
	}

	inserted, updated, err := s.store.UpsertMany(ctx, result.Videos)
	if err != nil {
		logger.Error("store fetched videos", "error", err)
		report.Inserted = inserted
		report.Updated = updated
		report.Reason = ReasonStorage
		return report
	}

	report.Inserted = inserted
	report.Updated = updated
	report.Success = true

	logger.Info("fetch cycle completed",
		slog.Int("fetched", report.Fetched),
		slog.Int("inserted", inserted),
		slog.Int("updated", updated),
		slog.Int("cost", result.Cost),
	)

	return report
}
