package quota

import (
	"errors"
	"sync"
	"time"
)

// ErrAllExhausted indicates that no credential in the pool is currently usable.
// This is an expected condition while waiting for daily quotas to reset.
var ErrAllExhausted = errors.New("all api credentials exhausted")

// resetWindow is how long a credential stays exhausted before its daily
// allotment is considered replenished by the provider.
const resetWindow = 24 * time.Hour

// Credential is an API key together with its quota-consumption state. All
// mutable fields are owned by the Pool and must only be changed through its
// recording operations; callers may read Key freely.
type Credential struct {
	Key       string
	Consumed  int
	Ceiling   int
	Exhausted bool
	Invalid   bool
	LastReset time.Time
}

// Suffix returns the last four characters of the key for log output.
func (c *Credential) Suffix() string {
	if len(c.Key) <= 4 {
		return c.Key
	}
	return c.Key[len(c.Key)-4:]
}

// Pool rotates among API credentials, tracking per-credential quota
// consumption, exhaustion, and lazy 24h resets.
type Pool struct {
	mu     sync.Mutex
	creds  []*Credential
	cursor int
	now    func() time.Time
}

// NewPool constructs a pool from the provided API keys, each with the same
// daily quota ceiling.
func NewPool(keys []string, ceiling int) *Pool {
	p := &Pool{now: time.Now}
	start := p.now().UTC()
	for _, key := range keys {
		p.creds = append(p.creds, &Credential{
			Key:       key,
			Ceiling:   ceiling,
			LastReset: start,
		})
	}
	return p
}

// NextAvailable returns the next usable credential in round-robin order,
// starting just past the credential returned last time. Exhausted credentials
// whose reset window has elapsed are reset in place, so no timer is needed.
// Returns ErrAllExhausted when every credential is exhausted or invalid.
func (p *Pool) NextAvailable() (*Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	if n == 0 {
		return nil, ErrAllExhausted
	}

	now := p.now().UTC()
	for i := 1; i <= n; i++ {
		idx := (p.cursor + i) % n
		cred := p.creds[idx]
		p.maybeResetLocked(cred, now)
		if cred.Exhausted || cred.Invalid {
			continue
		}
		p.cursor = idx
		return cred, nil
	}

	return nil, ErrAllExhausted
}

// RecordUsage charges cost units against the credential. Once consumption
// reaches the ceiling the credential is marked exhausted until its next reset.
func (p *Pool) RecordUsage(cred *Credential, cost int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred.Consumed += cost
	if cred.Consumed >= cred.Ceiling {
		cred.Exhausted = true
	}
}

// MarkExhausted force-exhausts a credential after the provider rejected it for
// quota reasons. The local counter is pinned to the ceiling so the pool skips
// the credential without needing the remote error again.
func (p *Pool) MarkExhausted(cred *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred.Exhausted = true
	if cred.Consumed < cred.Ceiling {
		cred.Consumed = cred.Ceiling
	}
}

// MarkInvalid permanently removes a credential from rotation. Unlike
// exhaustion, invalid credentials never auto-reset.
func (p *Pool) MarkInvalid(cred *Credential) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cred.Invalid = true
}

func (p *Pool) maybeResetLocked(cred *Credential, now time.Time) {
	if cred.Invalid {
		return
	}
	if now.Sub(cred.LastReset) < resetWindow {
		return
	}
	cred.Consumed = 0
	cred.Exhausted = false
	cred.LastReset = now
}

// Snapshot summarises pool state for status reporting. It is a pure read;
// pending resets are applied lazily by NextAvailable, not here.
type Snapshot struct {
	Total     int         `json:"total"`
	Available int         `json:"available"`
	Exhausted int         `json:"exhausted"`
	Invalid   int         `json:"invalid"`
	Cursor    int         `json:"current_index"`
	Keys      []KeyStatus `json:"keys"`
}

// KeyStatus describes a single credential without exposing the full key.
type KeyStatus struct {
	Index     int       `json:"index"`
	KeySuffix string    `json:"key_suffix"`
	Consumed  int       `json:"consumed"`
	Ceiling   int       `json:"ceiling"`
	Exhausted bool      `json:"exhausted"`
	Invalid   bool      `json:"invalid"`
	ResetAt   time.Time `json:"reset_at"`
}

// Snapshot returns the current pool counts and per-key status.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{
		Total:  len(p.creds),
		Cursor: p.cursor,
	}

	for i, cred := range p.creds {
		switch {
		case cred.Invalid:
			snap.Invalid++
		case cred.Exhausted:
			snap.Exhausted++
		default:
			snap.Available++
		}

		snap.Keys = append(snap.Keys, KeyStatus{
			Index:     i,
			KeySuffix: cred.Suffix(),
			Consumed:  cred.Consumed,
			Ceiling:   cred.Ceiling,
			Exhausted: cred.Exhausted,
			Invalid:   cred.Invalid,
			ResetAt:   cred.LastReset.Add(resetWindow),
		})
	}

	return snap
}

// WithNowFunc allows tests to override the time source.
func (p *Pool) WithNowFunc(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}
