// Package guard throttles evaluation requests with an arithmetic challenge
// and per-client sliding windows. State lives in memory only; a restart
// clears every counter.
package guard

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Reason explains a denial.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonRateLimited   Reason = "rate limited"
	ReasonCaptchaFailed Reason = "captcha failed"
)

// Decision is the typed result of Admit and Gate.
type Decision struct {
	Allowed bool
	Reason  Reason
	// RetryAfter is set when rate limited: the time until the oldest
	// admission in the exhausted window expires.
	RetryAfter time.Duration
}

// Window allows at most Limit admissions in any rolling Span.
type Window struct {
	Limit int
	Span  time.Duration
}

type Config struct {
	Windows []Window
	// Captcha disables the challenge check when false.
	Captcha bool
}

func DefaultConfig() Config {
	return Config{
		Windows: []Window{
			{Limit: 10, Span: time.Minute},
			{Limit: 100, Span: time.Hour},
		},
		Captcha: true,
	}
}

func (c Config) Validate() error {
	if len(c.Windows) == 0 {
		return errors.New("guard needs at least one rate window")
	}
	for _, w := range c.Windows {
		if w.Limit <= 0 || w.Span <= 0 {
			return fmt.Errorf("invalid rate window %d/%s", w.Limit, w.Span)
		}
	}
	return nil
}

// Option customises a Guard, mostly for tests.
type Option func(*Guard)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) { g.now = now }
}

// WithRand replaces the random source used for challenges.
func WithRand(r *rand.Rand) Option {
	return func(g *Guard) { g.rng = r }
}

type clientState struct {
	mu         sync.Mutex
	admissions []time.Time
	pending    *Challenge

	// lastSeen is guarded by Guard.mu.
	lastSeen time.Time
}

// Guard holds per-client state. Each client has its own lock; the map lock
// only protects the client table.
type Guard struct {
	cfg     Config
	longest time.Duration
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu        sync.Mutex
	clients   map[string]*clientState
	lastSweep time.Time
}

func New(cfg Config, opts ...Option) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Guard{
		cfg:     cfg,
		now:     time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clients: make(map[string]*clientState),
	}
	for _, w := range cfg.Windows {
		g.longest = max(g.longest, w.Span)
	}
	for _, opt := range opts {
		opt(g)
	}
	g.lastSweep = g.now()
	return g, nil
}

// CaptchaEnabled reports whether Gate checks challenge answers.
func (g *Guard) CaptchaEnabled() bool { return g.cfg.Captcha }

// Challenge issues a new challenge for clientID, replacing any outstanding one.
func (g *Guard) Challenge(clientID string) Challenge {
	g.rngMu.Lock()
	ch := NewChallenge(g.rng)
	g.rngMu.Unlock()

	st := g.client(clientID)
	st.mu.Lock()
	st.pending = &ch
	st.mu.Unlock()
	return ch
}

// Verify checks answer against the outstanding challenge and consumes it,
// so every attempt needs a fresh challenge.
func (g *Guard) Verify(clientID, answer string) bool {
	st := g.client(clientID)
	st.mu.Lock()
	defer st.mu.Unlock()

	pending := st.pending
	st.pending = nil
	if pending == nil {
		return false
	}
	got, err := strconv.Atoi(strings.TrimSpace(answer))
	return err == nil && got == pending.Answer
}

// Admit records an admission for clientID unless a window is full.
func (g *Guard) Admit(clientID string) Decision {
	st := g.client(clientID)
	st.mu.Lock()
	defer st.mu.Unlock()

	now := g.now()
	st.admissions = prune(st.admissions, now.Add(-g.longest))

	for _, w := range g.cfg.Windows {
		inWindow := st.admissions[firstAfter(st.admissions, now.Add(-w.Span)):]
		if len(inWindow) >= w.Limit {
			oldest := inWindow[len(inWindow)-w.Limit]
			return Decision{Reason: ReasonRateLimited, RetryAfter: oldest.Add(w.Span).Sub(now)}
		}
	}
	st.admissions = append(st.admissions, now)
	return Decision{Allowed: true}
}

// Gate verifies the captcha (when enabled) and then admits. A failed captcha
// never consumes a rate slot.
func (g *Guard) Gate(clientID, answer string) Decision {
	if g.cfg.Captcha && !g.Verify(clientID, answer) {
		return Decision{Reason: ReasonCaptchaFailed}
	}
	return g.Admit(clientID)
}

// Clients returns the number of tracked clients.
func (g *Guard) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

func (g *Guard) client(id string) *clientState {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now.Sub(g.lastSweep) >= g.longest {
		g.sweepLocked(now)
	}
	st, ok := g.clients[id]
	if !ok {
		st = &clientState{}
		g.clients[id] = st
	}
	st.lastSeen = now
	return st
}

// sweepLocked drops clients idle for longer than the longest window.
func (g *Guard) sweepLocked(now time.Time) {
	g.lastSweep = now
	cutoff := now.Add(-g.longest)
	for id, st := range g.clients {
		if st.lastSeen.Before(cutoff) {
			delete(g.clients, id)
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := firstAfter(ts, cutoff)
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// firstAfter returns the index of the first timestamp strictly after cutoff.
func firstAfter(ts []time.Time, cutoff time.Time) int {
	for i, t := range ts {
		if t.After(cutoff) {
			return i
		}
	}
	return len(ts)
}
