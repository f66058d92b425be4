package guard

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestGuard(t *testing.T, cfg Config) (*Guard, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	g, err := New(cfg, WithClock(clock.Now), WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	return g, clock
}

func answer(ch Challenge) string { return strconv.Itoa(ch.Answer) }

var questionRe = regexp.MustCompile(`^What is (\d+) ([+\-×]) (\d+)\?$`)

func TestNewChallenge_AnswersMatchQuestions(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 7))
	for range 500 {
		ch := NewChallenge(r)
		m := questionRe.FindStringSubmatch(ch.Question)
		require.NotNil(t, m, ch.Question)
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[3])
		var want int
		switch m[2] {
		case "+":
			want = a + b
		case "-":
			want = a - b
		default:
			want = a * b
		}
		assert.Equal(t, want, ch.Answer, ch.Question)
		assert.GreaterOrEqual(t, ch.Answer, 0)
	}
}

func TestAdmit_MinuteWindow(t *testing.T) {
	g, clock := newTestGuard(t, DefaultConfig())

	for i := range 10 {
		d := g.Admit("alice")
		require.True(t, d.Allowed, "call %d", i+1)
		clock.Advance(time.Second)
	}
	d := g.Admit("alice")
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonRateLimited, d.Reason)
	assert.Equal(t, 50*time.Second, d.RetryAfter)

	// 其他客户端互不影响。
	assert.True(t, g.Admit("bob").Allowed)

	clock.Advance(50 * time.Second)
	assert.True(t, g.Admit("alice").Allowed)
}

func TestAdmit_HourWindow(t *testing.T) {
	g, clock := newTestGuard(t, DefaultConfig())

	for i := range 100 {
		require.True(t, g.Admit("alice").Allowed, "call %d", i+1)
		clock.Advance(7 * time.Second)
	}
	d := g.Admit("alice")
	assert.Equal(t, ReasonRateLimited, d.Reason)

	clock.Advance(time.Hour)
	assert.True(t, g.Admit("alice").Allowed)
}

func TestGate_WrongCaptchaDoesNotConsumeSlot(t *testing.T) {
	g, _ := newTestGuard(t, Config{Windows: []Window{{Limit: 1, Span: time.Minute}}, Captcha: true})

	ch := g.Challenge("alice")
	d := g.Gate("alice", strconv.Itoa(ch.Answer+1))
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonCaptchaFailed, d.Reason)

	ch = g.Challenge("alice")
	assert.True(t, g.Gate("alice", answer(ch)).Allowed)

	ch = g.Challenge("alice")
	assert.Equal(t, ReasonRateLimited, g.Gate("alice", answer(ch)).Reason)
}

func TestVerify_ConsumesChallenge(t *testing.T) {
	g, _ := newTestGuard(t, DefaultConfig())

	assert.False(t, g.Verify("alice", "4"), "no outstanding challenge")

	ch := g.Challenge("alice")
	assert.True(t, g.Verify("alice", " "+answer(ch)+" "))
	assert.False(t, g.Verify("alice", answer(ch)), "challenge is single use")

	ch = g.Challenge("alice")
	assert.False(t, g.Verify("alice", "not a number"))
	assert.False(t, g.Verify("alice", answer(ch)), "failure also consumes the challenge")
}

func TestChallenge_ReplacesOutstanding(t *testing.T) {
	g, _ := newTestGuard(t, DefaultConfig())

	first := g.Challenge("alice")
	second := g.Challenge("alice")
	if first.Answer != second.Answer {
		assert.False(t, g.Verify("alice", answer(first)))
	} else {
		assert.True(t, g.Verify("alice", answer(first)))
	}
}

func TestGate_CaptchaDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Captcha = false
	g, _ := newTestGuard(t, cfg)

	assert.False(t, g.CaptchaEnabled())
	assert.True(t, g.Gate("alice", "").Allowed)
}

func TestGuard_SweepsIdleClients(t *testing.T) {
	g, clock := newTestGuard(t, DefaultConfig())

	g.Admit("alice")
	g.Admit("bob")
	assert.Equal(t, 2, g.Clients())

	clock.Advance(2 * time.Hour)
	g.Admit("carol")
	assert.Equal(t, 1, g.Clients())
}

func TestAdmit_ConcurrentSameClient(t *testing.T) {
	g, _ := newTestGuard(t, DefaultConfig())

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Admit("alice").Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, allowed)
}

func TestConfig_Validate(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{Windows: []Window{{Limit: 0, Span: time.Minute}}})
	assert.Error(t, err)
	assert.NoError(t, DefaultConfig().Validate())
}
