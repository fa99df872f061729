package session

import (
	"context"
	"encoding/base64"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_700_000_000, 0)

// mintToken signs claims with a throwaway key; the decoder never looks at
// the signature.
func mintToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-real-key"))
	require.NoError(t, err)
	return token
}

func admitted(ctx context.Context, g *Guard, role Role) bool {
	_, ok := g.RequireAuth(ctx, role)
	return ok
}

func rawPayloadToken(payload string) string {
	return "e30." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".c2ln"
}

type countingDecoder struct {
	inner Decoder
	mu    sync.Mutex
	calls map[string]int
}

func newCountingDecoder() *countingDecoder {
	return &countingDecoder{inner: NewTokenDecoder(), calls: make(map[string]int)}
}

func (d *countingDecoder) Decode(raw string) (*Claims, error) {
	d.mu.Lock()
	d.calls[raw]++
	d.mu.Unlock()
	return d.inner.Decode(raw)
}

func (d *countingDecoder) count(raw string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[raw]
}

type recordingPresenter struct {
	mu           sync.Mutex
	unauthorized []string
	navigations  []string
	denials      []string
}

func (p *recordingPresenter) ShowUnauthorized(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unauthorized = append(p.unauthorized, message)
}

func (p *recordingPresenter) Navigate(target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, target)
}

func (p *recordingPresenter) Deny(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.denials = append(p.denials, message)
}

// blockingClock holds the first call to Now until open is called, so a
// check can be paused after it has read the claims.
type blockingClock struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingClock(t *testing.T) *blockingClock {
	c := &blockingClock{entered: make(chan struct{}), release: make(chan struct{})}
	t.Cleanup(c.open)
	return c
}

func (c *blockingClock) Now() time.Time {
	if c.calls.Add(1) == 1 {
		close(c.entered)
		<-c.release
	}
	return testNow
}

func (c *blockingClock) open() {
	c.once.Do(func() { close(c.release) })
}

// scheduler captures deferred redirects so tests can fire them on demand.
type scheduler struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

func (s *scheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, f)
	s.delays = append(s.delays, d)
}

func (s *scheduler) fire() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

type fixture struct {
	kv        *MemoryKV
	decoder   *countingDecoder
	presenter *recordingPresenter
	sched     *scheduler
	session   *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithClock(t, func() time.Time { return testNow })
}

func newFixtureWithClock(t *testing.T, now func() time.Time) *fixture {
	t.Helper()
	f := &fixture{
		kv:        NewMemoryKV(),
		decoder:   newCountingDecoder(),
		presenter: &recordingPresenter{},
		sched:     &scheduler{},
	}
	cfg := Config{
		Monitor: MonitorConfig{
			EntryPath:     "/",
			CheckInterval: time.Minute,
			RedirectDelay: time.Second,
			Now:           now,
			AfterFunc:     f.sched.AfterFunc,
		},
	}
	f.session = NewWithDecoder(f.kv, f.decoder, cfg, f.presenter, nil, nil)
	return f
}

func (f *fixture) persist(t *testing.T, token string) {
	t.Helper()
	require.NoError(t, f.session.Store.Write(context.Background(), SessionRecord{Token: token}))
}
