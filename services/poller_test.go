package services

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kendalinet-Layer/models"
)

type fakeRegistry struct {
	mu       sync.Mutex
	routers  []models.RouterProfile
	applied  [][]models.RouterStatus
	applyErr error
}

func (f *fakeRegistry) GetAll() []models.RouterProfile {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.RouterProfile, len(f.routers))
	copy(out, f.routers)
	return out
}

func (f *fakeRegistry) ApplyStatuses(statuses []models.RouterStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, statuses)
	return f.applyErr
}

func (f *fakeRegistry) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

// statusRouter starts a fake router whose status script answers with body.
func statusRouter(t *testing.T, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/cgi-bin/kendalinet/status.sh" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

// hangingRouter never answers until the test ends.
func hangingRouter(t *testing.T) string {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return strings.TrimPrefix(srv.URL, "http://")
}

func findStatus(list []models.RouterStatus, id string) (models.RouterStatus, bool) {
	for _, s := range list {
		if s.RouterID == id {
			return s, true
		}
	}
	return models.RouterStatus{}, false
}

func TestStatusPoller_PollOnce(t *testing.T) {
	online := statusRouter(t, `{"uptime":3600,"download_speed":42.5,"upload_speed":10,"connected_devices":3}`)
	reg := &fakeRegistry{routers: []models.RouterProfile{
		{ID: "r1", Name: "Main", IPAddress: online, IsActive: true},
		{ID: "r2", Name: "Dead", IPAddress: "127.0.0.1:1"},
	}}

	p := NewStatusPoller(reg, PollerConfig{ProbeTimeout: time.Second}, zerolog.Nop())
	results := p.PollOnce(context.Background())
	require.Len(t, results, 2)

	s1, ok := findStatus(results, "r1")
	require.True(t, ok)
	assert.True(t, s1.IsOnline)
	require.NotNil(t, s1.Uptime)
	assert.Equal(t, int64(3600), *s1.Uptime)
	require.NotNil(t, s1.DownloadSpeed)
	assert.Equal(t, 42.5, *s1.DownloadSpeed)
	require.NotNil(t, s1.ConnectedDevices)
	assert.Equal(t, 3, *s1.ConnectedDevices)
	assert.False(t, s1.LastChecked.IsZero())

	s2, ok := findStatus(results, "r2")
	require.True(t, ok)
	assert.False(t, s2.IsOnline)
	assert.Nil(t, s2.Uptime)
	assert.Nil(t, s2.DownloadSpeed)

	assert.Equal(t, 1, reg.appliedCount())
	assert.Len(t, p.Statuses(), 2)
	assert.False(t, p.LastPoll().IsZero())
}

func TestStatusPoller_HangingRouterTimesOut(t *testing.T) {
	fast := statusRouter(t, `{"uptime":1}`)
	slow := hangingRouter(t)
	reg := &fakeRegistry{routers: []models.RouterProfile{
		{ID: "fast", IPAddress: fast},
		{ID: "slow", IPAddress: slow},
	}}

	p := NewStatusPoller(reg, PollerConfig{ProbeTimeout: 100 * time.Millisecond}, zerolog.Nop())

	start := time.Now()
	results := p.PollOnce(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 2*time.Second)
	fastStatus, _ := findStatus(results, "fast")
	slowStatus, _ := findStatus(results, "slow")
	assert.True(t, fastStatus.IsOnline)
	assert.False(t, slowStatus.IsOnline)
}

func TestStatusPoller_EmptyRegistry(t *testing.T) {
	reg := &fakeRegistry{}
	p := NewStatusPoller(reg, PollerConfig{}, zerolog.Nop())

	results := p.PollOnce(context.Background())
	assert.Empty(t, results)
	assert.Equal(t, 1, reg.appliedCount())
}

func TestStatusPoller_MaxConcurrent(t *testing.T) {
	addr := statusRouter(t, `{}`)
	var routers []models.RouterProfile
	for _, id := range []string{"a", "b", "c", "d"} {
		routers = append(routers, models.RouterProfile{ID: id, IPAddress: addr})
	}
	reg := &fakeRegistry{routers: routers}

	p := NewStatusPoller(reg, PollerConfig{ProbeTimeout: time.Second, MaxConcurrent: 2}, zerolog.Nop())
	results := p.PollOnce(context.Background())
	require.Len(t, results, 4)
	for _, s := range results {
		assert.True(t, s.IsOnline, s.RouterID)
	}
}

func TestStatusPoller_ApplyErrorStillSwaps(t *testing.T) {
	reg := &fakeRegistry{
		routers:  []models.RouterProfile{{ID: "r1", IPAddress: statusRouter(t, `{}`)}},
		applyErr: assert.AnError,
	}
	p := NewStatusPoller(reg, PollerConfig{}, zerolog.Nop())

	p.PollOnce(context.Background())
	require.Len(t, p.Statuses(), 1)
	assert.True(t, p.Statuses()[0].IsOnline)
}

func TestStatusPoller_Subscribe(t *testing.T) {
	reg := &fakeRegistry{routers: []models.RouterProfile{{ID: "r1", IPAddress: statusRouter(t, `{}`)}}}
	p := NewStatusPoller(reg, PollerConfig{}, zerolog.Nop())

	ch, unsubscribe := p.Subscribe()

	p.PollOnce(context.Background())
	p.PollOnce(context.Background())

	select {
	case got := <-ch:
		require.Len(t, got, 1)
		assert.Equal(t, "r1", got[0].RouterID)
	default:
		t.Fatal("expected a published cycle")
	}

	select {
	case <-ch:
		t.Fatal("slow subscriber should only hold the newest cycle")
	default:
	}

	unsubscribe()
	unsubscribe()
	p.PollOnce(context.Background())
	select {
	case <-ch:
		t.Fatal("unsubscribed channel received a cycle")
	default:
	}
}

func TestStatusPoller_RunStopsOnCancel(t *testing.T) {
	reg := &fakeRegistry{routers: []models.RouterProfile{{ID: "r1", IPAddress: statusRouter(t, `{}`)}}}
	p := NewStatusPoller(reg, PollerConfig{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return reg.appliedCount() >= 2 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStatusPoller_CancelledCycleKeepsStatuses(t *testing.T) {
	online := statusRouter(t, `{"uptime":60}`)
	reg := &fakeRegistry{routers: []models.RouterProfile{{ID: "r1", IPAddress: online, IsActive: true}}}
	p := NewStatusPoller(reg, PollerConfig{ProbeTimeout: time.Second}, zerolog.Nop())

	first := p.PollOnce(context.Background())
	require.Len(t, first, 1)
	require.True(t, first[0].IsOnline)

	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := p.PollOnce(ctx)

	require.Len(t, results, 1)
	assert.True(t, results[0].IsOnline)
	assert.Equal(t, 1, reg.appliedCount())
	assert.True(t, p.Statuses()[0].IsOnline)
	select {
	case <-updates:
		t.Fatal("cancelled cycle must not be published")
	default:
	}
}

func TestStatusPoller_IPv6Router(t *testing.T) {
	ln, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		t.Skipf("IPv6 loopback unavailable: %v", err)
	}
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"uptime":5}`)
	}))
	srv.Listener.Close()
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)

	port := ln.Addr().(*net.TCPAddr).Port
	reg := &fakeRegistry{routers: []models.RouterProfile{
		{ID: "v6", IPAddress: net.JoinHostPort("::1", strconv.Itoa(port)), IsActive: true},
	}}
	p := NewStatusPoller(reg, PollerConfig{ProbeTimeout: time.Second}, zerolog.Nop())

	results := p.PollOnce(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].IsOnline)
}
