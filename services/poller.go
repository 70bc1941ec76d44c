package services

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/openwrt"
)

// RouterRegistry is the part of the router repository the poller needs.
type RouterRegistry interface {
	GetAll() []models.RouterProfile
	ApplyStatuses(statuses []models.RouterStatus) error
}

type PollerConfig struct {
	Interval     time.Duration
	ProbeTimeout time.Duration
	// MaxConcurrent caps in-flight probes; 0 probes every router at once.
	MaxConcurrent int
	HTTPClient    *http.Client
}

// StatusPoller probes every registered router's status script, whether or
// not it is the active one, and keeps the latest cycle's verdicts.
type StatusPoller struct {
	registry RouterRegistry
	cfg      PollerConfig
	log      zerolog.Logger
	now      func() time.Time

	cycle sync.Mutex

	mu       sync.RWMutex
	statuses []models.RouterStatus
	lastPoll time.Time

	subMu   sync.Mutex
	subs    map[int]chan []models.RouterStatus
	nextSub int
}

func NewStatusPoller(registry RouterRegistry, cfg PollerConfig, log zerolog.Logger) *StatusPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = cleanhttp.DefaultPooledClient()
	}
	return &StatusPoller{
		registry: registry,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		subs:     make(map[int]chan []models.RouterStatus),
	}
}

// probe never fails: any error, including the timeout, is an offline verdict.
func (p *StatusPoller) probe(ctx context.Context, router models.RouterProfile) models.RouterStatus {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProbeTimeout)
	defer cancel()

	st := models.RouterStatus{RouterID: router.ID}
	snap, err := openwrt.NewCGITransport(router.BaseURL(), p.cfg.HTTPClient).FetchStatus(ctx)
	st.LastChecked = p.now()
	if err != nil {
		p.log.Debug().Err(err).Str("router_id", router.ID).Str("ip", router.IPAddress).Msg("Router probe failed")
		return st
	}

	uptime := snap.Uptime
	download := snap.DownloadSpeed
	upload := snap.UploadSpeed
	devices := snap.ConnectedDevices
	st.IsOnline = true
	st.Uptime = &uptime
	st.DownloadSpeed = &download
	st.UploadSpeed = &upload
	st.ConnectedDevices = &devices
	return st
}

// PollOnce probes all routers concurrently, waits for every probe, writes the
// verdicts back to the registry and replaces the held statuses in one step.
// A cycle cut short by ctx took no verdict: it is discarded and the previous
// statuses are returned.
func (p *StatusPoller) PollOnce(ctx context.Context) []models.RouterStatus {
	p.cycle.Lock()
	defer p.cycle.Unlock()

	routers := p.registry.GetAll()
	results := make([]models.RouterStatus, len(routers))

	var g errgroup.Group
	if p.cfg.MaxConcurrent > 0 {
		g.SetLimit(p.cfg.MaxConcurrent)
	}
	for i, r := range routers {
		i, r := i, r
		g.Go(func() error {
			results[i] = p.probe(ctx, r)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		p.log.Debug().Err(ctx.Err()).Msg("Poll cycle cancelled, keeping previous statuses")
		return p.Statuses()
	}

	if err := p.registry.ApplyStatuses(results); err != nil {
		p.log.Error().Err(err).Msg("Failed to persist router statuses")
	}

	p.mu.Lock()
	p.statuses = results
	p.lastPoll = p.now()
	p.mu.Unlock()

	online := 0
	for _, s := range results {
		if s.IsOnline {
			online++
		}
	}
	p.log.Debug().Int("routers", len(results)).Int("online", online).Msg("Poll cycle complete")

	p.publish(results)
	return cloneStatuses(results)
}

// Run polls immediately and then on every interval until ctx is done.
func (p *StatusPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.cfg.Interval).Dur("timeout", p.cfg.ProbeTimeout).Msg("Status poller started")
	p.PollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("Status poller stopped")
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// Statuses returns the most recent cycle's results.
func (p *StatusPoller) Statuses() []models.RouterStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return cloneStatuses(p.statuses)
}

func (p *StatusPoller) LastPoll() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastPoll
}

// Subscribe delivers every cycle's statuses. A slow subscriber only ever sees
// the newest cycle. Call the returned func to unsubscribe.
func (p *StatusPoller) Subscribe() (<-chan []models.RouterStatus, func()) {
	ch := make(chan []models.RouterStatus, 1)

	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subs, id)
			p.subMu.Unlock()
		})
	}
}

func (p *StatusPoller) publish(results []models.RouterStatus) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	for _, ch := range p.subs {
		select {
		case <-ch:
		default:
		}
		ch <- cloneStatuses(results)
	}
}

func cloneStatuses(in []models.RouterStatus) []models.RouterStatus {
	out := make([]models.RouterStatus, len(in))
	copy(out, in)
	return out
}
