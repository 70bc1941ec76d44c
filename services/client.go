package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/openwrt"
	"Kendalinet-Layer/validation"
)

var ErrNoActiveRouter = errors.New("no active router")

// ActiveRouterSource resolves the router the dashboard targets.
type ActiveRouterSource interface {
	GetActive() (models.RouterProfile, bool)
}

// DeviceObserver is told about every successful device refresh.
type DeviceObserver interface {
	ObserveDevices(ctx context.Context, router models.RouterProfile, devices []models.Device)
}

// TransportFactory builds the transport for a router profile.
type TransportFactory func(router models.RouterProfile) (openwrt.Transport, error)

// NewTransportFactory returns a factory for the configured method.
func NewTransportFactory(method string, client *http.Client, login bool, log zerolog.Logger) TransportFactory {
	return func(router models.RouterProfile) (openwrt.Transport, error) {
		return openwrt.New(method, router.BaseURL(), openwrt.Options{
			HTTPClient: client,
			Username:   router.Username,
			Password:   router.Password,
			Login:      login,
			Logger:     log.With().Str("router_id", router.ID).Logger(),
		})
	}
}

type category int

const (
	catStatus category = 1 << iota
	catDevices
	catWifi
	catSystem

	catAll      = catStatus | catDevices | catWifi | catSystem
	catPeriodic = catStatus | catDevices | catSystem
)

type ClientConfig struct {
	AutoRefreshInterval time.Duration
}

// AggregateClient combines transport calls for the active router into one
// dashboard snapshot. Each category keeps its own error; a failed fetch keeps
// the previous data for that category.
type AggregateClient struct {
	routers  ActiveRouterSource
	factory  TransportFactory
	observer DeviceObserver
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.RWMutex
	snapshot  models.DashboardSnapshot
	transport openwrt.Transport
	transKey  string
	// started numbers refreshes as they begin; committed is the newest one
	// whose results are in the snapshot.
	started   uint64
	committed uint64

	autoMu     sync.Mutex
	autoCancel context.CancelFunc
	autoDone   chan struct{}
}

func NewAggregateClient(routers ActiveRouterSource, factory TransportFactory, cfg ClientConfig, log zerolog.Logger) *AggregateClient {
	if cfg.AutoRefreshInterval <= 0 {
		cfg.AutoRefreshInterval = 5 * time.Second
	}
	return &AggregateClient{
		routers:  routers,
		factory:  factory,
		interval: cfg.AutoRefreshInterval,
		log:      log,
		now:      time.Now,
		snapshot: models.DashboardSnapshot{Devices: []models.Device{}},
	}
}

// SetDeviceObserver registers the consumer of device refreshes.
func (c *AggregateClient) SetDeviceObserver(o DeviceObserver) {
	c.mu.Lock()
	c.observer = o
	c.mu.Unlock()
}

// activeTransport resolves the active router and reuses its transport while
// the router's connection details are unchanged.
func (c *AggregateClient) activeTransport() (models.RouterProfile, openwrt.Transport, error) {
	router, ok := c.routers.GetActive()
	if !ok {
		return models.RouterProfile{}, nil, ErrNoActiveRouter
	}
	key := router.ID + "|" + router.IPAddress + "|" + router.Username + "|" + router.Password

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != nil && c.transKey == key {
		return router, c.transport, nil
	}
	t, err := c.factory(router)
	if err != nil {
		return models.RouterProfile{}, nil, err
	}
	c.transport = t
	c.transKey = key
	return router, t, nil
}

type fetchResult struct {
	status     models.StatusSnapshot
	statusErr  error
	devices    []models.Device
	devicesErr error
	wifi       models.WifiConfig
	wifiErr    error
	system     models.SystemInfo
	systemErr  error
}

func (c *AggregateClient) fetch(ctx context.Context, t openwrt.Transport, cats category) fetchResult {
	var res fetchResult
	var g errgroup.Group

	if cats&catStatus != 0 {
		g.Go(func() error {
			res.status, res.statusErr = t.FetchStatus(ctx)
			return nil
		})
	}
	if cats&catDevices != 0 {
		g.Go(func() error {
			res.devices, res.devicesErr = t.FetchDevices(ctx)
			return nil
		})
	}
	if cats&catWifi != 0 {
		g.Go(func() error {
			res.wifi, res.wifiErr = t.FetchWifi(ctx)
			return nil
		})
	}
	if cats&catSystem != 0 {
		g.Go(func() error {
			res.system, res.systemErr = t.FetchSystemInfo(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (c *AggregateClient) refresh(ctx context.Context, cats category) (models.DashboardSnapshot, error) {
	router, t, err := c.activeTransport()
	if err != nil {
		return models.DashboardSnapshot{}, err
	}

	c.mu.Lock()
	c.started++
	seq := c.started
	c.mu.Unlock()

	res := c.fetch(ctx, t, cats)

	// The active router may have changed while the fetches were in flight.
	if current, ok := c.routers.GetActive(); !ok || current.ID != router.ID {
		return c.Snapshot(), nil
	}

	c.mu.Lock()
	if seq < c.committed {
		// A refresh that started later has already committed newer data.
		out := copySnapshot(c.snapshot)
		c.mu.Unlock()
		c.log.Debug().Str("router_id", router.ID).Uint64("seq", seq).Msg("Discarding stale dashboard refresh")
		return out, nil
	}
	c.committed = seq
	next := c.snapshot
	if next.RouterID != router.ID {
		next = models.DashboardSnapshot{RouterID: router.ID, Devices: []models.Device{}}
	}
	next.Method = t.Method()

	if cats&catStatus != 0 {
		if res.statusErr != nil {
			next.StatusError = res.statusErr.Error()
		} else {
			s := res.status
			next.Status, next.StatusError = &s, ""
		}
	}
	if cats&catDevices != 0 {
		if res.devicesErr != nil {
			next.DevicesError = res.devicesErr.Error()
		} else {
			next.Devices, next.DevicesError = res.devices, ""
			if next.Devices == nil {
				next.Devices = []models.Device{}
			}
		}
	}
	if cats&catWifi != 0 {
		if res.wifiErr != nil {
			next.WifiError = res.wifiErr.Error()
		} else {
			w := res.wifi
			next.Wifi, next.WifiError = &w, ""
		}
	}
	if cats&catSystem != 0 {
		if res.systemErr != nil {
			next.SystemError = res.systemErr.Error()
		} else {
			s := res.system
			next.System, next.SystemError = &s, ""
		}
	}
	next.UpdatedAt = c.now()
	c.snapshot = next
	observer := c.observer
	out := copySnapshot(next)
	c.mu.Unlock()

	c.logErrors(router, res, cats)

	if observer != nil && cats&catDevices != 0 && res.devicesErr == nil {
		observer.ObserveDevices(ctx, router, res.devices)
	}
	return out, nil
}

func (c *AggregateClient) logErrors(router models.RouterProfile, res fetchResult, cats category) {
	for _, e := range []struct {
		cat category
		err error
	}{
		{catStatus, res.statusErr},
		{catDevices, res.devicesErr},
		{catWifi, res.wifiErr},
		{catSystem, res.systemErr},
	} {
		if cats&e.cat != 0 && e.err != nil {
			c.log.Warn().Err(e.err).Str("router_id", router.ID).Msg("Dashboard fetch failed")
		}
	}
}

// RefreshAll fetches status, devices, wifi and system concurrently and
// commits them as one snapshot.
func (c *AggregateClient) RefreshAll(ctx context.Context) (models.DashboardSnapshot, error) {
	return c.refresh(ctx, catAll)
}

// Snapshot returns the last committed snapshot.
func (c *AggregateClient) Snapshot() models.DashboardSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copySnapshot(c.snapshot)
}

func copySnapshot(s models.DashboardSnapshot) models.DashboardSnapshot {
	devices := make([]models.Device, len(s.Devices))
	copy(devices, s.Devices)
	s.Devices = devices
	if s.Status != nil {
		v := *s.Status
		s.Status = &v
	}
	if s.Wifi != nil {
		v := *s.Wifi
		s.Wifi = &v
	}
	if s.System != nil {
		v := *s.System
		s.System = &v
	}
	return s
}

// SaveWifi validates the request and submits it through the active router's
// transport. The cached wifi snapshot is left alone; callers re-fetch to see
// the applied change. The returned error is set only for validation failures
// or a missing active router.
func (c *AggregateClient) SaveWifi(ctx context.Context, req models.WifiSaveRequest) (models.SaveResult, error) {
	if err := validation.Struct(req); err != nil {
		return models.SaveResult{Success: false, Error: err.Error()}, err
	}

	router, t, err := c.activeTransport()
	if err != nil {
		return models.SaveResult{Success: false, Error: err.Error()}, err
	}

	res, err := t.SaveWifi(ctx, req)
	if err != nil {
		c.log.Warn().Err(err).Str("router_id", router.ID).Msg("WiFi save failed")
		return models.SaveResult{Success: false, Error: err.Error()}, nil
	}
	if !res.Success {
		c.log.Warn().Str("router_id", router.ID).Str("reason", res.Error).Msg("Router rejected WiFi config")
	} else {
		c.log.Info().Str("router_id", router.ID).Str("ssid", req.SSID).Msg("WiFi config saved")
	}
	return res, nil
}

func (c *AggregateClient) BoardInfo(ctx context.Context) (models.BoardInfo, error) {
	_, t, err := c.activeTransport()
	if err != nil {
		return models.BoardInfo{}, err
	}
	return t.FetchBoardInfo(ctx)
}

func (c *AggregateClient) WanStatus(ctx context.Context) (models.WanStatus, error) {
	_, t, err := c.activeTransport()
	if err != nil {
		return models.WanStatus{}, err
	}
	return t.FetchWanStatus(ctx)
}

// StartAutoRefresh runs a full refresh, then refreshes status, devices and
// system every interval until StopAutoRefresh or ctx is cancelled. WiFi is
// only re-read by RefreshAll. Starting twice is a no-op.
func (c *AggregateClient) StartAutoRefresh(ctx context.Context) {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()

	if c.autoCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.autoCancel = cancel
	c.autoDone = done

	go func() {
		defer close(done)
		c.log.Info().Dur("interval", c.interval).Msg("Dashboard auto-refresh started")

		if _, err := c.RefreshAll(ctx); err != nil && !errors.Is(err, ErrNoActiveRouter) {
			c.log.Warn().Err(err).Msg("Initial dashboard refresh failed")
		}

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.log.Info().Msg("Dashboard auto-refresh stopped")
				return
			case <-ticker.C:
				if _, err := c.refresh(ctx, catPeriodic); err != nil && !errors.Is(err, ErrNoActiveRouter) {
					c.log.Warn().Err(err).Msg("Dashboard refresh failed")
				}
			}
		}
	}()
}

// StopAutoRefresh cancels the loop and waits for it to exit.
func (c *AggregateClient) StopAutoRefresh() {
	c.autoMu.Lock()
	cancel, done := c.autoCancel, c.autoDone
	c.autoCancel, c.autoDone = nil, nil
	c.autoMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *AggregateClient) AutoRefreshEnabled() bool {
	c.autoMu.Lock()
	defer c.autoMu.Unlock()
	return c.autoCancel != nil
}
