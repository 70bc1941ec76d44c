package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/storage"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.NewDeviceEvent
}

func (r *recordingNotifier) Notify(_ context.Context, e models.NewDeviceEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return 1
}

func newWatcher(store storage.Storage) (*DeviceWatcher, *repository.NotificationRepository, *repository.UsageRepository, *recordingNotifier) {
	log := zerolog.Nop()
	history := repository.NewNotificationRepository(store, log)
	usage := repository.NewUsageRepository(store, log)
	known := repository.NewKnownDeviceRepository(store, log)
	n := &recordingNotifier{}
	return NewDeviceWatcher(known, history, usage, n, log), history, usage, n
}

func TestDeviceWatcher_BaselineThenNewDevice(t *testing.T) {
	store := storage.NewMemoryStorage()
	w, history, _, n := newWatcher(store)
	router := models.RouterProfile{ID: "r1", Name: "Main"}

	w.ObserveDevices(context.Background(), router, []models.Device{
		{MAC: "AA:BB:CC:DD:EE:01", Connected: true},
	})
	assert.Empty(t, history.GetAll())
	assert.Empty(t, n.events)

	w.ObserveDevices(context.Background(), router, []models.Device{
		{MAC: "AA:BB:CC:DD:EE:01", Connected: true},
		{MAC: "AA:BB:CC:DD:EE:02", IP: "192.168.2.20", Hostname: "tablet", Connected: true},
		{MAC: "AA:BB:CC:DD:EE:03", Connected: false},
		{MAC: "AA:BB:CC:DD:EE:04", Connected: true},
	})

	items := history.GetAll()
	require.Len(t, items, 2)
	// Newest first.
	assert.Equal(t, "AA:BB:CC:DD:EE:04", items[0].DeviceMAC)
	assert.Equal(t, unknownDeviceName, items[0].DeviceName)
	assert.Equal(t, "tablet", items[1].DeviceName)
	assert.Equal(t, models.ActionPending, items[1].Action)
	assert.Equal(t, "r1", items[1].RouterID)

	require.Len(t, n.events, 2)
	assert.Equal(t, "Main", n.events[0].RouterName)
	assert.Equal(t, "192.168.2.20", n.events[0].DeviceIP)

	// Seen devices are not reported twice.
	w.ObserveDevices(context.Background(), router, []models.Device{
		{MAC: "AA:BB:CC:DD:EE:02", Connected: true},
	})
	assert.Len(t, history.GetAll(), 2)
}

func TestDeviceWatcher_RoutersAreIndependent(t *testing.T) {
	store := storage.NewMemoryStorage()
	w, history, _, _ := newWatcher(store)

	dev := []models.Device{{MAC: "AA:BB:CC:DD:EE:01", Connected: true}}
	w.ObserveDevices(context.Background(), models.RouterProfile{ID: "r1"}, dev)
	w.ObserveDevices(context.Background(), models.RouterProfile{ID: "r2"}, dev)

	assert.Empty(t, history.GetAll())
}

func TestDeviceWatcher_KnownSetSurvivesRestart(t *testing.T) {
	store := storage.NewMemoryStorage()
	w, _, _, _ := newWatcher(store)
	router := models.RouterProfile{ID: "r1"}
	w.ObserveDevices(context.Background(), router, []models.Device{{MAC: "AA:BB:CC:DD:EE:01", Connected: true}})

	w2, history, _, n := newWatcher(store)
	w2.ObserveDevices(context.Background(), router, []models.Device{
		{MAC: "AA:BB:CC:DD:EE:01", Connected: true},
		{MAC: "AA:BB:CC:DD:EE:09", Connected: true},
	})
	require.Len(t, history.GetAll(), 1)
	assert.Len(t, n.events, 1)
}

func TestDeviceWatcher_RecordsUsage(t *testing.T) {
	store := storage.NewMemoryStorage()
	w, _, usage, _ := newWatcher(store)
	w.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	w.ObserveDevices(context.Background(), models.RouterProfile{ID: "r1"}, []models.Device{
		{MAC: "AA:BB:CC:DD:EE:01", Connected: true, TxBytes: 2 << 20, RxBytes: 1 << 20},
	})

	u, ok := usage.Get("AA:BB:CC:DD:EE:01")
	require.True(t, ok)
	assert.InDelta(t, 2.0, u.DownloadMB, 1e-9)
	assert.InDelta(t, 1.0, u.UploadMB, 1e-9)
}
