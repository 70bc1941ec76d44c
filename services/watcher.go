package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
)

type KnownDevices interface {
	Observe(routerID string, macs []string) (fresh []string, baseline bool, err error)
}

type NotificationHistory interface {
	Add(routerID, deviceName, deviceMAC, deviceIP string) (models.NotificationHistoryItem, error)
}

type UsageRecorder interface {
	Record(devices []models.Device, now time.Time) error
}

type EventNotifier interface {
	Notify(ctx context.Context, event models.NewDeviceEvent) int
}

const unknownDeviceName = "Unknown Device"

// DeviceWatcher turns device refreshes into usage counters and new-device
// alerts. The first refresh of a router only records a baseline.
type DeviceWatcher struct {
	known    KnownDevices
	history  NotificationHistory
	usage    UsageRecorder
	notifier EventNotifier
	log      zerolog.Logger
	now      func() time.Time
}

func NewDeviceWatcher(known KnownDevices, history NotificationHistory, usage UsageRecorder, notifier EventNotifier, log zerolog.Logger) *DeviceWatcher {
	return &DeviceWatcher{
		known:    known,
		history:  history,
		usage:    usage,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// ObserveDevices implements DeviceObserver.
func (w *DeviceWatcher) ObserveDevices(ctx context.Context, router models.RouterProfile, devices []models.Device) {
	now := w.now()

	if w.usage != nil {
		if err := w.usage.Record(devices, now); err != nil {
			w.log.Warn().Err(err).Str("router_id", router.ID).Msg("Failed to record device usage")
		}
	}

	byMAC := make(map[string]models.Device, len(devices))
	macs := make([]string, 0, len(devices))
	for _, d := range devices {
		if !d.Connected || d.MAC == "" {
			continue
		}
		if _, dup := byMAC[d.MAC]; dup {
			continue
		}
		byMAC[d.MAC] = d
		macs = append(macs, d.MAC)
	}

	fresh, baseline, err := w.known.Observe(router.ID, macs)
	if err != nil {
		w.log.Error().Err(err).Str("router_id", router.ID).Msg("Failed to store known devices")
		return
	}
	if baseline {
		w.log.Info().Str("router_id", router.ID).Int("devices", len(macs)).Msg("Device baseline recorded")
		return
	}

	for _, mac := range fresh {
		d := byMAC[mac]
		name := d.Hostname
		if name == "" {
			name = unknownDeviceName
		}

		if _, err := w.history.Add(router.ID, name, mac, d.IP); err != nil {
			w.log.Error().Err(err).Str("mac", mac).Msg("Failed to record notification")
		}
		w.log.Info().Str("router_id", router.ID).Str("mac", mac).Str("name", name).Msg("New device detected")

		if w.notifier != nil {
			w.notifier.Notify(ctx, models.NewDeviceEvent{
				RouterID:   router.ID,
				RouterName: router.Name,
				DeviceName: name,
				DeviceMAC:  mac,
				DeviceIP:   d.IP,
				DetectedAt: now,
			})
		}
	}
}
