// Package notifier delivers new-device alerts to Telegram and to generic
// webhooks (n8n, Zapier and similar).
package notifier

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"Kendalinet-Layer/models"
)

var (
	ErrDisabled      = errors.New("notifier disabled")
	ErrNotConfigured = errors.New("notifier not configured")
)

const unknownIP = "Unknown"

// Notifier sends one event. Notify returns ErrDisabled when the channel is
// switched off; Test sends a probe message regardless of the enabled flag.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event models.NewDeviceEvent) error
	Test(ctx context.Context) error
}

// SettingsSource is read on every send so saved changes apply immediately.
type SettingsSource interface {
	Telegram() models.TelegramSettings
	Webhook() models.WebhookSettings
}

// Dispatcher fans one event out to every notifier.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	log       zerolog.Logger
}

func NewDispatcher(log zerolog.Logger, timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, timeout: timeout, log: log}
}

// Notify sends to all notifiers concurrently and reports how many delivered.
// Disabled notifiers are skipped silently; failures are logged.
func (d *Dispatcher) Notify(ctx context.Context, event models.NewDeviceEvent) int {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	sent := make([]bool, len(d.notifiers))
	var g errgroup.Group
	for i, n := range d.notifiers {
		i, n := i, n
		g.Go(func() error {
			err := n.Notify(ctx, event)
			switch {
			case err == nil:
				sent[i] = true
				d.log.Info().Str("notifier", n.Name()).Str("mac", event.DeviceMAC).Msg("New device notification sent")
			case errors.Is(err, ErrDisabled):
			default:
				d.log.Warn().Err(err).Str("notifier", n.Name()).Str("mac", event.DeviceMAC).Msg("New device notification failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	count := 0
	for _, ok := range sent {
		if ok {
			count++
		}
	}
	return count
}

func deviceIP(ip string) string {
	if ip == "" {
		return unknownIP
	}
	return ip
}

// localTime renders t the way the dashboard's Indonesian locale does.
func localTime(t time.Time) string {
	return t.Local().Format("2/1/2006, 15.04.05")
}
