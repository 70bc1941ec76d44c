package notifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"

	"Kendalinet-Layer/models"
)

const EventNewDevice = "new_device_detected"

type WebhookDevice struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	IP   string `json:"ip"`
}

// WebhookPayload is the body POSTed to the configured webhook URL.
type WebhookPayload struct {
	Event          string        `json:"event"`
	Timestamp      time.Time     `json:"timestamp"`
	RouterID       string        `json:"router_id,omitempty"`
	RouterName     string        `json:"router_name,omitempty"`
	Device         WebhookDevice `json:"device"`
	WhatsAppNumber string        `json:"whatsapp_number"`
	Message        string        `json:"message"`
}

type WebhookNotifier struct {
	settings SettingsSource
	client   *http.Client
	now      func() time.Time
}

func NewWebhookNotifier(settings SettingsSource, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &WebhookNotifier{settings: settings, client: client, now: time.Now}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Notify(ctx context.Context, event models.NewDeviceEvent) error {
	s := w.settings.Webhook()
	if !s.Enabled {
		return ErrDisabled
	}
	if s.WebhookURL == "" {
		return ErrNotConfigured
	}
	return w.post(ctx, s, w.payload(s, event))
}

// Test posts a sample device event to the configured URL.
func (w *WebhookNotifier) Test(ctx context.Context) error {
	s := w.settings.Webhook()
	if s.WebhookURL == "" {
		return ErrNotConfigured
	}
	return w.post(ctx, s, w.payload(s, models.NewDeviceEvent{
		DeviceName: "Test Device",
		DeviceMAC:  "AA:BB:CC:DD:EE:FF",
		DeviceIP:   "192.168.1.100",
	}))
}

func (w *WebhookNotifier) payload(s models.WebhookSettings, event models.NewDeviceEvent) WebhookPayload {
	at := event.DetectedAt
	if at.IsZero() {
		at = w.now()
	}
	ip := deviceIP(event.DeviceIP)
	return WebhookPayload{
		Event:      EventNewDevice,
		Timestamp:  at.UTC(),
		RouterID:   event.RouterID,
		RouterName: event.RouterName,
		Device: WebhookDevice{
			Name: event.DeviceName,
			MAC:  event.DeviceMAC,
			IP:   ip,
		},
		WhatsAppNumber: s.WhatsAppNumber,
		Message: fmt.Sprintf("🚨 *Perangkat Baru Terdeteksi!*\n\nNama: %s\nMAC: %s\nIP: %s\nWaktu: %s\n\n"+
			"_Perangkat ini mencoba terhubung ke WiFi Anda._",
			event.DeviceName, event.DeviceMAC, ip, localTime(at)),
	}
}

func (w *WebhookNotifier) post(ctx context.Context, s models.WebhookSettings, p WebhookPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %s", resp.Status)
	}
	return nil
}
