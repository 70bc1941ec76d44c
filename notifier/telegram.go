package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"

	"Kendalinet-Layer/models"
)

const DefaultTelegramAPI = "https://api.telegram.org"

var markdownSpecial = regexp.MustCompile("[_*\\[\\]()~`>#+\\-=|{}.!\\\\]")

// EscapeMarkdown escapes text for Telegram's MarkdownV2 parse mode.
func EscapeMarkdown(s string) string {
	return markdownSpecial.ReplaceAllString(s, `\$0`)
}

type TelegramNotifier struct {
	settings SettingsSource
	apiBase  string
	client   *http.Client
	now      func() time.Time
}

func NewTelegramNotifier(settings SettingsSource, apiBase string, client *http.Client) *TelegramNotifier {
	if apiBase == "" {
		apiBase = DefaultTelegramAPI
	}
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &TelegramNotifier{
		settings: settings,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   client,
		now:      time.Now,
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Notify(ctx context.Context, event models.NewDeviceEvent) error {
	s := t.settings.Telegram()
	if !s.Enabled {
		return ErrDisabled
	}
	if s.BotToken == "" || s.ChatID == "" {
		return ErrNotConfigured
	}

	at := event.DetectedAt
	if at.IsZero() {
		at = t.now()
	}
	text := fmt.Sprintf("🚨 *Perangkat Baru Terdeteksi\\!*\n\n"+
		"📱 *Nama:* %s\n"+
		"🔗 *MAC:* `%s`\n"+
		"🌐 *IP:* %s\n"+
		"⏰ *Waktu:* %s\n\n"+
		"_Perangkat ini mencoba terhubung ke WiFi Anda\\._",
		EscapeMarkdown(event.DeviceName),
		EscapeMarkdown(event.DeviceMAC),
		EscapeMarkdown(deviceIP(event.DeviceIP)),
		EscapeMarkdown(localTime(at)))

	return t.send(ctx, s, text)
}

// Test sends a connectivity message. It only needs a token and chat id.
func (t *TelegramNotifier) Test(ctx context.Context) error {
	s := t.settings.Telegram()
	if s.BotToken == "" || s.ChatID == "" {
		return ErrNotConfigured
	}
	return t.send(ctx, s, "✅ *Test Notifikasi KendaliNet*\n\n"+
		"Koneksi Telegram berhasil\\! Anda akan menerima notifikasi saat perangkat baru terdeteksi\\.")
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) send(ctx context.Context, s models.TelegramSettings, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    s.ChatID,
		"text":       text,
		"parse_mode": "MarkdownV2",
	})
	if err != nil {
		return err
	}

	endpoint := t.apiBase + "/bot" + s.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: invalid API base %q", t.apiBase)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error text.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: read response: %w", err)
	}

	var out telegramResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("telegram: unexpected response (HTTP %d)", resp.StatusCode)
	}
	if !out.OK {
		if out.Description == "" {
			out.Description = "Telegram API error"
		}
		return fmt.Errorf("telegram: %s", out.Description)
	}
	return nil
}
