package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/notifier"
	"Kendalinet-Layer/repository"
	"Kendalinet-Layer/validation"
)

type SettingsHandler struct {
	settings *repository.SettingsRepository
	usage    *repository.UsageRepository
	telegram notifier.Notifier
	webhook  notifier.Notifier
	log      zerolog.Logger
}

func NewSettingsHandler(settings *repository.SettingsRepository, usage *repository.UsageRepository, telegram, webhook notifier.Notifier, log zerolog.Logger) *SettingsHandler {
	return &SettingsHandler{settings: settings, usage: usage, telegram: telegram, webhook: webhook, log: log}
}

const tokenMask = "****"

// maskToken keeps the last four characters so the user can recognise the token.
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return tokenMask
	}
	return tokenMask + token[len(token)-4:]
}

func maskedTelegram(s models.TelegramSettings) models.TelegramSettings {
	s.BotToken = maskToken(s.BotToken)
	return s
}

// GetTelegram - GET /api/settings/telegram
func (h *SettingsHandler) GetTelegram(c *gin.Context) {
	ok(c, "", maskedTelegram(h.settings.Telegram()))
}

// SaveTelegram - PUT /api/settings/telegram
func (h *SettingsHandler) SaveTelegram(c *gin.Context) {
	var req models.TelegramSettingsUpdate
	if !bind(c, &req) {
		return
	}
	// A masked token echoed back by the form means "unchanged".
	if req.BotToken != nil && strings.HasPrefix(*req.BotToken, tokenMask) {
		req.BotToken = nil
	}
	saved, err := h.settings.SaveTelegram(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Konfigurasi Telegram telah diperbarui", maskedTelegram(saved))
}

// TestTelegram - POST /api/settings/telegram/test
func (h *SettingsHandler) TestTelegram(c *gin.Context) {
	h.test(c, h.telegram, "Periksa chat Telegram Anda untuk melihat pesan test")
}

// GetWebhook - GET /api/settings/webhook
func (h *SettingsHandler) GetWebhook(c *gin.Context) {
	ok(c, "", h.settings.Webhook())
}

// SaveWebhook - PUT /api/settings/webhook
func (h *SettingsHandler) SaveWebhook(c *gin.Context) {
	var req models.WebhookSettingsUpdate
	if !bind(c, &req) {
		return
	}
	saved, err := h.settings.SaveWebhook(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Konfigurasi webhook telah diperbarui", saved)
}

// TestWebhook - POST /api/settings/webhook/test
func (h *SettingsHandler) TestWebhook(c *gin.Context) {
	h.test(c, h.webhook, "Periksa n8n/Zapier Anda untuk memverifikasi webhook diterima")
}

func (h *SettingsHandler) test(c *gin.Context, n notifier.Notifier, message string) {
	if err := n.Test(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Str("notifier", n.Name()).Msg("Notifier test failed")
		fail(c, err)
		return
	}
	ok(c, message, nil)
}

// GetDNS - GET /api/settings/dns
func (h *SettingsHandler) GetDNS(c *gin.Context) {
	ok(c, "", h.settings.DNS())
}

// SaveDNS - PUT /api/settings/dns
func (h *SettingsHandler) SaveDNS(c *gin.Context) {
	var req models.DNSSettingsRequest
	if !bind(c, &req) {
		return
	}
	saved, err := h.settings.SaveDNS(req)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, "Pengaturan DNS disimpan", saved)
}

// GetDNSProviders - GET /api/dns/providers
func (h *SettingsHandler) GetDNSProviders(c *gin.Context) {
	ok(c, "", repository.DNSProviders())
}

// GetUsage - GET /api/usage
func (h *SettingsHandler) GetUsage(c *gin.Context) {
	ok(c, "", h.usage.GetAll())
}

// GetDeviceUsage - GET /api/usage/:mac
func (h *SettingsHandler) GetDeviceUsage(c *gin.Context) {
	mac := c.Param("mac")
	if !validation.IsMAC(strings.TrimSpace(mac)) {
		fail(c, validation.New("mac", "mac must be a valid MAC address"))
		return
	}
	u, found := h.usage.Get(validation.NormalizeMAC(mac))
	if !found {
		fail(c, repository.ErrUsageNotFound)
		return
	}
	ok(c, "", u)
}

// ResetUsage - DELETE /api/usage
func (h *SettingsHandler) ResetUsage(c *gin.Context) {
	if err := h.usage.Reset(); err != nil {
		fail(c, err)
		return
	}
	ok(c, "Statistik pemakaian direset", nil)
}
