package repository

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"Kendalinet-Layer/credentials"
	"Kendalinet-Layer/models"
	"Kendalinet-Layer/storage"
	"Kendalinet-Layer/validation"
)

const (
	DNSCloudflare = "cloudflare"
	DNSGoogle     = "google"
	DNSAdGuard    = "adguard"
	DNSQuad9      = "quad9"
	DNSCustom     = "custom"
)

var dnsProviders = []models.DNSProvider{
	{ID: DNSCloudflare, Name: "Cloudflare", Description: "Cepat & privasi terjaga", Primary: "1.1.1.1", Secondary: "1.0.0.1"},
	{ID: DNSGoogle, Name: "Google DNS", Description: "Stabil & andal", Primary: "8.8.8.8", Secondary: "8.8.4.4"},
	{ID: DNSAdGuard, Name: "AdGuard DNS", Description: "Blokir iklan & tracker", Primary: "94.140.14.14", Secondary: "94.140.15.15"},
	{ID: DNSQuad9, Name: "Quad9", Description: "Keamanan tinggi", Primary: "9.9.9.9", Secondary: "149.112.112.112"},
	{ID: DNSCustom, Name: "Custom DNS", Description: "Atur sendiri"},
}

// DNSProviders returns the provider catalog.
func DNSProviders() []models.DNSProvider {
	out := make([]models.DNSProvider, len(dnsProviders))
	copy(out, dnsProviders)
	return out
}

func findProvider(id string) (models.DNSProvider, bool) {
	for _, p := range dnsProviders {
		if p.ID == id {
			return p, true
		}
	}
	return models.DNSProvider{}, false
}

// SettingsRepository stores notifier and DNS preferences, each under its own key.
type SettingsRepository struct {
	mu       sync.RWMutex
	store    storage.Storage
	sealer   credentials.Sealer
	log      zerolog.Logger
	telegram models.TelegramSettings
	webhook  models.WebhookSettings
	dns      models.DNSSettings
}

func NewSettingsRepository(store storage.Storage, sealer credentials.Sealer, log zerolog.Logger) *SettingsRepository {
	if sealer == nil {
		sealer = credentials.Plaintext{}
	}
	r := &SettingsRepository{
		store:  store,
		sealer: sealer,
		log:    log,
		dns:    models.DNSSettings{Provider: DNSCloudflare, Primary: "1.1.1.1", Secondary: "1.0.0.1"},
	}

	loadJSON(store, storage.KeyTelegram, log, &r.telegram)
	if token, err := sealer.Open(r.telegram.BotToken); err != nil {
		log.Warn().Err(err).Msg("Cannot decrypt Telegram bot token")
		r.telegram.BotToken = ""
	} else {
		r.telegram.BotToken = token
	}

	loadJSON(store, storage.KeyWebhook, log, &r.webhook)

	var dns models.DNSSettings
	loadJSON(store, storage.KeyDNS, log, &dns)
	if dns.Provider != "" {
		r.dns = dns
	}
	return r
}

func (r *SettingsRepository) Telegram() models.TelegramSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.telegram
}

func (r *SettingsRepository) SaveTelegram(u models.TelegramSettingsUpdate) (models.TelegramSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.telegram
	if u.BotToken != nil {
		next.BotToken = strings.TrimSpace(*u.BotToken)
	}
	if u.ChatID != nil {
		next.ChatID = strings.TrimSpace(*u.ChatID)
	}
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}

	stored := next
	sealed, err := r.sealer.Seal(next.BotToken)
	if err != nil {
		return models.TelegramSettings{}, fmt.Errorf("seal bot token: %w", err)
	}
	stored.BotToken = sealed

	if err := saveJSON(r.store, storage.KeyTelegram, stored); err != nil {
		return models.TelegramSettings{}, err
	}
	r.telegram = next
	return next, nil
}

func (r *SettingsRepository) Webhook() models.WebhookSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.webhook
}

func (r *SettingsRepository) SaveWebhook(u models.WebhookSettingsUpdate) (models.WebhookSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.webhook
	if u.WebhookURL != nil {
		next.WebhookURL = strings.TrimSpace(*u.WebhookURL)
	}
	if u.WhatsAppNumber != nil {
		next.WhatsAppNumber = strings.TrimSpace(*u.WhatsAppNumber)
	}
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}

	if err := saveJSON(r.store, storage.KeyWebhook, next); err != nil {
		return models.WebhookSettings{}, err
	}
	r.webhook = next
	return next, nil
}

func (r *SettingsRepository) DNS() models.DNSSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dns
}

// SaveDNS resolves a provider selection into concrete addresses. Catalog
// providers use their fixed pair; custom requires a primary address.
func (r *SettingsRepository) SaveDNS(req models.DNSSettingsRequest) (models.DNSSettings, error) {
	if err := validation.Struct(req); err != nil {
		return models.DNSSettings{}, err
	}

	p, _ := findProvider(req.Provider)
	next := models.DNSSettings{Provider: p.ID, Primary: p.Primary, Secondary: p.Secondary}
	if p.ID == DNSCustom {
		primary := strings.TrimSpace(req.Primary)
		if primary == "" {
			return models.DNSSettings{}, validation.New("primary", "primary is required for custom DNS")
		}
		next.Primary = primary
		next.Secondary = strings.TrimSpace(req.Secondary)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := saveJSON(r.store, storage.KeyDNS, next); err != nil {
		return models.DNSSettings{}, err
	}
	r.dns = next
	return next, nil
}
