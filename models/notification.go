package models

import "time"

const (
	ActionPending = "pending"
	ActionAllowed = "allowed"
	ActionBlocked = "blocked"
)

type NotificationHistoryItem struct {
	ID         string    `json:"id"`
	RouterID   string    `json:"router_id,omitempty"`
	DeviceName string    `json:"device_name"`
	DeviceMAC  string    `json:"device_mac"`
	DeviceIP   string    `json:"device_ip"`
	Timestamp  time.Time `json:"timestamp"`
	Action     string    `json:"action"`
}

type NotificationActionRequest struct {
	Action string `json:"action" binding:"required,oneof=allowed blocked"`
}

type NotificationStats struct {
	Total        int `json:"total"`
	TodayCount   int `json:"today_count"`
	WeekCount    int `json:"week_count"`
	MonthCount   int `json:"month_count"`
	AllowedCount int `json:"allowed_count"`
	BlockedCount int `json:"blocked_count"`
	PendingCount int `json:"pending_count"`
}

// NewDeviceEvent is what notifiers receive when an unknown device joins.
type NewDeviceEvent struct {
	RouterID   string    `json:"router_id"`
	RouterName string    `json:"router_name"`
	DeviceName string    `json:"device_name"`
	DeviceMAC  string    `json:"device_mac"`
	DeviceIP   string    `json:"device_ip"`
	DetectedAt time.Time `json:"detected_at"`
}

type TelegramSettings struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
	Enabled  bool   `json:"enabled"`
}

type TelegramSettingsUpdate struct {
	BotToken *string `json:"bot_token,omitempty"`
	ChatID   *string `json:"chat_id,omitempty"`
	Enabled  *bool   `json:"enabled,omitempty"`
}

type WebhookSettings struct {
	WebhookURL     string `json:"webhook_url"`
	WhatsAppNumber string `json:"whatsapp_number"`
	Enabled        bool   `json:"enabled"`
}

type WebhookSettingsUpdate struct {
	WebhookURL     *string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WhatsAppNumber *string `json:"whatsapp_number,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
}

type DNSProvider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Primary     string `json:"primary"`
	Secondary   string `json:"secondary"`
}

type DNSSettings struct {
	Provider  string `json:"provider"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type DNSSettingsRequest struct {
	Provider  string `json:"provider" validate:"required,oneof=cloudflare google adguard quad9 custom"`
	Primary   string `json:"primary,omitempty" validate:"omitempty,ip"`
	Secondary string `json:"secondary,omitempty" validate:"omitempty,ip"`
}

type DeviceUsage struct {
	MAC         string    `json:"mac"`
	DownloadMB  float64   `json:"download_mb"`
	UploadMB    float64   `json:"upload_mb"`
	LastUpdated time.Time `json:"last_updated"`
}
