package models

import (
	"net/netip"
	"net/url"
	"time"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
	StatusUnknown = "unknown"
)

// RouterProfile is a registered management target.
type RouterProfile struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	IPAddress     string     `json:"ip_address"`
	Username      string     `json:"username"`
	Password      string     `json:"password,omitempty"`
	IsActive      bool       `json:"is_active"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
	Status        string     `json:"status"`
}

// Redacted returns a copy safe to hand to API clients.
func (r RouterProfile) Redacted() RouterProfile {
	r.Password = ""
	return r
}

// BaseURL is the direct (non-proxied) address of the router's web server.
// Bare IPv6 literals are bracketed.
func (r RouterProfile) BaseURL() string {
	host := r.IPAddress
	if addr, err := netip.ParseAddr(host); err == nil && addr.Is6() {
		host = "[" + host + "]"
	}
	return (&url.URL{Scheme: "http", Host: host}).String()
}

type RouterCreateRequest struct {
	Name      string `json:"name" binding:"required,max=64"`
	IPAddress string `json:"ip_address" binding:"required,ip|hostname_port|hostname_rfc1123"`
	Username  string `json:"username" binding:"required,max=64"`
	Password  string `json:"password" binding:"max=128"`
}

type RouterUpdateRequest struct {
	Name      *string `json:"name,omitempty" binding:"omitempty,min=1,max=64"`
	IPAddress *string `json:"ip_address,omitempty" binding:"omitempty,ip|hostname_port|hostname_rfc1123"`
	Username  *string `json:"username,omitempty" binding:"omitempty,min=1,max=64"`
	Password  *string `json:"password,omitempty" binding:"omitempty,max=128"`
}

// RouterStatus is one poll cycle's verdict for a router. Metrics are only
// present when the router answered.
type RouterStatus struct {
	RouterID         string    `json:"router_id"`
	IsOnline         bool      `json:"is_online"`
	Uptime           *int64    `json:"uptime,omitempty"`
	DownloadSpeed    *float64  `json:"download_speed,omitempty"`
	UploadSpeed      *float64  `json:"upload_speed,omitempty"`
	ConnectedDevices *int      `json:"connected_devices,omitempty"`
	LastChecked      time.Time `json:"last_checked"`
}

const (
	BackupVersion = "1.0"
	// MaskedPassword stands in for a password left out of a backup.
	MaskedPassword = "***ENCRYPTED***"
)

// RouterBackup is the export format of the whole registry.
type RouterBackup struct {
	Version    string          `json:"version" binding:"required"`
	ExportedAt time.Time       `json:"exported_at"`
	Routers    []RouterProfile `json:"routers" binding:"required"`
}
