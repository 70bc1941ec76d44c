package models

import "time"

// StatusSnapshot is the normalized result of a status fetch.
type StatusSnapshot struct {
	Online           bool    `json:"online"`
	Uptime           int64   `json:"uptime"`
	DownloadSpeed    float64 `json:"download_speed"`
	UploadSpeed      float64 `json:"upload_speed"`
	ConnectedDevices int     `json:"connected_devices"`
	WanIP            string  `json:"wan_ip,omitempty"`
	WanUp            bool    `json:"wan_up"`
}

type SystemInfo struct {
	Hostname        string     `json:"hostname,omitempty"`
	Model           string     `json:"model,omitempty"`
	Firmware        string     `json:"firmware,omitempty"`
	Kernel          string     `json:"kernel,omitempty"`
	LocalTime       int64      `json:"localtime"`
	Uptime          int64      `json:"uptime"`
	Load            [3]float64 `json:"load"`
	CPULoad         float64    `json:"cpu_load"`
	MemoryTotal     uint64     `json:"memory_total"`
	MemoryAvailable uint64     `json:"memory_available"`
	MemoryPercent   int        `json:"memory_percent"`
}

type ReleaseInfo struct {
	Distribution string `json:"distribution,omitempty"`
	Version      string `json:"version,omitempty"`
	Revision     string `json:"revision,omitempty"`
	Description  string `json:"description,omitempty"`
}

type BoardInfo struct {
	Hostname  string      `json:"hostname,omitempty"`
	Model     string      `json:"model,omitempty"`
	BoardName string      `json:"board_name,omitempty"`
	Kernel    string      `json:"kernel,omitempty"`
	System    string      `json:"system,omitempty"`
	Release   ReleaseInfo `json:"release"`
}

type WanStatus struct {
	Interface string   `json:"interface"`
	Up        bool     `json:"up"`
	Uptime    int64    `json:"uptime"`
	Proto     string   `json:"proto,omitempty"`
	Device    string   `json:"device,omitempty"`
	IPv4      []string `json:"ipv4"`
	DNS       []string `json:"dns"`
}

type Device struct {
	MAC          string `json:"mac"`
	IP           string `json:"ip,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	Interface    string `json:"interface,omitempty"`
	Connected    bool   `json:"connected"`
	LeaseExpires int64  `json:"lease_expires,omitempty"`
	RxBytes      uint64 `json:"rx_bytes,omitempty"`
	TxBytes      uint64 `json:"tx_bytes,omitempty"`
}

type WifiConfig struct {
	SSID       string `json:"ssid"`
	Hidden     bool   `json:"hidden"`
	Encryption string `json:"encryption,omitempty"`
	Channel    string `json:"channel,omitempty"`
	Disabled   bool   `json:"disabled"`
}

type WifiSaveRequest struct {
	SSID     string `json:"ssid" validate:"required,max=32" binding:"required,max=32"`
	Hidden   bool   `json:"hidden"`
	Password string `json:"password,omitempty" validate:"omitempty,min=8,max=63" binding:"omitempty,min=8,max=63"`
}

type SaveResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DashboardSnapshot is the aggregate view of the active router. Each
// category carries its own error so one failing fetch never hides the others.
type DashboardSnapshot struct {
	RouterID     string          `json:"router_id"`
	Method       string          `json:"method"`
	Status       *StatusSnapshot `json:"status,omitempty"`
	StatusError  string          `json:"status_error,omitempty"`
	Devices      []Device        `json:"devices"`
	DevicesError string          `json:"devices_error,omitempty"`
	Wifi         *WifiConfig     `json:"wifi,omitempty"`
	WifiError    string          `json:"wifi_error,omitempty"`
	System       *SystemInfo     `json:"system,omitempty"`
	SystemError  string          `json:"system_error,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ApiResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}
