package openwrt

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"Kendalinet-Layer/models"
	"Kendalinet-Layer/validation"
)

// Router scripts are loosely typed: numbers arrive as numbers, quoted
// strings or null depending on the firmware. The Flex types absorb that and
// record whether a usable value was present.

type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	s = strings.Trim(s, `"`)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	*f = FlexFloat{Value: v, Valid: true}
	return nil
}

// Or returns the value, or def when it was missing.
func (f FlexFloat) Or(def float64) float64 {
	if f.Valid {
		return f.Value
	}
	return def
}

func (f FlexFloat) Int64() int64 { return int64(f.Or(0)) }

func (f FlexFloat) Uint64() uint64 {
	if f.Value < 0 {
		return 0
	}
	return uint64(f.Or(0))
}

type FlexBool struct {
	Value bool
	Valid bool
}

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	*f = FlexBool{}
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "1", "yes", "on", "enabled":
		*f = FlexBool{Value: true, Valid: true}
	case "false", "0", "no", "off", "disabled", "":
		if s != "" {
			*f = FlexBool{Valid: true}
		}
	}
	return nil
}

func (f FlexBool) Or(def bool) bool {
	if f.Valid {
		return f.Value
	}
	return def
}

// FlexString accepts strings and bare numbers (e.g. a wifi channel).
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		*f = FlexString(str)
		return nil
	}
	*f = FlexString(s)
	return nil
}

type statusPayload struct {
	Uptime           FlexFloat  `json:"uptime"`
	Speed            FlexFloat  `json:"speed"`
	DownloadSpeed    FlexFloat  `json:"download_speed"`
	UploadSpeed      FlexFloat  `json:"upload_speed"`
	ConnectedDevices FlexFloat  `json:"connected_devices"`
	Clients          FlexFloat  `json:"clients"`
	WanIP            FlexString `json:"wan_ip"`
	WanUp            FlexBool   `json:"wan_up"`
}

func (p statusPayload) normalize() models.StatusSnapshot {
	download := p.DownloadSpeed
	if !download.Valid {
		download = p.Speed
	}
	devices := p.ConnectedDevices
	if !devices.Valid {
		devices = p.Clients
	}
	return models.StatusSnapshot{
		Online:           true,
		Uptime:           p.Uptime.Int64(),
		DownloadSpeed:    download.Or(0),
		UploadSpeed:      p.UploadSpeed.Or(0),
		ConnectedDevices: int(devices.Or(0)),
		WanIP:            string(p.WanIP),
		WanUp:            p.WanUp.Or(string(p.WanIP) != ""),
	}
}

// ParseStatus decodes a status.sh payload.
func ParseStatus(data []byte) (models.StatusSnapshot, error) {
	var p statusPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.StatusSnapshot{}, invalid(err)
	}
	return p.normalize(), nil
}

type memoryPayload struct {
	Total     FlexFloat `json:"total"`
	Free      FlexFloat `json:"free"`
	Available FlexFloat `json:"available"`
	Buffered  FlexFloat `json:"buffered"`
	Cached    FlexFloat `json:"cached"`
}

func (m memoryPayload) available() uint64 {
	if m.Available.Valid {
		return m.Available.Uint64()
	}
	return m.Free.Uint64() + m.Buffered.Uint64() + m.Cached.Uint64()
}

type releasePayload struct {
	Distribution FlexString `json:"distribution"`
	Version      FlexString `json:"version"`
	Revision     FlexString `json:"revision"`
	Description  FlexString `json:"description"`
}

func (r releasePayload) normalize() models.ReleaseInfo {
	return models.ReleaseInfo{
		Distribution: string(r.Distribution),
		Version:      string(r.Version),
		Revision:     string(r.Revision),
		Description:  string(r.Description),
	}
}

// systemPayload covers both `ubus call system info` and system.sh, which
// wraps it and may add board fields.
type systemPayload struct {
	Hostname  FlexString     `json:"hostname"`
	Model     FlexString     `json:"model"`
	Firmware  FlexString     `json:"firmware"`
	Kernel    FlexString     `json:"kernel"`
	LocalTime FlexFloat      `json:"localtime"`
	Uptime    FlexFloat      `json:"uptime"`
	Load      []FlexFloat    `json:"load"`
	Memory    memoryPayload  `json:"memory"`
	Release   releasePayload `json:"release"`
	BoardName FlexString     `json:"board_name"`
	System    FlexString     `json:"system"`
}

func (p systemPayload) normalize() models.SystemInfo {
	var raw [3]float64
	for i := 0; i < len(p.Load) && i < 3; i++ {
		raw[i] = p.Load[i].Or(0)
	}
	var load [3]float64
	for i := range raw {
		load[i] = raw[i] / LoadScale
	}

	firmware := string(p.Firmware)
	if firmware == "" {
		firmware = string(p.Release.Description)
	}

	total := p.Memory.Total.Uint64()
	avail := p.Memory.available()
	return models.SystemInfo{
		Hostname:        string(p.Hostname),
		Model:           string(p.Model),
		Firmware:        firmware,
		Kernel:          string(p.Kernel),
		LocalTime:       p.LocalTime.Int64(),
		Uptime:          p.Uptime.Int64(),
		Load:            load,
		CPULoad:         CPULoad(raw),
		MemoryTotal:     total,
		MemoryAvailable: avail,
		MemoryPercent:   MemoryPercent(total, avail),
	}
}

func (p systemPayload) board() models.BoardInfo {
	return models.BoardInfo{
		Hostname:  string(p.Hostname),
		Model:     string(p.Model),
		BoardName: string(p.BoardName),
		Kernel:    string(p.Kernel),
		System:    string(p.System),
		Release:   p.Release.normalize(),
	}
}

// ParseSystemInfo decodes system.sh or `system info` data.
func ParseSystemInfo(data []byte) (models.SystemInfo, error) {
	var p systemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.SystemInfo{}, invalid(err)
	}
	return p.normalize(), nil
}

type ipv4Address struct {
	Address FlexString `json:"address"`
	Mask    FlexFloat  `json:"mask"`
}

type interfacePayload struct {
	Up        FlexBool      `json:"up"`
	Uptime    FlexFloat     `json:"uptime"`
	Proto     FlexString    `json:"proto"`
	L3Device  FlexString    `json:"l3_device"`
	Device    FlexString    `json:"device"`
	IPv4      []ipv4Address `json:"ipv4-address"`
	DNSServer []FlexString  `json:"dns-server"`
}

func (p interfacePayload) normalize(name string) models.WanStatus {
	dev := string(p.L3Device)
	if dev == "" {
		dev = string(p.Device)
	}
	w := models.WanStatus{
		Interface: name,
		Up:        p.Up.Or(false),
		Uptime:    p.Uptime.Int64(),
		Proto:     string(p.Proto),
		Device:    dev,
		IPv4:      []string{},
		DNS:       []string{},
	}
	for _, a := range p.IPv4 {
		if a.Address == "" {
			continue
		}
		if a.Mask.Valid {
			w.IPv4 = append(w.IPv4, string(a.Address)+"/"+strconv.Itoa(int(a.Mask.Value)))
		} else {
			w.IPv4 = append(w.IPv4, string(a.Address))
		}
	}
	for _, d := range p.DNSServer {
		if d != "" {
			w.DNS = append(w.DNS, string(d))
		}
	}
	return w
}

type devicePayload struct {
	MAC       FlexString `json:"mac"`
	IP        FlexString `json:"ip"`
	Hostname  FlexString `json:"hostname"`
	Name      FlexString `json:"name"`
	Interface FlexString `json:"interface"`
	Connected FlexBool   `json:"connected"`
	Expires   FlexFloat  `json:"expires"`
	RxBytes   FlexFloat  `json:"rx_bytes"`
	TxBytes   FlexFloat  `json:"tx_bytes"`
}

func (p devicePayload) normalize() models.Device {
	name := string(p.Hostname)
	if name == "" || name == "*" {
		name = string(p.Name)
	}
	return models.Device{
		MAC:          validation.NormalizeMAC(string(p.MAC)),
		IP:           string(p.IP),
		Hostname:     name,
		Interface:    string(p.Interface),
		Connected:    p.Connected.Or(true),
		LeaseExpires: p.Expires.Int64(),
		RxBytes:      p.RxBytes.Uint64(),
		TxBytes:      p.TxBytes.Uint64(),
	}
}

// ParseDevices accepts either a bare array or an object wrapping it under
// "devices" or "clients". Entries without a MAC are dropped.
func ParseDevices(data []byte) ([]models.Device, error) {
	var list []devicePayload
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("[")) {
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, invalid(err)
		}
	} else {
		var wrapped struct {
			Devices []devicePayload `json:"devices"`
			Clients []devicePayload `json:"clients"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, invalid(err)
		}
		list = wrapped.Devices
		if list == nil {
			list = wrapped.Clients
		}
	}

	out := make([]models.Device, 0, len(list))
	for _, p := range list {
		d := p.normalize()
		if d.MAC == "" {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

type wifiPayload struct {
	SSID       FlexString `json:"ssid"`
	Hidden     FlexBool   `json:"hidden"`
	Encryption FlexString `json:"encryption"`
	Channel    FlexString `json:"channel"`
	Disabled   FlexBool   `json:"disabled"`
}

func (p wifiPayload) normalize() models.WifiConfig {
	return models.WifiConfig{
		SSID:       string(p.SSID),
		Hidden:     p.Hidden.Or(false),
		Encryption: string(p.Encryption),
		Channel:    string(p.Channel),
		Disabled:   p.Disabled.Or(false),
	}
}

func ParseWifi(data []byte) (models.WifiConfig, error) {
	var p wifiPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.WifiConfig{}, invalid(err)
	}
	return p.normalize(), nil
}

type saveResultPayload struct {
	Success FlexBool   `json:"success"`
	Error   FlexString `json:"error"`
	Message FlexString `json:"message"`
}

// ParseSaveResult decodes {success, error}. A missing success flag counts as failure.
func ParseSaveResult(data []byte) (models.SaveResult, error) {
	var p saveResultPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.SaveResult{}, invalid(err)
	}
	r := models.SaveResult{Success: p.Success.Or(false), Error: string(p.Error)}
	if !r.Success && r.Error == "" {
		r.Error = string(p.Message)
		if r.Error == "" {
			r.Error = "router rejected the configuration"
		}
	}
	return r, nil
}
