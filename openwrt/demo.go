package openwrt

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"Kendalinet-Layer/models"
)

// DemoTransport simulates a router so the dashboard can run without hardware.
// Speeds drift randomly on every status fetch.
type DemoTransport struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	started  time.Time
	download float64
	upload   float64
	devices  []models.Device
	wifi     models.WifiConfig
}

func NewDemoTransport() *DemoTransport {
	return &DemoTransport{
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		started:  time.Now().Add(-26 * time.Hour),
		download: 87.4,
		upload:   34.2,
		devices: []models.Device{
			{MAC: "AA:BB:CC:DD:EE:01", IP: "192.168.1.101", Hostname: "iPhone 14 Pro", Interface: "wlan0", Connected: true, RxBytes: 120 << 20, TxBytes: 850 << 20},
			{MAC: "AA:BB:CC:DD:EE:02", IP: "192.168.1.102", Hostname: "MacBook Pro", Interface: "wlan0", Connected: true, RxBytes: 410 << 20, TxBytes: 2300 << 20},
			{MAC: "AA:BB:CC:DD:EE:03", IP: "192.168.1.103", Hostname: "Samsung TV", Interface: "lan1", Connected: true, RxBytes: 35 << 20, TxBytes: 5100 << 20},
			{MAC: "AA:BB:CC:DD:EE:04", IP: "192.168.1.104", Hostname: "iPad Mini", Interface: "wlan1", Connected: false},
		},
		wifi: models.WifiConfig{SSID: "KendaliNet", Encryption: "psk2", Channel: "auto"},
	}
}

func (d *DemoTransport) Method() string { return MethodDemo }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func (d *DemoTransport) FetchStatus(ctx context.Context) (models.StatusSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.StatusSnapshot{}, opErr(OpStatus, MethodDemo, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.download = clamp(d.download+(d.rnd.Float64()-0.5)*20, 10, 100)
	d.upload = clamp(d.upload+(d.rnd.Float64()-0.5)*10, 5, 50)

	connected := 0
	for _, dev := range d.devices {
		if dev.Connected {
			connected++
		}
	}
	return models.StatusSnapshot{
		Online:           true,
		Uptime:           int64(time.Since(d.started).Seconds()),
		DownloadSpeed:    math.Round(d.download*10) / 10,
		UploadSpeed:      math.Round(d.upload*10) / 10,
		ConnectedDevices: connected,
		WanIP:            "203.0.113.24",
		WanUp:            true,
	}, nil
}

func (d *DemoTransport) FetchSystemInfo(ctx context.Context) (models.SystemInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.SystemInfo{}, opErr(OpSystem, MethodDemo, err)
	}
	d.mu.Lock()
	jitter := d.rnd.Float64()
	d.mu.Unlock()

	raw := [3]float64{(0.2 + jitter*0.3) * LoadScale, 0.25 * LoadScale, 0.2 * LoadScale}
	var load [3]float64
	for i := range raw {
		load[i] = raw[i] / LoadScale
	}
	const total, avail = 256 << 20, 148 << 20
	return models.SystemInfo{
		Hostname:        "KendaliNet",
		Model:           "Demo Router",
		Firmware:        "OpenWrt 23.05.3",
		Kernel:          "5.15.150",
		LocalTime:       time.Now().Unix(),
		Uptime:          int64(time.Since(d.started).Seconds()),
		Load:            load,
		CPULoad:         CPULoad(raw),
		MemoryTotal:     total,
		MemoryAvailable: avail,
		MemoryPercent:   MemoryPercent(total, avail),
	}, nil
}

func (d *DemoTransport) FetchBoardInfo(ctx context.Context) (models.BoardInfo, error) {
	if err := ctx.Err(); err != nil {
		return models.BoardInfo{}, opErr(OpBoard, MethodDemo, err)
	}
	return models.BoardInfo{
		Hostname:  "KendaliNet",
		Model:     "Demo Router",
		BoardName: "demo,router",
		Kernel:    "5.15.150",
		System:    "ARMv8 Processor rev 4",
		Release: models.ReleaseInfo{
			Distribution: "OpenWrt",
			Version:      "23.05.3",
			Description:  "OpenWrt 23.05.3",
		},
	}, nil
}

func (d *DemoTransport) FetchWanStatus(ctx context.Context) (models.WanStatus, error) {
	if err := ctx.Err(); err != nil {
		return models.WanStatus{}, opErr(OpWan, MethodDemo, err)
	}
	return models.WanStatus{
		Interface: "wan",
		Up:        true,
		Uptime:    int64(time.Since(d.started).Seconds()),
		Proto:     "dhcp",
		Device:    "eth1",
		IPv4:      []string{"203.0.113.24/24"},
		DNS:       []string{"1.1.1.1", "1.0.0.1"},
	}, nil
}

func (d *DemoTransport) FetchDevices(ctx context.Context) ([]models.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, opErr(OpDevices, MethodDemo, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.Device, len(d.devices))
	for i, dev := range d.devices {
		if dev.Connected {
			d.devices[i].TxBytes += uint64(d.rnd.Intn(5 << 20))
			d.devices[i].RxBytes += uint64(d.rnd.Intn(1 << 20))
		}
		out[i] = d.devices[i]
	}
	return out, nil
}

func (d *DemoTransport) FetchWifi(ctx context.Context) (models.WifiConfig, error) {
	if err := ctx.Err(); err != nil {
		return models.WifiConfig{}, opErr(OpWifi, MethodDemo, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wifi, nil
}

// SaveWifi applies the change to the simulated router.
func (d *DemoTransport) SaveWifi(ctx context.Context, req models.WifiSaveRequest) (models.SaveResult, error) {
	if err := ctx.Err(); err != nil {
		return models.SaveResult{}, opErr(OpSaveWifi, MethodDemo, err)
	}
	if req.Password != "" && len(req.Password) < 8 {
		return models.SaveResult{Success: false, Error: "weak password"}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.wifi.SSID = req.SSID
	d.wifi.Hidden = req.Hidden
	return models.SaveResult{Success: true}, nil
}
