package openwrt

import (
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPercent(t *testing.T) {
	tests := []struct {
		name             string
		total, available uint64
		want             int
	}{
		{"zero total", 0, 0, 0},
		{"zero total with available", 0, 100, 0},
		{"half used", 1000, 500, 50},
		{"floors", 3, 1, 66},
		{"all free", 100, 100, 0},
		{"available above total", 100, 150, 0},
		{"fully used", 100, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MemoryPercent(tt.total, tt.available))
		})
	}
}

func TestCPULoad(t *testing.T) {
	assert.InDelta(t, 1.0, CPULoad([3]float64{65536, 0, 0}), 1e-9)
	assert.InDelta(t, 0.5, CPULoad([3]float64{32768, 99999, 1}), 1e-9)
	assert.Equal(t, 0.0, CPULoad([3]float64{}))
}

func TestFlexFloat(t *testing.T) {
	var v struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
		C FlexFloat `json:"c"`
		D FlexFloat `json:"d"`
		E FlexFloat `json:"e"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":12.5,"b":"42","c":null,"d":"n/a"}`), &v))

	assert.Equal(t, FlexFloat{Value: 12.5, Valid: true}, v.A)
	assert.Equal(t, FlexFloat{Value: 42, Valid: true}, v.B)
	assert.False(t, v.C.Valid)
	assert.False(t, v.D.Valid)
	assert.False(t, v.E.Valid)
	assert.Equal(t, 7.0, v.E.Or(7))
}

func TestFlexBool(t *testing.T) {
	var v struct {
		A FlexBool `json:"a"`
		B FlexBool `json:"b"`
		C FlexBool `json:"c"`
		D FlexBool `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":true,"b":"1","c":"0"}`), &v))
	assert.True(t, v.A.Or(false))
	assert.True(t, v.B.Or(false))
	assert.False(t, v.C.Or(true))
	assert.True(t, v.D.Or(true))
}

func TestParseStatus_Defaults(t *testing.T) {
	s, err := ParseStatus([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, s.Online)
	assert.Zero(t, s.Uptime)
	assert.Zero(t, s.DownloadSpeed)
	assert.Zero(t, s.ConnectedDevices)

	s, err = ParseStatus([]byte(`{"uptime":"3600","speed":12.5,"upload_speed":3,"clients":4,"wan_ip":"203.0.113.5"}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3600), s.Uptime)
	assert.Equal(t, 12.5, s.DownloadSpeed)
	assert.Equal(t, 3.0, s.UploadSpeed)
	assert.Equal(t, 4, s.ConnectedDevices)
	assert.True(t, s.WanUp)

	_, err = ParseStatus([]byte(`<html>`))
	assert.True(t, errors.Is(err, ErrInvalidResponse))
}

func TestParseSystemInfo(t *testing.T) {
	payload := `{
		"localtime": 1700000000,
		"uptime": 86400,
		"load": [65536, 32768, 16384],
		"memory": {"total": 268435456, "free": 50000000, "available": 134217728}
	}`
	info, err := ParseSystemInfo([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(86400), info.Uptime)
	assert.InDelta(t, 1.0, info.CPULoad, 1e-9)
	assert.InDelta(t, 0.5, info.Load[1], 1e-9)
	assert.Equal(t, 50, info.MemoryPercent)

	info, err = ParseSystemInfo([]byte(`{"memory":{}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, info.MemoryPercent)
}

func TestParseSystemInfo_FallsBackToFreeMemory(t *testing.T) {
	info, err := ParseSystemInfo([]byte(`{"memory":{"total":1000,"free":200,"buffered":50,"cached":50}}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(300), info.MemoryAvailable)
	assert.Equal(t, 70, info.MemoryPercent)
}

func TestParseDevices(t *testing.T) {
	devices, err := ParseDevices([]byte(`[
		{"mac":"aa:bb:cc:dd:ee:01","ip":"192.168.2.10","hostname":"laptop","rx_bytes":"1024"},
		{"mac":"","ip":"192.168.2.11"},
		{"mac":"aa-bb-cc-dd-ee-02","hostname":"*","name":"phone","connected":false}
	]`))
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", devices[0].MAC)
	assert.True(t, devices[0].Connected)
	assert.Equal(t, uint64(1024), devices[0].RxBytes)
	assert.Equal(t, "phone", devices[1].Hostname)
	assert.False(t, devices[1].Connected)

	wrapped, err := ParseDevices([]byte(`{"devices":[{"mac":"AA:BB:CC:DD:EE:03"}]}`))
	require.NoError(t, err)
	require.Len(t, wrapped, 1)

	empty, err := ParseDevices([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseWifi(t *testing.T) {
	w, err := ParseWifi([]byte(`{"ssid":"Home","hidden":"1","channel":36,"encryption":"psk2"}`))
	require.NoError(t, err)
	assert.Equal(t, "Home", w.SSID)
	assert.True(t, w.Hidden)
	assert.Equal(t, "36", w.Channel)
}

func TestParseSaveResult(t *testing.T) {
	r, err := ParseSaveResult([]byte(`{"success":false,"error":"weak password"}`))
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.Equal(t, "weak password", r.Error)

	r, err = ParseSaveResult([]byte(`{"success":true}`))
	require.NoError(t, err)
	assert.True(t, r.Success)

	r, err = ParseSaveResult([]byte(`{}`))
	require.NoError(t, err)
	assert.False(t, r.Success)
	assert.NotEmpty(t, r.Error)
}
