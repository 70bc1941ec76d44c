package openwrt

import (
	"context"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"Kendalinet-Layer/models"
)

const (
	CGIBase    = "/cgi-bin/kendalinet"
	LegacyBase = "/cgi-bin/luci/admin/kendalinet/api"

	// StatusPath is the endpoint the status poller probes.
	StatusPath = CGIBase + "/status.sh"
)

// scriptTransport is the shared read side of the CGI script and legacy LuCI
// controller transports; they differ only in paths and save encoding.
type scriptTransport struct {
	http   *httpClient
	method string
	path   func(name string) string
}

func (t *scriptTransport) Method() string { return t.method }

func (t *scriptTransport) FetchStatus(ctx context.Context) (models.StatusSnapshot, error) {
	data, err := t.http.get(ctx, t.path("status"))
	if err != nil {
		return models.StatusSnapshot{}, opErr(OpStatus, t.method, err)
	}
	s, err := ParseStatus(data)
	return s, opErr(OpStatus, t.method, err)
}

func (t *scriptTransport) fetchSystem(ctx context.Context, op string) (systemPayload, error) {
	data, err := t.http.get(ctx, t.path("system"))
	if err != nil {
		return systemPayload{}, opErr(op, t.method, err)
	}
	var p systemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return systemPayload{}, opErr(op, t.method, invalid(err))
	}
	return p, nil
}

func (t *scriptTransport) FetchSystemInfo(ctx context.Context) (models.SystemInfo, error) {
	p, err := t.fetchSystem(ctx, OpSystem)
	if err != nil {
		return models.SystemInfo{}, err
	}
	return p.normalize(), nil
}

// FetchBoardInfo reads the board fields that the system script reports.
func (t *scriptTransport) FetchBoardInfo(ctx context.Context) (models.BoardInfo, error) {
	p, err := t.fetchSystem(ctx, OpBoard)
	if err != nil {
		return models.BoardInfo{}, err
	}
	return p.board(), nil
}

// FetchWanStatus is derived from the status script, which only knows the
// WAN address and link state.
func (t *scriptTransport) FetchWanStatus(ctx context.Context) (models.WanStatus, error) {
	data, err := t.http.get(ctx, t.path("status"))
	if err != nil {
		return models.WanStatus{}, opErr(OpWan, t.method, err)
	}
	s, err := ParseStatus(data)
	if err != nil {
		return models.WanStatus{}, opErr(OpWan, t.method, err)
	}
	w := models.WanStatus{Interface: "wan", Up: s.WanUp, IPv4: []string{}, DNS: []string{}}
	if s.WanIP != "" {
		w.IPv4 = append(w.IPv4, s.WanIP)
	}
	return w, nil
}

func (t *scriptTransport) FetchDevices(ctx context.Context) ([]models.Device, error) {
	data, err := t.http.get(ctx, t.path("devices"))
	if err != nil {
		return nil, opErr(OpDevices, t.method, err)
	}
	d, err := ParseDevices(data)
	return d, opErr(OpDevices, t.method, err)
}

func (t *scriptTransport) FetchWifi(ctx context.Context) (models.WifiConfig, error) {
	data, err := t.http.get(ctx, t.path("wifi"))
	if err != nil {
		return models.WifiConfig{}, opErr(OpWifi, t.method, err)
	}
	w, err := ParseWifi(data)
	return w, opErr(OpWifi, t.method, err)
}

// CGITransport calls the kendalinet CGI scripts directly.
type CGITransport struct {
	scriptTransport
}

func NewCGITransport(baseURL string, client *http.Client) *CGITransport {
	return &CGITransport{scriptTransport{
		http:   newHTTPClient(baseURL, client),
		method: MethodCGI,
		path:   func(name string) string { return CGIBase + "/" + name + ".sh" },
	}}
}

type cgiSaveBody struct {
	SSID     string `json:"ssid"`
	Hidden   bool   `json:"hidden"`
	Password string `json:"password,omitempty"`
}

func (t *CGITransport) SaveWifi(ctx context.Context, req models.WifiSaveRequest) (models.SaveResult, error) {
	data, err := t.http.postJSON(ctx, t.path("wifi_save"), cgiSaveBody{
		SSID:     req.SSID,
		Hidden:   req.Hidden,
		Password: req.Password,
	})
	if err != nil {
		return models.SaveResult{}, opErr(OpSaveWifi, t.method, err)
	}
	r, err := ParseSaveResult(data)
	return r, opErr(OpSaveWifi, t.method, err)
}

// LegacyTransport targets the older LuCI controller and saves with form fields.
type LegacyTransport struct {
	scriptTransport
}

func NewLegacyTransport(baseURL string, client *http.Client) *LegacyTransport {
	return &LegacyTransport{scriptTransport{
		http:   newHTTPClient(baseURL, client),
		method: MethodLuci,
		path:   func(name string) string { return LegacyBase + "/" + name },
	}}
}

func (t *LegacyTransport) SaveWifi(ctx context.Context, req models.WifiSaveRequest) (models.SaveResult, error) {
	form := url.Values{}
	form.Set("ssid", req.SSID)
	if req.Hidden {
		form.Set("hidden", "true")
	} else {
		form.Set("hidden", "false")
	}
	if req.Password != "" {
		form.Set("password", req.Password)
	}

	data, err := t.http.postForm(ctx, t.path("wifi_save"), form)
	if err != nil {
		return models.SaveResult{}, opErr(OpSaveWifi, t.method, err)
	}
	r, err := ParseSaveResult(data)
	return r, opErr(OpSaveWifi, t.method, err)
}
