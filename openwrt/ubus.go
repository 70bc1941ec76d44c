package openwrt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
)

const (
	UbusPath = "/ubus"

	// NullSession is the placeholder rpcd accepts for anonymous calls.
	NullSession = "00000000000000000000000000000000"

	// ubus status codes (libubus UBUS_STATUS_*).
	UbusStatusOK               = 0
	UbusStatusPermissionDenied = 6
)

type ubusRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type ubusResponse struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      int               `json:"id"`
	Result  []json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// UbusTransport speaks rpcd's JSON-RPC interface. rpcd has no DHCP lease
// listing, so devices still come from the devices.sh script.
type UbusTransport struct {
	http     *httpClient
	username string
	password string
	login    bool
	log      zerolog.Logger

	mu        sync.Mutex
	session   string
	expiresAt time.Time
}

func NewUbusTransport(baseURL string, opts Options) *UbusTransport {
	return &UbusTransport{
		http:     newHTTPClient(baseURL, opts.HTTPClient),
		username: opts.Username,
		password: opts.Password,
		login:    opts.Login,
		log:      opts.Logger,
	}
}

func (t *UbusTransport) Method() string { return MethodUbus }

// rawCall posts one envelope with an explicit session id.
func (t *UbusTransport) rawCall(ctx context.Context, session, namespace, method string, params interface{}) (json.RawMessage, error) {
	if params == nil {
		params = map[string]interface{}{}
	}
	data, err := t.http.postJSON(ctx, UbusPath, ubusRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "call",
		Params:  []interface{}{session, namespace, method, params},
	})
	if err != nil {
		return nil, err
	}

	var resp ubusResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, invalid(err)
	}
	if resp.Error != nil {
		return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Result) < 1 {
		return nil, fmt.Errorf("%w: missing result", ErrInvalidResponse)
	}

	var code int
	if err := json.Unmarshal(resp.Result[0], &code); err != nil {
		return nil, invalid(err)
	}
	if code != UbusStatusOK {
		return nil, &RPCError{Code: code}
	}
	if len(resp.Result) < 2 {
		// Some calls (uci commit) succeed without data.
		return json.RawMessage("{}"), nil
	}
	return resp.Result[1], nil
}

// Call runs namespace.method with the current session, logging in first when
// enabled and retrying once if the session was rejected.
func (t *UbusTransport) Call(ctx context.Context, namespace, method string, params interface{}) (json.RawMessage, error) {
	session, err := t.sessionID(ctx)
	if err != nil {
		return nil, err
	}

	data, err := t.rawCall(ctx, session, namespace, method, params)
	var rpcErr *RPCError
	if t.login && errors.As(err, &rpcErr) && rpcErr.Code == UbusStatusPermissionDenied {
		t.resetSession()
		if session, err = t.sessionID(ctx); err != nil {
			return nil, err
		}
		return t.rawCall(ctx, session, namespace, method, params)
	}
	return data, err
}

func (t *UbusTransport) sessionID(ctx context.Context) (string, error) {
	if !t.login {
		return NullSession, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != "" && time.Now().Before(t.expiresAt) {
		return t.session, nil
	}

	data, err := t.rawCall(ctx, NullSession, "session", "login", map[string]interface{}{
		"username": t.username,
		"password": t.password,
	})
	if err != nil {
		return "", fmt.Errorf("ubus session login: %w", err)
	}

	var s struct {
		Session string    `json:"ubus_rpc_session"`
		Timeout FlexFloat `json:"timeout"`
	}
	if err := json.Unmarshal(data, &s); err != nil || s.Session == "" {
		return "", fmt.Errorf("ubus session login: %w", ErrInvalidResponse)
	}

	ttl := time.Duration(s.Timeout.Or(300)) * time.Second
	t.session = s.Session
	// Renew a little early so an in-flight call never carries a dead session.
	t.expiresAt = time.Now().Add(ttl - ttl/10)
	t.log.Debug().Dur("ttl", ttl).Msg("ubus session established")
	return t.session, nil
}

func (t *UbusTransport) resetSession() {
	t.mu.Lock()
	t.session = ""
	t.mu.Unlock()
}

func (t *UbusTransport) systemInfo(ctx context.Context) (systemPayload, error) {
	data, err := t.Call(ctx, "system", "info", nil)
	if err != nil {
		return systemPayload{}, err
	}
	var p systemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return systemPayload{}, invalid(err)
	}
	return p, nil
}

func (t *UbusTransport) boardInfo(ctx context.Context) (systemPayload, error) {
	data, err := t.Call(ctx, "system", "board", nil)
	if err != nil {
		return systemPayload{}, err
	}
	var p systemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return systemPayload{}, invalid(err)
	}
	return p, nil
}

func (t *UbusTransport) wanStatus(ctx context.Context) (models.WanStatus, error) {
	data, err := t.Call(ctx, "network.interface", "status", map[string]string{"interface": "wan"})
	if err != nil {
		return models.WanStatus{}, err
	}
	var p interfacePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.WanStatus{}, invalid(err)
	}
	return p.normalize("wan"), nil
}

// FetchSystemInfo merges `system info` with hostname and model from
// `system board`. The board call is best effort.
func (t *UbusTransport) FetchSystemInfo(ctx context.Context) (models.SystemInfo, error) {
	p, err := t.systemInfo(ctx)
	if err != nil {
		return models.SystemInfo{}, opErr(OpSystem, MethodUbus, err)
	}
	info := p.normalize()

	if b, err := t.boardInfo(ctx); err == nil {
		info.Hostname = string(b.Hostname)
		info.Model = string(b.Model)
		info.Kernel = string(b.Kernel)
		info.Firmware = string(b.Release.Description)
	} else {
		t.log.Debug().Err(err).Msg("system board unavailable")
	}
	return info, nil
}

func (t *UbusTransport) FetchBoardInfo(ctx context.Context) (models.BoardInfo, error) {
	p, err := t.boardInfo(ctx)
	if err != nil {
		return models.BoardInfo{}, opErr(OpBoard, MethodUbus, err)
	}
	return p.board(), nil
}

func (t *UbusTransport) FetchWanStatus(ctx context.Context) (models.WanStatus, error) {
	w, err := t.wanStatus(ctx)
	return w, opErr(OpWan, MethodUbus, err)
}

// FetchStatus builds a status snapshot from `system info`, the WAN interface
// and the device list. rpcd exposes no throughput figures, so speeds are 0.
func (t *UbusTransport) FetchStatus(ctx context.Context) (models.StatusSnapshot, error) {
	p, err := t.systemInfo(ctx)
	if err != nil {
		return models.StatusSnapshot{}, opErr(OpStatus, MethodUbus, err)
	}
	s := models.StatusSnapshot{Online: true, Uptime: p.Uptime.Int64()}

	if w, err := t.wanStatus(ctx); err == nil {
		s.WanUp = w.Up
		if len(w.IPv4) > 0 {
			s.WanIP = stripMask(w.IPv4[0])
		}
	}
	if devices, err := t.FetchDevices(ctx); err == nil {
		for _, d := range devices {
			if d.Connected {
				s.ConnectedDevices++
			}
		}
	}
	return s, nil
}

func stripMask(addr string) string {
	ip, _, _ := strings.Cut(addr, "/")
	return ip
}

func (t *UbusTransport) FetchDevices(ctx context.Context) ([]models.Device, error) {
	data, err := t.http.get(ctx, CGIBase+"/devices.sh")
	if err != nil {
		return nil, opErr(OpDevices, MethodUbus, err)
	}
	d, err := ParseDevices(data)
	return d, opErr(OpDevices, MethodUbus, err)
}

type uciSection struct {
	Name       string     `json:"-"`
	Type       string     `json:".type"`
	Index      FlexFloat  `json:".index"`
	Device     FlexString `json:"device"`
	Mode       FlexString `json:"mode"`
	SSID       FlexString `json:"ssid"`
	Hidden     FlexBool   `json:"hidden"`
	Encryption FlexString `json:"encryption"`
	Channel    FlexString `json:"channel"`
	Disabled   FlexBool   `json:"disabled"`
}

// primaryInterface loads the wireless config and picks the first access-point
// wifi-iface by section index, plus its radio section.
func (t *UbusTransport) primaryInterface(ctx context.Context) (iface uciSection, radio *uciSection, err error) {
	data, err := t.Call(ctx, "uci", "get", map[string]string{"config": "wireless"})
	if err != nil {
		return uciSection{}, nil, err
	}
	var resp struct {
		Values map[string]uciSection `json:"values"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return uciSection{}, nil, invalid(err)
	}

	var ifaces []uciSection
	for name, s := range resp.Values {
		s.Name = name
		if s.Type == "wifi-iface" && (s.Mode == "" || s.Mode == "ap") {
			ifaces = append(ifaces, s)
		}
	}
	if len(ifaces) == 0 {
		return uciSection{}, nil, fmt.Errorf("%w: no wifi-iface section", ErrInvalidResponse)
	}
	sort.Slice(ifaces, func(i, j int) bool {
		if ifaces[i].Index.Or(0) != ifaces[j].Index.Or(0) {
			return ifaces[i].Index.Or(0) < ifaces[j].Index.Or(0)
		}
		return ifaces[i].Name < ifaces[j].Name
	})

	iface = ifaces[0]
	if r, ok := resp.Values[string(iface.Device)]; ok {
		r.Name = string(iface.Device)
		radio = &r
	}
	return iface, radio, nil
}

func (t *UbusTransport) FetchWifi(ctx context.Context) (models.WifiConfig, error) {
	iface, radio, err := t.primaryInterface(ctx)
	if err != nil {
		return models.WifiConfig{}, opErr(OpWifi, MethodUbus, err)
	}
	cfg := models.WifiConfig{
		SSID:       string(iface.SSID),
		Hidden:     iface.Hidden.Or(false),
		Encryption: string(iface.Encryption),
		Disabled:   iface.Disabled.Or(false),
	}
	if radio != nil {
		cfg.Channel = string(radio.Channel)
		cfg.Disabled = cfg.Disabled || radio.Disabled.Or(false)
	}
	return cfg, nil
}

// SaveWifi writes ssid/hidden/key to the primary wifi-iface and commits the
// wireless config, which makes rpcd reload the radios.
func (t *UbusTransport) SaveWifi(ctx context.Context, req models.WifiSaveRequest) (models.SaveResult, error) {
	iface, _, err := t.primaryInterface(ctx)
	if err != nil {
		return models.SaveResult{}, opErr(OpSaveWifi, MethodUbus, err)
	}

	values := map[string]string{
		"ssid":   req.SSID,
		"hidden": strconv.Itoa(boolToInt(req.Hidden)),
	}
	if req.Password != "" {
		values["key"] = req.Password
	}

	if _, err := t.Call(ctx, "uci", "set", map[string]interface{}{
		"config":  "wireless",
		"section": iface.Name,
		"values":  values,
	}); err != nil {
		return rpcVerdict(err)
	}
	if _, err := t.Call(ctx, "uci", "commit", map[string]string{"config": "wireless"}); err != nil {
		return rpcVerdict(err)
	}
	return models.SaveResult{Success: true}, nil
}

// rpcVerdict reports a router-side rejection as a failed result and anything
// else as a transport error.
func rpcVerdict(err error) (models.SaveResult, error) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return models.SaveResult{Success: false, Error: rpcErr.Error()}, nil
	}
	return models.SaveResult{}, opErr(OpSaveWifi, MethodUbus, err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
