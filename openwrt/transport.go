// Package openwrt talks to an OpenWrt router over one of several HTTP
// transports and normalizes every answer into the models package shapes.
package openwrt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"

	"Kendalinet-Layer/models"
)

const (
	MethodUbus = "ubus"
	MethodCGI  = "cgi"
	MethodLuci = "luci"
	MethodDemo = "demo"
)

// Operation names carried by OperationError.
const (
	OpStatus   = "fetchStatus"
	OpSystem   = "fetchSystemInfo"
	OpBoard    = "fetchBoardInfo"
	OpWan      = "fetchWanStatus"
	OpDevices  = "fetchDevices"
	OpWifi     = "fetchWifi"
	OpSaveWifi = "saveWifi"
)

const maxBodySize = 4 << 20

var (
	ErrInvalidResponse = errors.New("invalid response")
	ErrUnknownMethod   = errors.New("unknown transport method")
)

// Transport is one way of reaching a router. Callers never need to know
// which implementation answered.
type Transport interface {
	Method() string
	FetchStatus(ctx context.Context) (models.StatusSnapshot, error)
	FetchSystemInfo(ctx context.Context) (models.SystemInfo, error)
	FetchBoardInfo(ctx context.Context) (models.BoardInfo, error)
	FetchWanStatus(ctx context.Context) (models.WanStatus, error)
	FetchDevices(ctx context.Context) ([]models.Device, error)
	FetchWifi(ctx context.Context) (models.WifiConfig, error)
	// SaveWifi returns the router's verdict. err is only set when the
	// request itself failed.
	SaveWifi(ctx context.Context, req models.WifiSaveRequest) (models.SaveResult, error)
}

type Options struct {
	// HTTPClient defaults to a pooled client without an overall timeout.
	HTTPClient *http.Client
	Username   string
	Password   string
	// Login makes the ubus transport obtain a real session instead of the
	// all-zero placeholder.
	Login  bool
	Logger zerolog.Logger
}

// New selects the transport for method. baseURL is e.g. "http://192.168.2.1".
func New(method, baseURL string, opts Options) (Transport, error) {
	switch method {
	case MethodUbus:
		return NewUbusTransport(baseURL, opts), nil
	case MethodCGI:
		return NewCGITransport(baseURL, opts.HTTPClient), nil
	case MethodLuci:
		return NewLegacyTransport(baseURL, opts.HTTPClient), nil
	case MethodDemo:
		return NewDemoTransport(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// OperationError wraps any failure with the logical operation and transport.
type OperationError struct {
	Op     string
	Method string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s via %s: %v", e.Op, e.Method, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func opErr(op, method string, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Method: method, Err: err}
}

// HTTPError is a non-2xx answer.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return "unexpected HTTP status: " + e.Status
}

// RPCError is a ubus protocol failure: either the envelope's error object
// or a non-zero result code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return "ubus error: " + e.Message
	}
	return fmt.Sprintf("ubus call returned error code: %d", e.Code)
}

func invalid(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
}

type httpClient struct {
	base   string
	client *http.Client
}

func newHTTPClient(baseURL string, client *http.Client) *httpClient {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return &httpClient{base: strings.TrimRight(baseURL, "/"), client: client}
}

func (c *httpClient) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return data, nil
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

func (c *httpClient) postJSON(ctx context.Context, path string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body))
}

func (c *httpClient) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}
