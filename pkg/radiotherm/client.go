package radiotherm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	requestTimeout = 10 * time.Second

	// invalidValue is what the thermostat reports for fields it could not read.
	invalidValue = -1
)

// Client is an HTTP implementation of DeviceAPI.
type Client struct {
	host       string
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request network timeout. It applies to a copy of
// the current HTTP client so a shared client is left untouched.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		httpClient := *c.httpClient
		httpClient.Timeout = timeout
		c.httpClient = &httpClient
	}
}

var _ DeviceAPI = &Client{}

// NewClient creates a client for the thermostat reachable at host (optionally host:port).
func NewClient(host string, opts ...ClientOption) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return nil, fmt.Errorf("radiotherm host is required")
	}
	baseURL := host
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &Client{
		host:       strings.TrimPrefix(strings.TrimPrefix(host, "http://"), "https://"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Host implements DeviceAPI.Host
func (c *Client) Host() string {
	return c.host
}

// Tstat implements DeviceAPI.Tstat
func (c *Client) Tstat(ctx context.Context) (TstatState, error) {
	var state TstatState
	if err := c.getJSON(ctx, "/tstat", &state); err != nil {
		return TstatState{}, err
	}
	if err := validateTstat(state); err != nil {
		return TstatState{}, err
	}
	return state, nil
}

// Humidity implements DeviceAPI.Humidity
func (c *Client) Humidity(ctx context.Context) (float64, error) {
	var payload struct {
		Humidity float64 `json:"humidity"`
	}
	if err := c.getJSON(ctx, "/tstat/humidity", &payload); err != nil {
		return 0, err
	}
	if payload.Humidity == invalidValue {
		return 0, &TstatError{Message: "humidity returned -1, device may be busy"}
	}
	return payload.Humidity, nil
}

// Name implements DeviceAPI.Name
func (c *Client) Name(ctx context.Context) (string, error) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, "/sys/name", &payload); err != nil {
		return "", err
	}
	return payload.Name, nil
}

// Sys implements DeviceAPI.Sys
func (c *Client) Sys(ctx context.Context) (SysInfo, error) {
	var info SysInfo
	if err := c.getJSON(ctx, "/sys", &info); err != nil {
		return SysInfo{}, err
	}
	return info, nil
}

// Model implements DeviceAPI.Model
func (c *Client) Model(ctx context.Context) (string, error) {
	var payload struct {
		Model string `json:"model"`
	}
	if err := c.getJSON(ctx, "/tstat/model", &payload); err != nil {
		return "", err
	}
	return payload.Model, nil
}

// SetTargetHeat implements DeviceAPI.SetTargetHeat
func (c *Client) SetTargetHeat(ctx context.Context, temp float64) error {
	return c.postJSON(ctx, "/tstat", map[string]any{"t_heat": temp})
}

// SetTargetCool implements DeviceAPI.SetTargetCool
func (c *Client) SetTargetCool(ctx context.Context, temp float64) error {
	return c.postJSON(ctx, "/tstat", map[string]any{"t_cool": temp})
}

// SetMode implements DeviceAPI.SetMode
func (c *Client) SetMode(ctx context.Context, mode Mode) error {
	return c.postJSON(ctx, "/tstat", map[string]any{"tmode": int(mode)})
}

// SetFanMode implements DeviceAPI.SetFanMode
func (c *Client) SetFanMode(ctx context.Context, mode FanMode) error {
	return c.postJSON(ctx, "/tstat", map[string]any{"fmode": int(mode)})
}

// SetHold implements DeviceAPI.SetHold
func (c *Client) SetHold(ctx context.Context, hold bool) error {
	value := 0
	if hold {
		value = 1
	}
	return c.postJSON(ctx, "/tstat", map[string]any{"hold": value})
}

// SetTime implements DeviceAPI.SetTime. The device counts days from Monday.
func (c *Client) SetTime(ctx context.Context, t time.Time) error {
	return c.postJSON(ctx, "/tstat", map[string]any{
		"time": DeviceTime{
			Day:    (int(t.Weekday()) + 6) % 7,
			Hour:   t.Hour(),
			Minute: t.Minute(),
		},
	})
}

func validateTstat(state TstatState) error {
	fields := map[string]float64{
		"temp":   state.Temp,
		"tmode":  float64(state.TMode),
		"fmode":  float64(state.FMode),
		"tstate": float64(state.TState),
		"hold":   float64(state.Hold),
	}
	if state.THeat != nil {
		fields["t_heat"] = *state.THeat
	}
	if state.TCool != nil {
		fields["t_cool"] = *state.TCool
	}
	for name, value := range fields {
		if value == invalidValue {
			return &TstatError{Message: fmt.Sprintf("%s returned -1, device may be busy", name)}
		}
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	payload, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	payload, err := c.do(req)
	if err != nil {
		return err
	}

	var result struct {
		Success *int   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if result.Success == nil {
		msg := result.Error
		if msg == "" {
			msg = "write rejected"
		}
		return &TstatError{Message: fmt.Sprintf("%s: %s", path, msg)}
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request %s: status code %d", req.URL.Path, resp.StatusCode)
	}
	return payload, nil
}
