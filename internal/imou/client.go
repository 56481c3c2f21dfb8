package imou

import (
	"bytes"
	"context"
	"crypto/md5" //nolint:gosec
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultTimeout   = 10 * time.Second
	maxRetryAttempts = 3
	signVersion      = "1.0"

	// Cloud-side code meaning the call succeeded.
	codeOK = "0"
)

// tokenExpiredCodes are cloud result codes that invalidate the cached access
// token and are worth one re-auth attempt.
var tokenExpiredCodes = map[string]struct{}{
	"TK1002": {},
	"TK1003": {},
}

// Client performs signed calls against the Imou OpenAPI cloud endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	appSecret  string
	logger     *slog.Logger

	mu           sync.Mutex
	accessToken  string
	tokenExpires time.Time

	// test seams
	nowFn   func() time.Time
	nonceFn func() string
	sleepFn func(ctx context.Context, wait time.Duration) error
}

// NewClient creates a client for the given endpoint and credential pair.
func NewClient(baseURL, appID, appSecret string, logger *slog.Logger) *Client {
	return NewClientWithHTTPClient(baseURL, appID, appSecret, logger, &http.Client{Timeout: defaultTimeout})
}

// NewClientWithHTTPClient allows callers to supply a custom HTTP client, e.g.
// with a configured request timeout.
func NewClientWithHTTPClient(baseURL, appID, appSecret string, logger *slog.Logger, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		appID:      appID,
		appSecret:  appSecret,
		logger:     logger,
		nowFn:      time.Now,
		nonceFn:    randomNonce,
		sleepFn:    sleepContext,
	}
}

// SetTimeout bounds each remote call.
func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.httpClient.Timeout = timeout
	}
}

// Connect validates the credential pair by fetching an access token.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.token(ctx)
	return err
}

// DeviceBaseList returns all registered device ids visible to the credential
// pair. The cloud pages the list; pages are fetched with a bindId cursor (the
// last device id of the previous page) until the accumulated list matches the
// reported count.
func (c *Client) DeviceBaseList(ctx context.Context) (*DeviceList, error) {
	const pageSize = 128

	out := &DeviceList{Devices: []DeviceListRow{}}
	var cursor any = -1
	for {
		page := &DeviceList{Count: -1}
		params := map[string]any{
			"bindId":     cursor,
			"limit":      pageSize,
			"type":       "bindAndShare",
			"needApInfo": false,
		}
		if err := c.call(ctx, "deviceBaseList", params, page); err != nil {
			return nil, err
		}
		if page.Count < 0 || page.Devices == nil {
			return nil, &InvalidResponseError{Detail: "deviceList or count missing in deviceBaseList payload"}
		}

		out.Count = page.Count
		out.Devices = append(out.Devices, page.Devices...)
		if len(out.Devices) >= out.Count {
			return out, nil
		}
		if len(page.Devices) == 0 {
			return nil, &InvalidResponseError{
				Detail: fmt.Sprintf("deviceBaseList paging stalled: count=%d but only %d ids returned", out.Count, len(out.Devices)),
			}
		}
		cursor = page.Devices[len(page.Devices)-1].DeviceID
	}
}

// DeviceBaseDetailList returns detail records for the given device ids.
func (c *Client) DeviceBaseDetailList(ctx context.Context, deviceIDs []string) (*DeviceDetailList, error) {
	list := make([]map[string]string, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		list = append(list, map[string]string{"deviceId": id, "channelId": ""})
	}
	out := &DeviceDetailList{}
	if err := c.call(ctx, "deviceBaseDetailList", map[string]any{"deviceList": list}, out); err != nil {
		return nil, err
	}
	if out.Devices == nil {
		return nil, &InvalidResponseError{Detail: "deviceList missing in deviceBaseDetailList payload"}
	}
	return out, nil
}

// DeviceOnline returns the top-level and per-channel online codes for a device.
func (c *Client) DeviceOnline(ctx context.Context, deviceID string) (*DeviceOnlineStatus, error) {
	out := &DeviceOnlineStatus{}
	if err := c.call(ctx, "deviceOnline", map[string]any{"deviceId": deviceID}, out); err != nil {
		return nil, err
	}
	if out.OnLine == "" {
		return nil, &InvalidResponseError{Detail: fmt.Sprintf("onLine missing in deviceOnline payload for %s", deviceID)}
	}
	return out, nil
}

// GetCollection returns the ordered preset list for a (device, channel) pair.
func (c *Client) GetCollection(ctx context.Context, deviceID, channelID string) (*CollectionList, error) {
	out := &CollectionList{}
	params := map[string]any{"deviceId": deviceID, "channelId": channelID}
	if err := c.call(ctx, "getCollection", params, out); err != nil {
		return nil, err
	}
	if out.Collections == nil {
		out.Collections = []Collection{}
	}
	return out, nil
}

// TurnCollection moves the channel to a named preset.
func (c *Client) TurnCollection(ctx context.Context, deviceID, channelID, name string) error {
	params := map[string]any{"deviceId": deviceID, "channelId": channelID, "name": name}
	return c.call(ctx, "turnCollection", params, nil)
}

// ControlMovePTZ issues a directional PTZ operation for a fixed duration.
func (c *Client) ControlMovePTZ(ctx context.Context, deviceID, channelID string, operation, durationMs int) error {
	params := map[string]any{
		"deviceId":  deviceID,
		"channelId": channelID,
		"operation": operation,
		"duration":  durationMs,
	}
	return c.call(ctx, "controlMovePTZ", params, nil)
}

// RestartDevice restarts the whole device.
func (c *Client) RestartDevice(ctx context.Context, deviceID string) error {
	return c.call(ctx, "restartDevice", map[string]any{"deviceId": deviceID}, nil)
}

// SetDeviceCameraStatus toggles a camera ability switch, e.g. "closeDormant"
// to wake a power-saving device.
func (c *Client) SetDeviceCameraStatus(ctx context.Context, deviceID, enableType string, value bool) error {
	params := map[string]any{"deviceId": deviceID, "enableType": enableType, "enable": value}
	return c.call(ctx, "setDeviceCameraStatus", params, nil)
}

type systemEnvelope struct {
	Ver   string `json:"ver"`
	AppID string `json:"appId"`
	Sign  string `json:"sign"`
	Time  int64  `json:"time"`
	Nonce string `json:"nonce"`
}

type requestEnvelope struct {
	System systemEnvelope `json:"system"`
	ID     string         `json:"id"`
	Params any            `json:"params"`
}

type resultEnvelope struct {
	Result struct {
		Code string          `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	} `json:"result"`
	ID string `json:"id"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]any, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}
	if params == nil {
		params = map[string]any{}
	}
	params["token"] = token

	env, err := c.post(ctx, method, params)
	if err != nil {
		return err
	}
	if env.Result.Code != codeOK {
		if _, expired := tokenExpiredCodes[env.Result.Code]; expired {
			c.invalidateToken()
			token, err = c.token(ctx)
			if err != nil {
				return err
			}
			params["token"] = token
			env, err = c.post(ctx, method, params)
			if err != nil {
				return err
			}
		}
		if env.Result.Code != codeOK {
			return &APIError{Code: env.Result.Code, Message: env.Result.Msg}
		}
	}
	if out == nil {
		return nil
	}
	if len(env.Result.Data) == 0 {
		return &InvalidResponseError{Detail: fmt.Sprintf("empty data in %s payload", method)}
	}
	if err := json.Unmarshal(env.Result.Data, out); err != nil {
		return &InvalidResponseError{Detail: fmt.Sprintf("malformed data in %s payload: %v", method, err)}
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.appID == "" || c.appSecret == "" {
		return "", &NotConnectedError{Reason: "app id or app secret not configured"}
	}

	c.mu.Lock()
	if c.accessToken != "" && c.nowFn().Before(c.tokenExpires) {
		token := c.accessToken
		c.mu.Unlock()
		return token, nil
	}
	c.mu.Unlock()

	env, err := c.post(ctx, "accessToken", map[string]any{})
	if err != nil {
		return "", err
	}
	if env.Result.Code != codeOK {
		return "", &NotConnectedError{Reason: fmt.Sprintf("accessToken failed with code %s: %s", env.Result.Code, env.Result.Msg)}
	}
	var payload struct {
		AccessToken string `json:"accessToken"`
		ExpireTime  int64  `json:"expireTime"`
	}
	if err := json.Unmarshal(env.Result.Data, &payload); err != nil || payload.AccessToken == "" {
		return "", &InvalidResponseError{Detail: "accessToken missing in accessToken payload"}
	}

	c.mu.Lock()
	c.accessToken = payload.AccessToken
	// expireTime is in seconds; renew a minute early
	c.tokenExpires = c.nowFn().Add(time.Duration(payload.ExpireTime)*time.Second - time.Minute)
	c.mu.Unlock()

	c.logger.Debug("access token refreshed", "expires_in_sec", payload.ExpireTime)
	return payload.AccessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

func (c *Client) post(ctx context.Context, method string, params any) (*resultEnvelope, error) {
	var lastErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		env, err := c.doPost(ctx, method, params)
		if err == nil {
			return env, nil
		}
		lastErr = err
		if IsDomain(err) {
			return nil, err
		}
		if attempt == maxRetryAttempts {
			break
		}
		if err := c.sleepFn(ctx, time.Duration(attempt)*400*time.Millisecond); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("imou request %s failed: %w", method, lastErr)
}

func (c *Client) doPost(ctx context.Context, method string, params any) (*resultEnvelope, error) {
	now := c.nowFn().Unix()
	nonce := c.nonceFn()
	body := requestEnvelope{
		System: systemEnvelope{
			Ver:   signVersion,
			AppID: c.appID,
			Sign:  sign(now, nonce, c.appSecret),
			Time:  now,
			Nonce: nonce,
		},
		ID:     nonce,
		Params: params,
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(snippet))
	}

	env := &resultEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(env); err != nil {
		return nil, &InvalidResponseError{Detail: fmt.Sprintf("malformed envelope in %s response: %v", method, err)}
	}
	if env.Result.Code == "" {
		return nil, &InvalidResponseError{Detail: fmt.Sprintf("result code missing in %s response", method)}
	}
	return env, nil
}

// sign computes the request signature per the Imou OpenAPI scheme.
func sign(timestamp int64, nonce, appSecret string) string {
	payload := fmt.Sprintf("time:%d,nonce:%s,appSecret:%s", timestamp, nonce, appSecret)
	digest := md5.Sum([]byte(payload)) //nolint:gosec
	return hex.EncodeToString(digest[:])
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

func sleepContext(ctx context.Context, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
