// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package smartthings provides a client for the SmartThings REST API.
//
// The client authenticates with a personal access token and covers the small
// surface the bridge consumes: listing the account's devices, reading
// component status, sending capability commands, and checking device health.
//
// All calls go through a shared rate limiter (SmartThings enforces request
// quotas per token) and a circuit breaker so a misbehaving cloud endpoint
// does not pile up blocked goroutines in the per-device adapters. The client
// is safe for concurrent use; the coordinator creates one per discovery pass
// and every adapter shares it.
package smartthings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/soothill/smartthings-tv-bridge/pkg/errors"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
	"github.com/soothill/smartthings-tv-bridge/pkg/metrics"
)

const (
	// DefaultAPIURL is the public SmartThings API endpoint.
	DefaultAPIURL = "https://api.smartthings.com/v1"

	defaultTimeout    = 15 * time.Second
	requestsPerSecond = 10
	requestBurst      = 10
	breakerFailures   = 5
	breakerTimeout    = 30 * time.Second
	maxDevicePages    = 50
)

// Client is an authenticated SmartThings API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a SmartThings client for the given bearer token.
// An empty baseURL selects the public API endpoint; a zero timeout selects
// the default request timeout.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "smartthings-api",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("SmartThings API circuit breaker state change")
		},
	})

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		breaker:    breaker,
	}
}

// deviceList is one page of the device list response.
type deviceList struct {
	Items []Device `json:"items"`
	Links struct {
		Next *struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"_links"`
}

// Devices returns all devices visible to the account, following paging links
// until the list is exhausted. Devices are returned in API order.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices := make([]Device, 0)
	url := c.baseURL + "/devices"

	for page := 0; url != ""; page++ {
		if page >= maxDevicePages {
			return nil, errors.NewAPIError("list devices", 0,
				fmt.Errorf("paging did not terminate after %d pages", maxDevicePages))
		}

		var list deviceList
		if err := c.do(ctx, "list devices", http.MethodGet, url, nil, &list); err != nil {
			return nil, err
		}
		devices = append(devices, list.Items...)

		url = ""
		if list.Links.Next != nil {
			url = list.Links.Next.Href
		}
	}

	return devices, nil
}

// MainStatus returns the status of the device's main component.
func (c *Client) MainStatus(ctx context.Context, deviceID string) (ComponentStatus, error) {
	url := fmt.Sprintf("%s/devices/%s/components/main/status", c.baseURL, deviceID)

	var status ComponentStatus
	if err := c.do(ctx, "device status", http.MethodGet, url, nil, &status); err != nil {
		return nil, err
	}
	return status, nil
}

// ExecuteCommands sends capability commands to a device.
func (c *Client) ExecuteCommands(ctx context.Context, deviceID string, commands []Command) error {
	url := fmt.Sprintf("%s/devices/%s/commands", c.baseURL, deviceID)

	body := struct {
		Commands []Command `json:"commands"`
	}{Commands: commands}

	for _, cmd := range commands {
		metrics.CommandsTotal.WithLabelValues(cmd.Capability).Inc()
	}

	err := c.do(ctx, "execute commands", http.MethodPost, url, body, nil)
	if err != nil {
		metrics.CommandErrors.Inc()
	}
	return err
}

// DeviceHealth returns the connectivity state of a device.
func (c *Client) DeviceHealth(ctx context.Context, deviceID string) (Health, error) {
	url := fmt.Sprintf("%s/devices/%s/health", c.baseURL, deviceID)

	var health Health
	if err := c.do(ctx, "device health", http.MethodGet, url, nil, &health); err != nil {
		return Health{}, err
	}
	return health, nil
}

// do performs one API request: rate limit, circuit breaker, auth header,
// JSON decode. Non-2xx responses become APIErrors carrying the status code.
func (c *Client) do(ctx context.Context, op, method, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errors.NewAPIError(op, 0, err)
	}

	start := time.Now()
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.roundTrip(ctx, op, method, url, body, out)
	})
	metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.APIErrors.WithLabelValues(op).Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return errors.NewAPIError(op, 0, errors.ErrCircuitBreakerOpen)
		}
		if errors.IsAPIError(err) {
			return err
		}
		return errors.NewAPIError(op, 0, err)
	}
	return nil
}

// roundTrip executes a single HTTP request within the circuit breaker.
func (c *Client) roundTrip(ctx context.Context, op, method, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.NewAPIError(op, resp.StatusCode,
			fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(data))))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
