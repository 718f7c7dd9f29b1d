// Package rpcclient talks to a vsnplyr server over its JSON RPC and
// websocket subscription endpoints.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vsnplyr/internal/rpc"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client calls one server. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *websocket.Dialer
	logger     *logrus.Logger
}

// New creates a client for the server at baseURL. timeout bounds each
// call; subscriptions are not affected.
func New(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		logger: logger,
	}
}

// call posts req to method and decodes the result into T. Error
// envelopes are turned back into errors matching the apperr sentinels.
func call[T any](ctx context.Context, c *Client, method string, req interface{}) (T, error) {
	var zero T
	body, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("encode %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+rpc.MethodPath(method), bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return zero, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var envelope rpc.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil || envelope.Error.Code == "" {
			return zero, fmt.Errorf("call %s: unexpected status %d", method, resp.StatusCode)
		}
		return zero, envelope.Error.Err()
	}

	var out rpc.Response[T]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, fmt.Errorf("decode %s response: %w", method, err)
	}
	return out.Result, nil
}

// watch opens a subscription and returns its values. The first frame is
// read before returning so a failing view reports its error directly.
func watch[T any](ctx context.Context, c *Client, path string) (<-chan T, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL(path), nil)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}

	// Closing the connection unblocks the reader when ctx ends.
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	var first rpc.Frame[T]
	if err := conn.ReadJSON(&first); err != nil {
		close(stop)
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("subscribe %s: %w", path, err)
	}
	if first.Error != nil {
		close(stop)
		conn.Close()
		return nil, first.Error.Err()
	}

	out := make(chan T, 1)
	out <- first.Data
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()

		for {
			var frame rpc.Frame[T]
			if err := conn.ReadJSON(&frame); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && ctx.Err() == nil {
					c.logger.WithError(err).WithField("path", path).Debug("Subscription ended")
				}
				return
			}
			if frame.Error != nil {
				c.logger.WithField("path", path).WithError(frame.Error.Err()).Info("Subscription failed")
				return
			}
			offer(out, frame.Data)
		}
	}()
	return out, nil
}

func (c *Client) wsURL(path string) string {
	switch {
	case strings.HasPrefix(c.baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(c.baseURL, "https://") + path
	case strings.HasPrefix(c.baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(c.baseURL, "http://") + path
	default:
		return c.baseURL + path
	}
}

// offer replaces any undelivered value in ch with v.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}
