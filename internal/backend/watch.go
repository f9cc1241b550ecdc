package backend

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/espfw/internal/logging"
	"github.com/muurk/espfw/internal/urls"
)

// Change-feed event types.
const (
	EventUploaded = "uploaded"
	EventDeleted  = "deleted"
)

// Event is one change-feed notification.
type Event struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	EspID string `json:"esp_id,omitempty"`
}

// maxReconnectDelay caps the Watch redial backoff.
const maxReconnectDelay = 30 * time.Second

// EventsURL returns the websocket URL of the change feed.
func (c *Client) EventsURL() string {
	return urls.WebSocket(c.BaseURL) + urls.FirmwareEvents
}

// Watch subscribes to the change feed and calls fn for every event until ctx
// is canceled. Dropped connections are redialed with exponential backoff.
// fn runs on the Watch goroutine.
func (c *Client) Watch(ctx context.Context, fn func(Event)) error {
	delay := c.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}

	for {
		connected, err := c.watchOnce(ctx, fn)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = c.ReconnectDelay
			if delay <= 0 {
				delay = time.Second
			}
		}
		logging.Warn("Change feed disconnected",
			zap.String("url", c.EventsURL()),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

// watchOnce reads one connection until it fails. connected reports whether
// the dial succeeded.
func (c *Client) watchOnce(ctx context.Context, fn func(Event)) (connected bool, err error) {
	header := http.Header{}
	if token := c.Tokens.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.EventsURL(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return false, NewAuthError("change feed rejected the session token")
		}
		return false, NewNetworkError("change feed dial failed", err)
	}
	logging.LogConnection(c.EventsURL(), "change_feed_connected")

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
			_ = conn.Close()
		}
	}()

	for {
		var ev Event
		if err := conn.ReadJSON(&ev); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return true, nil
			}
			return true, NewNetworkError("change feed read failed", err)
		}
		logging.Debug("Change feed event",
			zap.String("type", ev.Type),
			zap.String("firmware_id", ev.ID),
		)
		fn(ev)
	}
}
