package rangeview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"neonrange/server/internal/game"
	"neonrange/server/internal/input"
	"neonrange/server/internal/timesync"
)

const writeWait = 5 * time.Second

// Welcome is the first message of a played session.
type Welcome = game.ServerMessage

// Client is a player connection to the range server.
type Client struct {
	conn  *websocket.Conn
	now   func() time.Time
	clock *timesync.Estimator

	mu  sync.Mutex
	seq uint64
}

// Dial connects to the websocket endpoint and waits for the welcome message.
func Dial(ctx context.Context, rawURL, token string) (*Client, game.ServerMessage, error) {
	endpoint, err := url.Parse(rawURL)
	if err != nil {
		return nil, game.ServerMessage{}, fmt.Errorf("parse url: %w", err)
	}
	header := http.Header{}
	if token != "" {
		header.Set("X-Auth-Token", token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint.String(), header)
	if err != nil {
		if resp != nil {
			return nil, game.ServerMessage{}, fmt.Errorf("dial %s: %s: %w", endpoint, resp.Status, err)
		}
		return nil, game.ServerMessage{}, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	var welcome game.ServerMessage
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, game.ServerMessage{}, fmt.Errorf("read welcome: %w", err)
	}
	if welcome.Type != game.MessageWelcome {
		_ = conn.Close()
		return nil, game.ServerMessage{}, fmt.Errorf("expected welcome, got %q", welcome.Type)
	}
	clock := timesync.NewEstimator(0, time.Now)
	clock.Observe(welcome.ServerTimeMs)
	return &Client{conn: conn, now: time.Now, clock: clock}, welcome, nil
}

// Send stamps a command with the next sequence number and the estimated server time.
func (c *Client) Send(command input.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	payload, err := input.Encode(input.Envelope{Seq: c.seq, SentAtMs: c.clock.ServerNow().UnixMilli(), Command: command})
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(c.now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Listen delivers frames to fn until the connection closes or ctx is done.
func (c *Client) Listen(ctx context.Context, fn func(game.Snapshot)) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()
	for {
		var message game.ServerMessage
		if err := c.conn.ReadJSON(&message); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		c.clock.Observe(message.ServerTimeMs)
		switch message.Type {
		case game.MessageFrame:
			if message.Snapshot != nil {
				fn(*message.Snapshot)
			}
		case game.MessageError:
			return errors.New(message.Reason)
		}
	}
}

// Close sends a close frame and drops the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.conn.Close()
}
