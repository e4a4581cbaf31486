// Package websockettest holds websocket helpers shared by tests.
package websockettest

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// URL converts an httptest server URL into a websocket URL for path.
func URL(serverURL, path string) string {
	switch {
	case strings.HasPrefix(serverURL, "https://"):
		return "wss://" + strings.TrimPrefix(serverURL, "https://") + path
	case strings.HasPrefix(serverURL, "http://"):
		return "ws://" + strings.TrimPrefix(serverURL, "http://") + path
	}
	return serverURL + path
}

// Dial connects with the default dialer.
func Dial(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	return websocket.DefaultDialer.Dial(urlStr, header)
}

// DialIgnoringPongs connects and never answers pings so tests can simulate a stalled peer.
func DialIgnoringPongs(urlStr string, header http.Header) (*websocket.Conn, *http.Response, error) {
	conn, resp, err := Dial(urlStr, header)
	if err != nil {
		return nil, resp, err
	}
	conn.SetPingHandler(func(string) error { return nil })
	conn.SetPongHandler(func(string) error { return nil })
	return conn, resp, nil
}
