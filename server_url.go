package main

import (
	"fmt"
	"net"
	"strings"
)

// listenerURL returns the URL players should point their websocket client at, derived from
// the bound listener address.
func listenerURL(address string, tlsEnabled bool) string {
	scheme := "ws"
	if tlsEnabled {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, normaliseHostPort(address))
}

func normaliseHostPort(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "localhost"
	}
	host, port, err := net.SplitHostPort(trimmed)
	if err != nil {
		if strings.HasPrefix(trimmed, ":") {
			return "localhost" + trimmed
		}
		return trimmed
	}
	host = strings.TrimSpace(host)
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
