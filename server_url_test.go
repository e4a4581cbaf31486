package main

import "testing"

func TestListenerURL(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		address string
		tls     bool
		want    string
	}{
		"default_port_only":    {address: ":43127", want: "ws://localhost:43127/ws"},
		"explicit_localhost":   {address: "localhost:8000", want: "ws://localhost:8000/ws"},
		"explicit_ipv4_any":    {address: "0.0.0.0:9000", want: "ws://localhost:9000/ws"},
		"explicit_ipv4_local":  {address: "127.0.0.1:43127", want: "ws://127.0.0.1:43127/ws"},
		"explicit_ipv6_any":    {address: "[::]:43127", want: "ws://localhost:43127/ws"},
		"explicit_ipv6_custom": {address: "[2001:db8::1]:43127", want: "ws://[2001:db8::1]:43127/ws"},
		"tls_enabled":          {address: ":43127", tls: true, want: "wss://localhost:43127/ws"},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got := listenerURL(tc.address, tc.tls)
			if got != tc.want {
				t.Fatalf("listenerURL(%q, %t) = %q, want %q", tc.address, tc.tls, got, tc.want)
			}
		})
	}
}

func TestNormaliseHostPortNoPort(t *testing.T) {
	t.Parallel()

	got := normaliseHostPort("")
	if got != "localhost" {
		t.Fatalf("expected localhost for empty address, got %q", got)
	}
}

func TestNormaliseHostPortFallsBackToLocalhost(t *testing.T) {
	for input, want := range map[string]string{"": "localhost", ":7301": "localhost:7301", "range.local": "range.local"} {
		if got := normaliseHostPort(input); got != want {
			t.Fatalf("normaliseHostPort(%q) = %q, want %q", input, got, want)
		}
	}
}
