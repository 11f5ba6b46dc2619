package api

import (
	"net/http/httptest"
	"testing"
)

func TestClientKey(t *testing.T) {
	trusted, err := ParseTrustedProxies([]string{"10.0.0.0/8", "192.168.1.5"})
	if err != nil {
		t.Fatalf("ParseTrustedProxies failed: %v", err)
	}

	tests := []struct {
		name      string
		remote    string
		forwarded string
		want      string
	}{
		{name: "direct peer", remote: "203.0.113.7:5000", want: "203.0.113.7"},
		{name: "untrusted peer ignores header", remote: "203.0.113.7:5000", forwarded: "1.2.3.4", want: "203.0.113.7"},
		{name: "trusted peer", remote: "10.0.0.9:443", forwarded: "1.2.3.4", want: "1.2.3.4"},
		{name: "skips trusted hops", remote: "10.0.0.9:443", forwarded: "9.9.9.9, 1.2.3.4, 192.168.1.5", want: "1.2.3.4"},
		{name: "spoofed leftmost ignored", remote: "10.0.0.9:443", forwarded: "6.6.6.6, 1.2.3.4", want: "1.2.3.4"},
		{name: "trusted peer without header", remote: "10.0.0.9:443", want: "10.0.0.9"},
		{name: "garbage hop", remote: "10.0.0.9:443", forwarded: "not-an-ip", want: "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientKey(req, trusted); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseTrustedProxies_Invalid(t *testing.T) {
	if _, err := ParseTrustedProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Fatal("expected error for bad CIDR")
	}
	if _, err := ParseTrustedProxies([]string{"proxy.local"}); err == nil {
		t.Fatal("expected error for hostname")
	}
}
