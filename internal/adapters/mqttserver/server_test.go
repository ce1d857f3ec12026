package mqttserver

import (
	"strings"
	"testing"
)

func TestTruncatePayload(t *testing.T) {
	if got := truncatePayload([]byte("short")); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	long := strings.Repeat("x", 3000)
	got := truncatePayload([]byte(long))
	if len(got) != 2048+3 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected truncation length %d", len(got))
	}
}

func TestNewClientRejectsBadTLS(t *testing.T) {
	_, err := NewClient(Options{BrokerURL: "mqtt://127.0.0.1:1", ClientID: "x", TLSCert: "cert.pem"})
	if err == nil {
		t.Fatalf("expected tls error")
	}
}
