package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mikey-austin/tsmusic/internal/player"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePlayer(t *testing.T) {
	m := New()
	m.ObservePlayer(player.Event{Type: player.EventTrackStart})
	m.ObservePlayer(player.Event{Type: player.EventTrackStart})
	m.ObservePlayer(player.Event{Type: player.EventTrackEnd})
	m.ObservePlayer(player.Event{Type: player.EventTrackError})
	m.ObservePlayer(player.Event{Type: player.EventQueueEmpty})

	if got := testutil.ToFloat64(m.tracksStarted); got != 2 {
		t.Fatalf("expected 2 started, got %v", got)
	}
	if got := testutil.ToFloat64(m.tracksEnded); got != 1 {
		t.Fatalf("expected 1 ended, got %v", got)
	}
	if got := testutil.ToFloat64(m.tracksFailed); got != 1 {
		t.Fatalf("expected 1 failed, got %v", got)
	}
}

func TestObserveCommand(t *testing.T) {
	m := New()
	m.ObserveCommand("whoami", nil)
	m.ObserveCommand("clientmove", errors.New("denied"))

	if got := testutil.ToFloat64(m.queryCommands.WithLabelValues("clientmove")); got != 1 {
		t.Fatalf("expected 1 clientmove, got %v", got)
	}
	if got := testutil.ToFloat64(m.queryFailures.WithLabelValues("clientmove")); got != 1 {
		t.Fatalf("expected 1 failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.queryFailures.WithLabelValues("whoami")); got != 0 {
		t.Fatalf("expected no whoami failures, got %v", got)
	}
}

func TestHandlerRefreshesGauges(t *testing.T) {
	m := New()
	called := false
	handler := m.Handler(func() {
		called = true
		m.SetQueueLength(4)
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !called {
		t.Fatalf("expected gauge refresh")
	}
	if !strings.Contains(string(body), "tsm_queue_length 4") {
		t.Fatalf("expected queue length in output:\n%s", body)
	}
}
