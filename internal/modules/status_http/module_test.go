package statushttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mikey-austin/tsmusic/internal/adapters/metrics"
	"github.com/mikey-austin/tsmusic/internal/player"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

type fakePlayer struct {
	state   player.State
	current *player.Track
	queue   []player.Track
}

func (f *fakePlayer) State() player.State   { return f.state }
func (f *fakePlayer) Volume() int           { return 40 }
func (f *fakePlayer) Queue() []player.Track { return f.queue }
func (f *fakePlayer) Current() (player.Track, bool) {
	if f.current == nil {
		return player.Track{}, false
	}
	return *f.current, true
}

func newTestServer(t *testing.T, p *fakePlayer, m *metrics.Metrics) *httptest.Server {
	t.Helper()
	mod, err := NewModule(nil, p, m, Config{})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	mod.now = func() time.Time { return time.Unix(1000, 0) }
	srv := httptest.NewServer(mod.Router())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakePlayer{state: player.StateIdle}, nil)
	code, body := get(t, srv.URL+"/healthz")
	if code != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("unexpected response %d %q", code, body)
	}
}

func TestStatusReportsPlayerState(t *testing.T) {
	p := &fakePlayer{
		state:   player.StatePlaying,
		current: &player.Track{ID: "t1", Title: "Song"},
		queue:   []player.Track{{ID: "t2"}, {ID: "t3"}},
	}
	srv := newTestServer(t, p, nil)
	code, body := get(t, srv.URL+"/api/status")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	var state tsm.PlayerState
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if state.Status != "playing" || state.Volume != 40 || state.QueueLength != 2 || state.TS != 1000 {
		t.Fatalf("unexpected state %+v", state)
	}
	if state.Current == nil || state.Current.Title != "Song" {
		t.Fatalf("expected current track")
	}
}

func TestQueueEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakePlayer{state: player.StateIdle}, nil)
	code, body := get(t, srv.URL+"/api/queue")
	if code != http.StatusOK || !strings.Contains(body, `"entries":[]`) {
		t.Fatalf("unexpected response %d %q", code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveCommand("whoami", nil)
	p := &fakePlayer{state: player.StateIdle, queue: []player.Track{{ID: "a"}}}
	srv := newTestServer(t, p, m)
	code, body := get(t, srv.URL+"/metrics")
	if code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	for _, want := range []string{`tsm_query_commands_total{verb="whoami"} 1`, "tsm_queue_length 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in metrics", want)
		}
	}

	noMetrics := newTestServer(t, p, nil)
	if code, _ := get(t, noMetrics.URL+"/metrics"); code != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", code)
	}
}

func TestRunServesUntilCancelled(t *testing.T) {
	mod, err := NewModule(nil, &fakePlayer{state: player.StateIdle}, nil, Config{Listen: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mod.Run(ctx) }()

	var addr string
	select {
	case addr = <-mod.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("listener not ready")
	}
	if code, _ := get(t, "http://"+addr+"/healthz"); code != http.StatusOK {
		t.Fatalf("unexpected status %d", code)
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
}
