package statushttp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/mikey-austin/tsmusic/internal/adapters/metrics"
	"github.com/mikey-austin/tsmusic/internal/modules/control"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

const (
	// DefaultListen is the default status address.
	DefaultListen = "127.0.0.1:8089"

	shutdownTimeout = 5 * time.Second
)

// Config configures the status endpoint.
type Config struct {
	Listen string
}

// Module serves health, player status and metrics over HTTP.
type Module struct {
	log     *zap.Logger
	player  control.StateSource
	metrics *metrics.Metrics
	config  Config
	now     func() time.Time
	ready   chan string
}

// NewModule creates the status module. m may be nil to disable /metrics.
func NewModule(log *zap.Logger, p control.StateSource, m *metrics.Metrics, cfg Config) (*Module, error) {
	if p == nil {
		return nil, errors.New("player required")
	}
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = DefaultListen
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:     log,
		player:  p,
		metrics: m,
		config:  cfg,
		now:     time.Now,
		ready:   make(chan string, 1),
	}, nil
}

// Ready yields the bound address once the listener is up.
func (m *Module) Ready() <-chan string {
	return m.ready
}

// Router builds the HTTP routes.
func (m *Module) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(m.requestLogger)
	r.Get("/healthz", m.health)
	r.Get("/api/status", m.status)
	r.Get("/api/queue", m.queue)
	if m.metrics != nil {
		r.Get("/metrics", m.metrics.Handler(func() {
			m.metrics.SetQueueLength(len(m.player.Queue()))
		}).ServeHTTP)
	}
	return r
}

// Run serves until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", m.config.Listen)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: m.Router(), ReadHeaderTimeout: 5 * time.Second}
	m.log.Info("status http listening", zap.String("addr", ln.Addr().String()))
	m.ready <- ln.Addr().String()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			m.log.Warn("status http shutdown", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (m *Module) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (m *Module) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, control.Snapshot(m.player, m.now().Unix()))
}

func (m *Module) queue(w http.ResponseWriter, _ *http.Request) {
	reply := tsm.QueueGetReply{Entries: []tsm.TrackInfo{}}
	for _, track := range m.player.Queue() {
		reply.Entries = append(reply.Entries, control.TrackInfo(track))
	}
	if current, ok := m.player.Current(); ok {
		info := control.TrackInfo(current)
		reply.Current = &info
	}
	writeJSON(w, http.StatusOK, reply)
}

func (m *Module) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		m.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
