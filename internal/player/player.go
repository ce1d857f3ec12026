package player

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mikey-austin/tsmusic/internal/adapters/clock"
	"github.com/mikey-austin/tsmusic/internal/adapters/idgen"
	"github.com/mikey-austin/tsmusic/internal/media"
	"go.uber.org/zap"
)

// Resolver looks up title and duration for a URL.
type Resolver interface {
	Lookup(ctx context.Context, url string) (Metadata, error)
}

// Downloader materializes a URL as a local audio file at dest.
type Downloader interface {
	Download(ctx context.Context, url string, dest string) error
}

// Decoder starts audible playback of a local file.
type Decoder interface {
	Start(path string, volume int) (Process, error)
}

// Process is a running decoder controlled by signals.
type Process interface {
	Wait() error
	Terminate() error
	Suspend() error
	Continue() error
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique track IDs.
type IDGen interface {
	NewID() string
}

const (
	DefaultMetadataTimeout = 30 * time.Second
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultVolume          = 50
	UnknownTitle           = "Unknown"
)

// Config configures a Player.
type Config struct {
	CacheDir        string
	MetadataTimeout time.Duration
	DownloadTimeout time.Duration
	// Volume is the starting volume. nil selects DefaultVolume.
	Volume *int
	// Validate checks a URL before lookup. Defaults to media.ValidateURL.
	Validate func(string) error
	Clock    Clock
	IDGen    IDGen
}

type session struct {
	track   *Track
	proc    Process
	stopped bool
	// killed marks a decoder exit requested by skip or stop.
	killed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// Player owns the track queue and the single playback session.
type Player struct {
	log        *zap.Logger
	resolver   Resolver
	downloader Downloader
	decoder    Decoder
	config     Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	queue   []*Track
	state   State
	session *session
	volume  int
	closed  bool

	subMu sync.Mutex
	subs  []func(Event)
}

// New creates an idle player.
func New(log *zap.Logger, resolver Resolver, downloader Downloader, decoder Decoder, cfg Config) (*Player, error) {
	if resolver == nil || downloader == nil || decoder == nil {
		return nil, errors.New("resolver, downloader and decoder are required")
	}
	if strings.TrimSpace(cfg.CacheDir) == "" {
		cfg.CacheDir = filepath.Join(os.TempDir(), "tsmusic")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, err
	}
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = DefaultMetadataTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	volume := DefaultVolume
	if cfg.Volume != nil {
		volume = *cfg.Volume
	}
	if cfg.Validate == nil {
		cfg.Validate = media.ValidateURL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Clock{}
	}
	if cfg.IDGen == nil {
		cfg.IDGen = idgen.Generator{}
	}
	if log == nil {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Player{
		log:        log,
		resolver:   resolver,
		downloader: downloader,
		decoder:    decoder,
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
		volume:     clampVolume(volume),
	}, nil
}

// Subscribe registers an event handler. Handlers may call back into the player.
func (p *Player) Subscribe(fn func(Event)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subs = append(p.subs, fn)
}

func (p *Player) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	p.subMu.Lock()
	subs := append([]func(Event){}, p.subs...)
	p.subMu.Unlock()
	for _, evt := range events {
		for _, fn := range subs {
			fn(evt)
		}
	}
}

// AddToQueue validates url, looks up its metadata and appends it.
func (p *Player) AddToQueue(ctx context.Context, url string, requester string) (Track, error) {
	return p.Enqueue(ctx, Request{URL: url, Requester: requester})
}

// Enqueue appends a track, starting playback when idle.
func (p *Player) Enqueue(ctx context.Context, req Request) (Track, error) {
	url := strings.TrimSpace(req.URL)
	if err := p.config.Validate(url); err != nil {
		return Track{}, &ValidationError{Field: "url", Value: url, Err: err}
	}

	meta := Metadata{Title: req.Title, Duration: req.Duration}
	if strings.TrimSpace(meta.Title) == "" {
		meta = p.lookup(ctx, url)
	}

	track := &Track{
		ID:        p.config.IDGen.NewID(),
		URL:       url,
		Title:     meta.Title,
		Duration:  meta.Duration,
		Requester: req.Requester,
		AddedAt:   p.config.Clock.NowUnix(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return Track{}, ErrClosed
	}
	p.queue = append(p.queue, track)
	events := []Event{{Type: EventTrackAdded, Track: *track}}
	var next *session
	if p.state == StateIdle {
		var more []Event
		more, next = p.advanceLocked()
		events = append(events, more...)
	}
	added := *track
	p.mu.Unlock()

	p.log.Info("track queued", zap.String("title", added.Title), zap.String("requester", added.Requester))
	p.emit(events...)
	p.start(next)
	return added, nil
}

func (p *Player) lookup(ctx context.Context, url string) Metadata {
	ctx, cancel := context.WithTimeout(ctx, p.config.MetadataTimeout)
	defer cancel()

	meta, err := p.resolver.Lookup(ctx, url)
	if err != nil {
		p.log.Warn("metadata lookup failed", zap.String("url", url), zap.Error(&ExternalToolError{Tool: "metadata", Err: err}))
		return Metadata{Title: UnknownTitle}
	}
	if strings.TrimSpace(meta.Title) == "" {
		meta.Title = UnknownTitle
	}
	if meta.Duration < 0 {
		meta.Duration = 0
	}
	return meta
}

// advanceLocked moves the queue head into a new session, or goes idle.
func (p *Player) advanceLocked() ([]Event, *session) {
	if len(p.queue) == 0 || p.closed {
		p.state = StateIdle
		p.session = nil
		return []Event{{Type: EventQueueEmpty}}, nil
	}
	track := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]

	ctx, cancel := context.WithCancel(p.ctx)
	s := &session{track: track, ctx: ctx, cancel: cancel}
	p.session = s
	p.state = StateDownloading
	p.wg.Add(1)
	return []Event{{Type: EventTrackStart, Track: *track}}, s
}

func (p *Player) start(s *session) {
	if s != nil {
		go p.run(s)
	}
}

func (p *Player) run(s *session) {
	defer p.wg.Done()

	asset := filepath.Join(p.config.CacheDir, "track_"+s.track.ID+".opus")
	ctx, cancel := context.WithTimeout(s.ctx, p.config.DownloadTimeout)
	err := p.downloader.Download(ctx, s.track.URL, asset)
	cancel()
	if err != nil {
		removeAsset(p.log, asset)
		p.fail(s, &ExternalToolError{Tool: "download", Err: err})
		return
	}

	p.mu.Lock()
	if p.session != s || s.stopped {
		p.mu.Unlock()
		removeAsset(p.log, asset)
		return
	}
	s.track.AssetPath = asset
	proc, err := p.decoder.Start(asset, p.volume)
	if err != nil {
		p.mu.Unlock()
		removeAsset(p.log, asset)
		p.fail(s, &PlaybackError{Err: err})
		return
	}
	s.proc = proc
	p.state = StatePlaying
	p.wg.Add(1)
	p.mu.Unlock()

	p.log.Info("playback started", zap.String("title", s.track.Title), zap.Int("volume", p.Volume()))
	go p.watch(s, proc, asset)
}

// fail reports a track-level failure and skips ahead.
func (p *Player) fail(s *session, err error) {
	p.mu.Lock()
	if p.session != s || s.stopped {
		p.mu.Unlock()
		return
	}
	s.cancel()
	events := []Event{{Type: EventTrackError, Track: *s.track, Err: err}}
	more, next := p.advanceLocked()
	events = append(events, more...)
	p.mu.Unlock()

	p.log.Warn("track failed", zap.String("title", s.track.Title), zap.Error(err))
	p.emit(events...)
	p.start(next)
}

// watch is the only path that advances the queue after playback started.
func (p *Player) watch(s *session, proc Process, asset string) {
	defer p.wg.Done()

	err := proc.Wait()
	removeAsset(p.log, asset)

	p.mu.Lock()
	ended := *s.track
	var events []Event
	crashed := err != nil && !s.killed
	if crashed {
		events = append(events, Event{Type: EventTrackError, Track: ended, Err: &PlaybackError{Err: err}})
	}
	events = append(events, Event{Type: EventTrackEnd, Track: ended})
	var next *session
	if p.session == s && !s.stopped {
		s.proc = nil
		s.cancel()
		var more []Event
		more, next = p.advanceLocked()
		events = append(events, more...)
	}
	p.mu.Unlock()

	if crashed {
		p.log.Warn("decoder crashed", zap.String("title", ended.Title), zap.Error(err))
	} else if err != nil {
		p.log.Debug("decoder exited", zap.String("title", ended.Title), zap.Error(err))
	}
	p.emit(events...)
	p.start(next)
}

// Skip terminates the active decoder; its exit advances the queue.
func (p *Player) Skip() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil || p.session.proc == nil {
		return ErrNothingPlaying
	}
	p.session.killed = true
	return terminate(p.session.proc, p.state == StatePaused)
}

// Pause suspends the decoder in place.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying || p.session == nil || p.session.proc == nil {
		return ErrNotPlaying
	}
	if err := p.session.proc.Suspend(); err != nil {
		return &PlaybackError{Err: err}
	}
	p.state = StatePaused
	return nil
}

// Resume continues a paused decoder.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused || p.session == nil || p.session.proc == nil {
		return ErrNotPaused
	}
	if err := p.session.proc.Continue(); err != nil {
		return &PlaybackError{Err: err}
	}
	p.state = StatePlaying
	return nil
}

// Stop clears the queue and ends the session without auto-advance.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.queue = nil
	if s := p.session; s != nil {
		s.stopped = true
		s.cancel()
		if s.proc != nil {
			s.killed = true
			if err := terminate(s.proc, p.state == StatePaused); err != nil {
				p.log.Warn("terminate decoder", zap.Error(err))
			}
		}
	}
	p.session = nil
	p.state = StateIdle
}

func terminate(proc Process, paused bool) error {
	if paused {
		_ = proc.Continue()
	}
	return proc.Terminate()
}

// SetVolume clamps v to 0..100 and applies it to the next decoder.
func (p *Player) SetVolume(v int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = clampVolume(v)
	return p.volume
}

// Volume returns the current volume.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ClearQueue empties the queue and returns how many tracks were removed.
func (p *Player) ClearQueue() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.queue)
	p.queue = nil
	return n
}

// Queue returns a copy of the upcoming tracks.
func (p *Player) Queue() []Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Track, 0, len(p.queue))
	for _, t := range p.queue {
		out = append(out, *t)
	}
	return out
}

// Current returns the track of the active session.
func (p *Player) Current() (Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return Track{}, false
	}
	return *p.session.track, true
}

// State returns the session state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close stops playback and waits for background work to finish.
func (p *Player) Close(ctx context.Context) error {
	p.Stop()
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func removeAsset(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn("remove asset", zap.String("path", path), zap.Error(err))
	}
}
