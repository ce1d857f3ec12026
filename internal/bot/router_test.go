package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mikey-austin/tsmusic/internal/adapters/feed"
	"github.com/mikey-austin/tsmusic/internal/media"
	"github.com/mikey-austin/tsmusic/internal/player"
)

type fakePlayer struct {
	mu       sync.Mutex
	added    []player.Request
	current  *player.Track
	queue    []player.Track
	volume   int
	stopped  bool
	skipErr  error
	pauseErr error
	resumeEr error
	subs     []func(player.Event)
}

func (f *fakePlayer) AddToQueue(ctx context.Context, url string, requester string) (player.Track, error) {
	return f.Enqueue(ctx, player.Request{URL: url, Requester: requester})
}

func (f *fakePlayer) Enqueue(_ context.Context, req player.Request) (player.Track, error) {
	if err := media.ValidateURL(req.URL); err != nil {
		return player.Track{}, &player.ValidationError{Field: "url", Value: req.URL, Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, req)
	title := req.Title
	if title == "" {
		title = "Song"
	}
	return player.Track{URL: req.URL, Title: title, Duration: 125, Requester: req.Requester}, nil
}

func (f *fakePlayer) Skip() error   { return f.skipErr }
func (f *fakePlayer) Pause() error  { return f.pauseErr }
func (f *fakePlayer) Resume() error { return f.resumeEr }
func (f *fakePlayer) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}
func (f *fakePlayer) SetVolume(v int) int { f.volume = v; return v }
func (f *fakePlayer) Volume() int         { return f.volume }
func (f *fakePlayer) ClearQueue() int {
	n := len(f.queue)
	f.queue = nil
	return n
}
func (f *fakePlayer) Queue() []player.Track { return f.queue }
func (f *fakePlayer) Current() (player.Track, bool) {
	if f.current == nil {
		return player.Track{}, false
	}
	return *f.current, true
}
func (f *fakePlayer) Subscribe(fn func(player.Event)) {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	f.mu.Unlock()
}

func (f *fakePlayer) emit(evt player.Event) {
	f.mu.Lock()
	subs := append([]func(player.Event){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(evt)
	}
}

type fakeFeeds struct {
	title    string
	episodes []feed.Episode
	err      error
	count    int
}

func (f *fakeFeeds) Latest(_ context.Context, _ string, count int) (string, []feed.Episode, error) {
	f.count = count
	if f.err != nil {
		return "", nil, f.err
	}
	return f.title, f.episodes, nil
}

func handle(t *testing.T, r *Router, msg string) string {
	t.Helper()
	reply, ok := r.Handle(context.Background(), msg, "alice")
	if !ok {
		t.Fatalf("%q was not handled", msg)
	}
	return reply
}

func TestRouterIgnoresChat(t *testing.T) {
	r := NewRouter(nil, &fakePlayer{}, nil, "")
	for _, msg := range []string{"hello", "", "!", "  "} {
		if _, ok := r.Handle(context.Background(), msg, "alice"); ok {
			t.Fatalf("%q should be ignored", msg)
		}
	}
}

func TestRouterUnknownCommand(t *testing.T) {
	r := NewRouter(nil, &fakePlayer{}, nil, "!")
	if reply := handle(t, r, "!dance"); !strings.Contains(reply, "!help") {
		t.Fatalf("expected help hint, got %q", reply)
	}
}

func TestRouterPlay(t *testing.T) {
	p := &fakePlayer{}
	r := NewRouter(nil, p, nil, "!")

	reply := handle(t, r, "!play [URL]https://www.youtube.com/watch?v=abc123[/URL]")
	if reply != "Queued: Song [2:05]" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(p.added) != 1 || p.added[0].URL != "https://www.youtube.com/watch?v=abc123" || p.added[0].Requester != "alice" {
		t.Fatalf("unexpected enqueue %+v", p.added)
	}

	if reply := handle(t, r, "!PLAY https://example.com/page"); !strings.HasPrefix(reply, "Invalid link") {
		t.Fatalf("expected invalid link, got %q", reply)
	}
	if reply := handle(t, r, "!play"); !strings.HasPrefix(reply, "Usage:") {
		t.Fatalf("expected usage, got %q", reply)
	}
}

func TestRouterTransportReplies(t *testing.T) {
	p := &fakePlayer{skipErr: player.ErrNothingPlaying, pauseErr: player.ErrNotPlaying, resumeEr: player.ErrNotPaused}
	r := NewRouter(nil, p, nil, "!")
	cases := map[string]string{
		"!skip":   "Nothing is playing",
		"!pause":  "Nothing is playing",
		"!resume": "Playback is not paused",
		"!stop":   "Stopped and cleared the queue",
	}
	for msg, want := range cases {
		if got := handle(t, r, msg); got != want {
			t.Fatalf("%s: got %q want %q", msg, got, want)
		}
	}
	if !p.stopped {
		t.Fatalf("expected stop")
	}

	p.skipErr, p.pauseErr, p.resumeEr = nil, nil, nil
	if got := handle(t, r, "!skip"); got != "Skipped" {
		t.Fatalf("unexpected skip reply %q", got)
	}
}

func TestRouterQueueListing(t *testing.T) {
	p := &fakePlayer{current: &player.Track{Title: "Now"}}
	for i := 0; i < 12; i++ {
		p.queue = append(p.queue, player.Track{Title: fmt.Sprintf("T%d", i+1)})
	}
	r := NewRouter(nil, p, nil, "!")
	reply := handle(t, r, "!queue")
	if !strings.Contains(reply, "Now: Now") || !strings.Contains(reply, "10. T10") {
		t.Fatalf("unexpected listing %q", reply)
	}
	if strings.Contains(reply, "T11") || !strings.HasSuffix(reply, "... and 2 more") {
		t.Fatalf("expected truncation, got %q", reply)
	}

	empty := NewRouter(nil, &fakePlayer{}, nil, "!")
	if got := handle(t, empty, "!queue"); got != "The queue is empty" {
		t.Fatalf("unexpected empty reply %q", got)
	}
}

func TestRouterNowPlaying(t *testing.T) {
	p := &fakePlayer{}
	r := NewRouter(nil, p, nil, "!")
	if got := handle(t, r, "!np"); got != "Nothing is playing" {
		t.Fatalf("unexpected reply %q", got)
	}
	p.current = &player.Track{Title: "Song", Requester: "bob"}
	if got := handle(t, r, "!nowplaying"); got != "Now playing: Song (requested by bob)" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestRouterVolume(t *testing.T) {
	p := &fakePlayer{volume: 50}
	r := NewRouter(nil, p, nil, "!")
	if got := handle(t, r, "!volume"); got != "Volume: 50%" {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := handle(t, r, "!volume 30"); got != "Volume: 30%" || p.volume != 30 {
		t.Fatalf("unexpected reply %q", got)
	}
	for _, bad := range []string{"!volume 101", "!volume -1", "!volume loud"} {
		if got := handle(t, r, bad); !strings.HasPrefix(got, "Volume must be") {
			t.Fatalf("%s: unexpected reply %q", bad, got)
		}
	}
	if p.volume != 30 {
		t.Fatalf("volume changed by invalid input")
	}
}

func TestRouterClearAndHelp(t *testing.T) {
	p := &fakePlayer{queue: []player.Track{{Title: "a"}, {Title: "b"}}}
	r := NewRouter(nil, p, &fakeFeeds{}, "!")
	if got := handle(t, r, "!clear"); got != "Cleared 2 track(s)" {
		t.Fatalf("unexpected reply %q", got)
	}
	help := handle(t, r, "!help")
	if strings.Count(help, "!np") != 1 || !strings.Contains(help, "!podcast") {
		t.Fatalf("unexpected help %q", help)
	}
}

func TestRouterPodcast(t *testing.T) {
	p := &fakePlayer{}
	feeds := &fakeFeeds{title: "Show", episodes: []feed.Episode{
		{Title: "Ep 2", AudioURL: "https://cdn.example.com/ep2.mp3", Duration: 60},
		{Title: "Ep 1", AudioURL: "https://cdn.example.com/ep1"},
	}}
	r := NewRouter(nil, p, feeds, "!")

	got := handle(t, r, "!podcast https://example.com/feed.xml 2")
	if got != "Queued 1 episode(s) from Show" {
		t.Fatalf("unexpected reply %q", got)
	}
	if feeds.count != 2 {
		t.Fatalf("expected count 2, got %d", feeds.count)
	}
	if len(p.added) != 1 || p.added[0].Title != "Ep 2" {
		t.Fatalf("expected titled enqueue, got %+v", p.added)
	}

	if got := handle(t, r, "!podcast https://example.com/feed.xml 11"); !strings.HasPrefix(got, "Count must be") {
		t.Fatalf("unexpected reply %q", got)
	}
	feeds.err = errors.New("boom")
	if got := handle(t, r, "!podcast https://example.com/feed.xml"); !strings.HasPrefix(got, "Could not read feed") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestRouterWithoutFeeds(t *testing.T) {
	r := NewRouter(nil, &fakePlayer{}, nil, "!")
	if got := handle(t, r, "!podcast x"); !strings.HasPrefix(got, "Unknown command") {
		t.Fatalf("expected podcast disabled, got %q", got)
	}
}
