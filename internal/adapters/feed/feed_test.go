package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>Test Cast</title>
  <item>
    <title>Episode 1</title>
    <pubDate>Mon, 01 Jan 2024 10:00:00 GMT</pubDate>
    <enclosure url="https://cdn.example.com/1.mp3" type="audio/mpeg" length="1"/>
    <itunes:duration>1:02:03</itunes:duration>
  </item>
  <item>
    <title>Episode 2</title>
    <pubDate>Mon, 08 Jan 2024 10:00:00 GMT</pubDate>
    <enclosure url="https://cdn.example.com/2.mp3" type="audio/mpeg" length="1"/>
    <itunes:duration>1800</itunes:duration>
  </item>
  <item>
    <title>Show notes only</title>
    <pubDate>Mon, 15 Jan 2024 10:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

func TestParseNewestFirst(t *testing.T) {
	title, episodes, err := Parse(sampleFeed, 10)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if title != "Test Cast" {
		t.Fatalf("unexpected title %q", title)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if episodes[0].Title != "Episode 2" || episodes[0].Duration != 1800 {
		t.Fatalf("unexpected newest %+v", episodes[0])
	}
	if episodes[1].Duration != 3723 {
		t.Fatalf("unexpected duration %d", episodes[1].Duration)
	}
}

func TestParseLimitsCount(t *testing.T) {
	_, episodes, err := Parse(sampleFeed, 1)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(episodes) != 1 || episodes[0].AudioURL != "https://cdn.example.com/2.mp3" {
		t.Fatalf("unexpected episodes %+v", episodes)
	}
}

func TestParseNoEnclosures(t *testing.T) {
	body := `<rss version="2.0"><channel><title>x</title><item><title>a</title></item></channel></rss>`
	if _, _, err := Parse(body, 1); !errors.Is(err, ErrNoEpisodes) {
		t.Fatalf("expected ErrNoEpisodes, got %v", err)
	}
}

func TestLatestFetchesOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != userAgent {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	_, episodes, err := New(time.Second).Latest(context.Background(), srv.URL, 1)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("expected one episode")
	}
}

func TestLatestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, _, err := New(time.Second).Latest(context.Background(), srv.URL, 1); err == nil {
		t.Fatalf("expected error")
	}
}
