package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const userAgent = "tsmusic/1.0"

// ErrNoEpisodes is returned when a feed has no playable enclosures.
var ErrNoEpisodes = errors.New("feed has no playable episodes")

// Episode is one playable feed item.
type Episode struct {
	Title     string
	AudioURL  string
	AudioType string
	Duration  int
	Published int64
}

// Fetcher downloads and parses podcast feeds.
type Fetcher struct {
	http *http.Client
}

// New returns a fetcher with the given request timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{http: &http.Client{Timeout: timeout}}
}

// Latest returns up to count episodes, newest first.
func (f *Fetcher) Latest(ctx context.Context, feedURL string, count int) (string, []Episode, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.http.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", nil, fmt.Errorf("feed fetch failed: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	return Parse(string(body), count)
}

// Parse extracts the feed title and up to count newest episodes.
func Parse(body string, count int) (string, []Episode, error) {
	parsed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return "", nil, err
	}

	episodes := make([]Episode, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		audioURL, audioType := pickEnclosure(item)
		if audioURL == "" {
			continue
		}
		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = audioURL
		}
		episodes = append(episodes, Episode{
			Title:     title,
			AudioURL:  audioURL,
			AudioType: audioType,
			Duration:  parseDuration(item),
			Published: toUnix(item.PublishedParsed),
		})
	}
	if len(episodes) == 0 {
		return "", nil, ErrNoEpisodes
	}

	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Published > episodes[j].Published
	})
	if count > 0 && len(episodes) > count {
		episodes = episodes[:count]
	}
	return strings.TrimSpace(parsed.Title), episodes, nil
}

func pickEnclosure(item *gofeed.Item) (string, string) {
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			return enc.URL, enc.Type
		}
	}
	return "", ""
}

// parseDuration reads itunes:duration as seconds or [h:]m:s.
func parseDuration(item *gofeed.Item) int {
	if item.ITunesExt == nil {
		return 0
	}
	raw := strings.TrimSpace(item.ITunesExt.Duration)
	if raw == "" {
		return 0
	}
	total := 0
	for _, part := range strings.Split(raw, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func toUnix(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}
