package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey-austin/tsmusic/internal/adapters/feed"
	"github.com/mikey-austin/tsmusic/internal/media"
	"github.com/mikey-austin/tsmusic/internal/player"
)

const (
	// DefaultPrefix starts every chat command.
	DefaultPrefix = "!"

	queuePreview    = 10
	maxPodcastItems = 10
)

// Player is the part of the player the router drives.
type Player interface {
	AddToQueue(ctx context.Context, url string, requester string) (player.Track, error)
	Enqueue(ctx context.Context, req player.Request) (player.Track, error)
	Skip() error
	Stop()
	Pause() error
	Resume() error
	SetVolume(v int) int
	Volume() int
	ClearQueue() int
	Queue() []player.Track
	Current() (player.Track, bool)
}

// Feeds fetches podcast episodes.
type Feeds interface {
	Latest(ctx context.Context, feedURL string, count int) (string, []feed.Episode, error)
}

type command struct {
	usage       string
	description string
	run         func(ctx context.Context, args []string, invoker string) string
}

// Router parses prefixed chat messages and runs them against the player.
type Router struct {
	log      *zap.Logger
	player   Player
	feeds    Feeds
	prefix   string
	commands map[string]*command
	order    []*command
}

// NewRouter builds a router. feeds may be nil to disable podcasts.
func NewRouter(log *zap.Logger, p Player, feeds Feeds, prefix string) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultPrefix
	}
	r := &Router{
		log:      log,
		player:   p,
		feeds:    feeds,
		prefix:   prefix,
		commands: map[string]*command{},
	}
	r.register()
	return r
}

func (r *Router) add(cmd *command, names ...string) {
	for _, name := range names {
		r.commands[name] = cmd
	}
	r.order = append(r.order, cmd)
}

func (r *Router) register() {
	r.add(&command{usage: "play <url>", description: "queue a YouTube or audio link", run: r.play}, "play")
	r.add(&command{usage: "skip", description: "skip the current track", run: r.skip}, "skip")
	r.add(&command{usage: "stop", description: "stop playback and clear the queue", run: r.stop}, "stop")
	r.add(&command{usage: "pause", description: "pause playback", run: r.pause}, "pause")
	r.add(&command{usage: "resume", description: "resume playback", run: r.resume}, "resume")
	r.add(&command{usage: "queue", description: "show the queue", run: r.queue}, "queue")
	r.add(&command{usage: "np", description: "show the current track", run: r.nowPlaying}, "np", "nowplaying")
	r.add(&command{usage: "volume [0-100]", description: "show or set the volume", run: r.volume}, "volume")
	r.add(&command{usage: "clear", description: "clear the queue", run: r.clear}, "clear")
	if r.feeds != nil {
		r.add(&command{usage: "podcast <feed-url> [count]", description: "queue the newest podcast episodes", run: r.podcast}, "podcast")
	}
	r.add(&command{usage: "help", description: "list commands", run: r.help}, "help")
}

// Handle runs msg if it is a command. ok is false for ordinary chat.
func (r *Router) Handle(ctx context.Context, msg string, invoker string) (reply string, ok bool) {
	msg = strings.TrimSpace(msg)
	if !strings.HasPrefix(msg, r.prefix) {
		return "", false
	}
	fields := strings.Fields(strings.TrimPrefix(msg, r.prefix))
	if len(fields) == 0 {
		return "", false
	}
	name := strings.ToLower(fields[0])
	cmd, found := r.commands[name]
	if !found {
		return fmt.Sprintf("Unknown command %q. Try %shelp", name, r.prefix), true
	}
	r.log.Info("chat command", zap.String("command", name), zap.String("invoker", invoker))
	return cmd.run(ctx, fields[1:], invoker), true
}

func (r *Router) play(ctx context.Context, args []string, invoker string) string {
	if len(args) == 0 {
		return "Usage: " + r.prefix + "play <url>"
	}
	url := media.StripBBCode(args[0])
	track, err := r.player.AddToQueue(ctx, url, invoker)
	if err != nil {
		var invalid *player.ValidationError
		if errors.As(err, &invalid) {
			return "Invalid link: " + url
		}
		return "Error: " + err.Error()
	}
	return "Queued: " + describe(track)
}

func (r *Router) skip(context.Context, []string, string) string {
	if err := r.player.Skip(); err != nil {
		return "Nothing is playing"
	}
	return "Skipped"
}

func (r *Router) stop(context.Context, []string, string) string {
	r.player.Stop()
	return "Stopped and cleared the queue"
}

func (r *Router) pause(context.Context, []string, string) string {
	if err := r.player.Pause(); err != nil {
		return "Nothing is playing"
	}
	return "Paused"
}

func (r *Router) resume(context.Context, []string, string) string {
	if err := r.player.Resume(); err != nil {
		return "Playback is not paused"
	}
	return "Resumed"
}

func (r *Router) queue(context.Context, []string, string) string {
	current, playing := r.player.Current()
	upcoming := r.player.Queue()
	if !playing && len(upcoming) == 0 {
		return "The queue is empty"
	}

	var b strings.Builder
	b.WriteString("Queue:\n")
	if playing {
		fmt.Fprintf(&b, "Now: %s\n", describe(current))
	}
	for i, track := range upcoming {
		if i == queuePreview {
			fmt.Fprintf(&b, "... and %d more", len(upcoming)-queuePreview)
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, describe(track))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Router) nowPlaying(context.Context, []string, string) string {
	current, ok := r.player.Current()
	if !ok {
		return "Nothing is playing"
	}
	return fmt.Sprintf("Now playing: %s (requested by %s)", describe(current), current.Requester)
}

func (r *Router) volume(_ context.Context, args []string, _ string) string {
	if len(args) == 0 {
		return fmt.Sprintf("Volume: %d%%", r.player.Volume())
	}
	v, err := strconv.Atoi(args[0])
	if err != nil || v < 0 || v > 100 {
		return "Volume must be a number from 0 to 100"
	}
	return fmt.Sprintf("Volume: %d%%", r.player.SetVolume(v))
}

func (r *Router) clear(context.Context, []string, string) string {
	n := r.player.ClearQueue()
	return fmt.Sprintf("Cleared %d track(s)", n)
}

func (r *Router) podcast(ctx context.Context, args []string, invoker string) string {
	if len(args) == 0 {
		return "Usage: " + r.prefix + "podcast <feed-url> [count]"
	}
	count := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > maxPodcastItems {
			return fmt.Sprintf("Count must be a number from 1 to %d", maxPodcastItems)
		}
		count = n
	}

	feedURL := media.StripBBCode(args[0])
	title, episodes, err := r.feeds.Latest(ctx, feedURL, count)
	if err != nil {
		r.log.Warn("podcast fetch failed", zap.String("url", feedURL), zap.Error(err))
		return "Could not read feed: " + err.Error()
	}

	queued := 0
	for _, ep := range episodes {
		_, err := r.player.Enqueue(ctx, player.Request{
			URL:       ep.AudioURL,
			Requester: invoker,
			Title:     ep.Title,
			Duration:  ep.Duration,
		})
		if err != nil {
			r.log.Warn("podcast episode rejected", zap.String("url", ep.AudioURL), zap.Error(err))
			continue
		}
		queued++
	}
	if queued == 0 {
		return "No playable episodes in " + feedURL
	}
	if title == "" {
		title = feedURL
	}
	return fmt.Sprintf("Queued %d episode(s) from %s", queued, title)
}

func (r *Router) help(context.Context, []string, string) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, cmd := range r.order {
		fmt.Fprintf(&b, "%s%s - %s\n", r.prefix, cmd.usage, cmd.description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func describe(track player.Track) string {
	if track.Duration > 0 {
		return fmt.Sprintf("%s [%s]", track.Title, media.FormatDuration(track.Duration))
	}
	return track.Title
}
