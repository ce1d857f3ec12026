package ytdlp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mikey-austin/tsmusic/internal/player"
)

const (
	DefaultBinary = "yt-dlp"
	printTemplate = "%(title)s|||%(duration)s"
	fieldSep      = "|||"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor.
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client resolves and downloads media through yt-dlp.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a yt-dlp client. An empty binary uses yt-dlp from PATH.
func New(binary string, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	client := &Client{binary: binary, exec: commandExecutor{}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Lookup prints title and duration without downloading.
func (c *Client) Lookup(ctx context.Context, url string) (player.Metadata, error) {
	args := []string{"--no-download", "--no-playlist", "--print", printTemplate, url}
	var first string
	err := c.exec.Run(ctx, c.binary, args, func(line string) {
		if first == "" && strings.Contains(line, fieldSep) {
			first = line
		}
	})
	if err != nil {
		return player.Metadata{}, fmt.Errorf("yt-dlp lookup: %w", err)
	}
	if first == "" {
		return player.Metadata{}, errors.New("yt-dlp lookup: no metadata printed")
	}
	return parseMetadata(first), nil
}

// Download extracts the best audio stream as opus into dest.
func (c *Client) Download(ctx context.Context, url string, dest string) error {
	args := []string{"-x", "--audio-format", "opus", "--audio-quality", "0", "--no-playlist", "-o", dest, url}
	if err := c.exec.Run(ctx, c.binary, args, nil); err != nil {
		return fmt.Errorf("yt-dlp download: %w", err)
	}
	return nil
}

func parseMetadata(line string) player.Metadata {
	title, rawDuration, _ := strings.Cut(strings.TrimSpace(line), fieldSep)
	meta := player.Metadata{Title: strings.TrimSpace(title)}
	if meta.Title == "" || meta.Title == "NA" {
		meta.Title = player.UnknownTitle
	}
	rawDuration = strings.TrimSpace(rawDuration)
	if seconds, err := strconv.ParseFloat(rawDuration, 64); err == nil && seconds > 0 {
		meta.Duration = int(seconds)
	}
	return meta
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	wg.Add(1)
	go func(r io.Reader) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			if onStdout != nil {
				onStdout(scanner.Text())
			}
		}
		scanErr = scanner.Err()
	}(stdout)
	wg.Wait()

	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return fmt.Errorf("scan output: %w", scanErr)
	}
	if err := cmd.Wait(); err != nil {
		if msg := lastLine(stderr.String()); msg != "" {
			return fmt.Errorf("wait command: %w: %s", err, msg)
		}
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
