package media

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/watch\?v=[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtu\.be/[\w-]+`),
	regexp.MustCompile(`^(https?://)?(www\.)?youtube\.com/shorts/[\w-]+`),
	regexp.MustCompile(`^(https?://)?(music\.)?youtube\.com/watch\?v=[\w-]+`),
}

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".m4a":  {},
	".aac":  {},
	".ogg":  {},
	".oga":  {},
	".opus": {},
	".flac": {},
	".wav":  {},
}

// ErrUnsupportedURL is returned for URLs no source can play.
var ErrUnsupportedURL = errors.New("unsupported url")

// IsYouTubeURL reports whether raw is a YouTube video, short or music link.
func IsYouTubeURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	for _, re := range youtubePatterns {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

// IsAudioURL reports whether raw is an http(s) link to an audio file.
func IsAudioURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	_, ok := audioExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}

// ValidateURL accepts YouTube links and direct audio links.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("url required")
	}
	if IsYouTubeURL(raw) || IsAudioURL(raw) {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
}

// FormatDuration renders seconds as m:ss, or h:mm:ss from one hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// StripBBCode removes the [URL] wrapping clients add around pasted links.
func StripBBCode(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "[url]") && strings.HasSuffix(lower, "[/url]") {
		return raw[len("[url]") : len(raw)-len("[/url]")]
	}
	if strings.HasPrefix(lower, "[url=") {
		if end := strings.Index(raw, "]"); end > 0 {
			return raw[len("[url="):end]
		}
	}
	return raw
}
