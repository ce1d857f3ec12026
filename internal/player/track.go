package player

// Track is a queued or playing item.
type Track struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Requester string `json:"requester"`
	AddedAt   int64  `json:"addedAt"`
	AssetPath string `json:"assetPath,omitempty"`
}

// State is the playback session state.
type State string

const (
	StateIdle        State = "idle"
	StateDownloading State = "downloading"
	StatePlaying     State = "playing"
	StatePaused      State = "paused"
)

// EventType tags a player event.
type EventType string

const (
	EventTrackAdded EventType = "trackAdded"
	EventTrackStart EventType = "trackStart"
	EventTrackEnd   EventType = "trackEnd"
	EventTrackError EventType = "trackError"
	EventQueueEmpty EventType = "queueEmpty"
)

// Event is emitted to subscribers after the player lock is released.
type Event struct {
	Type  EventType
	Track Track
	Err   error
}

// Metadata is what a lookup knows about a URL.
type Metadata struct {
	Title    string
	Duration int
}

// Request describes a track to enqueue. A non-empty Title skips the
// metadata lookup.
type Request struct {
	URL       string
	Requester string
	Title     string
	Duration  int
}
