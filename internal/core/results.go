package core

import "github.com/mikey-austin/tsmusic/pkg/tsm"

// NodesResult holds a list of presence records.
type NodesResult struct {
	Nodes []tsm.Presence
}

// StatusResult holds bot presence and player state.
type StatusResult struct {
	Bot   tsm.Presence
	State tsm.PlayerState
}

// QueueResult holds a queue listing.
type QueueResult struct {
	BotID string
	Queue tsm.QueueGetReply
}

// AddResult reports a queued track.
type AddResult struct {
	BotID string
	Track tsm.TrackInfo
}

// VolumeResult reports the applied volume.
type VolumeResult struct {
	BotID  string
	Volume int
}

// ClearResult reports how many tracks were removed.
type ClearResult struct {
	BotID   string
	Removed int
}

// EventResult is one streamed player event.
type EventResult struct {
	BotID string
	Event tsm.Event
}
