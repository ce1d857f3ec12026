package tsm

// TrackInfo describes a queued or playing track.
type TrackInfo struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Duration  int    `json:"duration"`
	Requester string `json:"requester"`
	AddedAt   int64  `json:"addedAt"`
}

// PlayerState is the retained state of the player and the reply to status.
type PlayerState struct {
	Status      string     `json:"status"`
	Volume      int        `json:"volume"`
	Current     *TrackInfo `json:"current,omitempty"`
	QueueLength int        `json:"queueLength"`
	TS          int64      `json:"ts"`
}

// QueueGetReply is the reply body for queue.get.
type QueueGetReply struct {
	Current *TrackInfo  `json:"current,omitempty"`
	Entries []TrackInfo `json:"entries"`
}

// QueueAddBody is the payload for queue.add.
type QueueAddBody struct {
	URL       string `json:"url"`
	Requester string `json:"requester,omitempty"`
}

// QueueAddReply is the reply body for queue.add.
type QueueAddReply struct {
	Track TrackInfo `json:"track"`
}

// QueueClearReply is the reply body for queue.clear.
type QueueClearReply struct {
	Removed int `json:"removed"`
}

// SetVolumeBody is the payload for playback.setVolume.
type SetVolumeBody struct {
	Volume int `json:"volume"`
}

// SetVolumeReply is the reply body for playback.setVolume.
type SetVolumeReply struct {
	Volume int `json:"volume"`
}
