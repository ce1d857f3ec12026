package ports

import (
	"context"

	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

// Broker publishes commands and reads retained state/presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd tsm.CommandEnvelope) (tsm.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]tsm.Presence, error)
	GetState(ctx context.Context, nodeID string) (tsm.PlayerState, error)
	WatchNode(ctx context.Context, nodeID string) (<-chan tsm.PlayerState, <-chan tsm.Event, <-chan error)
}

// Clock returns the current unix time in seconds.
type Clock interface {
	NowUnix() int64
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
