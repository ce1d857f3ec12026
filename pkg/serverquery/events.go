package serverquery

import "strings"

// EventType tags a client event.
type EventType string

const (
	EventReady            EventType = "ready"
	EventTextMessage      EventType = "textmessage"
	EventClientConnect    EventType = "clientconnect"
	EventClientDisconnect EventType = "clientdisconnect"
	EventNotification     EventType = "notification"
	EventError            EventType = "error"
	EventClose            EventType = "close"
)

// Target modes for text messages.
const (
	TargetClient  = 1
	TargetChannel = 2
	TargetServer  = 3
)

// TextMessage is a decoded notifytextmessage.
type TextMessage struct {
	Msg         string
	InvokerName string
	InvokerID   string
	TargetMode  int
}

// Event is delivered to subscribers in arrival order.
type Event struct {
	Type EventType
	// Notify holds the raw notification type, e.g. "notifychanneledited".
	Notify string
	Record Record
	Text   *TextMessage
	Err    error
}

// Handler receives client events.
type Handler func(Event)

const notifyPrefix = "notify"

func decodeNotification(line string) Event {
	kind, body, _ := strings.Cut(line, " ")
	rec := ParseRecord(body)
	evt := Event{Notify: kind, Record: rec}

	switch kind {
	case "notifytextmessage":
		evt.Type = EventTextMessage
		evt.Text = &TextMessage{
			Msg:         rec["msg"],
			InvokerName: rec["invokername"],
			InvokerID:   rec["invokerid"],
			TargetMode:  rec.Int("targetmode"),
		}
	case "notifycliententerview":
		evt.Type = EventClientConnect
	case "notifyclientleftview":
		evt.Type = EventClientDisconnect
	default:
		evt.Type = EventNotification
	}
	return evt
}
