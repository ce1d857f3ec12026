package mqtt

import (
	"testing"

	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

func TestNewClientDefaults(t *testing.T) {
	c := newClient(Options{ClientID: "tsm-alice"})
	if c.ReplyTopic() != "tsm/v1/reply/tsm-alice" {
		t.Fatalf("unexpected reply topic %q", c.ReplyTopic())
	}
	if c.timeout == 0 {
		t.Fatalf("expected default timeout")
	}
}

func TestRouteReplyDeliversToWaiter(t *testing.T) {
	c := newClient(Options{ClientID: "tsm"})
	ch := c.register("abc")
	defer c.unregister("abc")

	c.routeReply([]byte(`{"id":"other","type":"ack","ok":true}`))
	c.routeReply([]byte(`not json`))
	c.routeReply([]byte(`{"id":"abc","type":"ack","ok":true,"ts":5}`))

	select {
	case reply := <-ch:
		if reply.ID != "abc" || !reply.OK || reply.TS != 5 {
			t.Fatalf("unexpected reply %+v", reply)
		}
	default:
		t.Fatalf("expected reply to be routed")
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra reply %+v", extra)
	default:
	}
}

func TestRouteReplyAfterUnregisterIsDropped(t *testing.T) {
	c := newClient(Options{ClientID: "tsm"})
	ch := c.register("abc")
	c.unregister("abc")
	c.routeReply([]byte(`{"id":"abc","type":"ack","ok":true}`))
	if len(ch) != 0 {
		t.Fatalf("expected no delivery after unregister")
	}
}

func TestPresenceSetKeepsLatest(t *testing.T) {
	set := newPresenceSet()
	set.add([]byte(`{"nodeId":"bot","kind":"musicbot","name":"Old","online":true}`))
	set.add([]byte(`{"nodeId":"bot","kind":"musicbot","name":"New","online":false}`))
	set.add([]byte(`{"kind":"musicbot"}`))
	set.add([]byte(`garbage`))

	list := set.list()
	if len(list) != 1 {
		t.Fatalf("expected one entry, got %d", len(list))
	}
	want := tsm.Presence{NodeID: "bot", Kind: tsm.PresenceKindMusic, Name: "New", Online: false}
	if list[0] != want {
		t.Fatalf("unexpected presence %+v", list[0])
	}
}
