package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikey-austin/tsmusic/internal/adapters/tlsconf"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

// presenceWindow is how long ListPresence collects retained messages.
const presenceWindow = 250 * time.Millisecond

// Options configures the MQTT client.
type Options struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	TLSCA     string
	TLSCert   string
	TLSKey    string
	TopicBase string
	Timeout   time.Duration
}

// Client is an MQTT adapter implementing the Broker port.
type Client struct {
	client     paho.Client
	replyTopic string
	topicBase  string
	timeout    time.Duration

	mu            sync.Mutex
	replyHandlers map[string]chan tsm.ReplyEnvelope
}

// NewClient creates and connects an MQTT client.
func NewClient(opts Options) (*Client, error) {
	c := newClient(opts)

	clientOpts := paho.NewClientOptions().AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(c.timeout)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(c.replyTopic, 1, c.handleReply)
		token.Wait()
	})

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	tlsConfig, err := tlsconf.Load(opts.TLSCA, opts.TLSCert, opts.TLSKey)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		clientOpts.SetTLSConfig(tlsConfig)
	}

	c.client = paho.NewClient(clientOpts)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	if token := c.client.Subscribe(c.replyTopic, 1, c.handleReply); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}

	return c, nil
}

func newClient(opts Options) *Client {
	if opts.TopicBase == "" {
		opts.TopicBase = tsm.BaseTopic
	}
	if opts.Timeout == 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Client{
		replyTopic:    tsm.TopicReply(opts.TopicBase, opts.ClientID),
		topicBase:     opts.TopicBase,
		timeout:       opts.Timeout,
		replyHandlers: map[string]chan tsm.ReplyEnvelope{},
	}
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect(250)
	}
}

// ReplyTopic returns the topic used for replies.
func (c *Client) ReplyTopic() string {
	return c.replyTopic
}

// PublishCommand publishes a command and waits for a reply.
func (c *Client) PublishCommand(ctx context.Context, nodeID string, cmd tsm.CommandEnvelope) (tsm.ReplyEnvelope, error) {
	req, err := json.Marshal(cmd)
	if err != nil {
		return tsm.ReplyEnvelope{}, fmt.Errorf("marshal command: %w", err)
	}

	replyCh := c.register(cmd.ID)
	defer c.unregister(cmd.ID)

	topic := tsm.TopicCommands(c.topicBase, nodeID)
	if token := c.client.Publish(topic, 1, false, req); token.Wait() && token.Error() != nil {
		return tsm.ReplyEnvelope{}, token.Error()
	}

	// queue.add waits on a metadata lookup before replying.
	timeout := c.timeout
	if cmd.Type == tsm.CmdQueueAdd && timeout < 45*time.Second {
		timeout = 45 * time.Second
	}

	select {
	case <-ctx.Done():
		return tsm.ReplyEnvelope{}, ctx.Err()
	case reply := <-replyCh:
		return reply, nil
	case <-time.After(timeout):
		return tsm.ReplyEnvelope{}, errors.New("timeout waiting for reply")
	}
}

// ListPresence collects retained presence messages.
func (c *Client) ListPresence(ctx context.Context) ([]tsm.Presence, error) {
	set := newPresenceSet()
	handler := func(_ paho.Client, msg paho.Message) {
		set.add(msg.Payload())
	}

	topic := fmt.Sprintf("%s/node/+/presence", c.topicBase)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	wait := time.NewTimer(presenceWindow)
	select {
	case <-ctx.Done():
		wait.Stop()
	case <-wait.C:
	}
	return set.list(), nil
}

// GetState returns the retained player state.
func (c *Client) GetState(ctx context.Context, nodeID string) (tsm.PlayerState, error) {
	stateCh := make(chan tsm.PlayerState, 1)
	handler := func(_ paho.Client, msg paho.Message) {
		var state tsm.PlayerState
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	topic := tsm.TopicState(c.topicBase, nodeID)
	if token := c.client.Subscribe(topic, 1, handler); token.Wait() && token.Error() != nil {
		return tsm.PlayerState{}, token.Error()
	}
	defer func() {
		token := c.client.Unsubscribe(topic)
		token.Wait()
	}()

	select {
	case <-ctx.Done():
		return tsm.PlayerState{}, ctx.Err()
	case state := <-stateCh:
		return state, nil
	case <-time.After(c.timeout):
		return tsm.PlayerState{}, errors.New("timeout waiting for state")
	}
}

// WatchNode streams state and events for a bot.
func (c *Client) WatchNode(ctx context.Context, nodeID string) (<-chan tsm.PlayerState, <-chan tsm.Event, <-chan error) {
	stateCh := make(chan tsm.PlayerState, 8)
	eventCh := make(chan tsm.Event, 8)
	errCh := make(chan error, 1)

	stateHandler := func(_ paho.Client, msg paho.Message) {
		var state tsm.PlayerState
		if err := json.Unmarshal(msg.Payload(), &state); err != nil {
			return
		}
		select {
		case stateCh <- state:
		default:
		}
	}

	eventHandler := func(_ paho.Client, msg paho.Message) {
		var evt tsm.Event
		if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
			return
		}
		select {
		case eventCh <- evt:
		default:
		}
	}

	stateTopic := tsm.TopicState(c.topicBase, nodeID)
	eventTopic := tsm.TopicEvents(c.topicBase, nodeID)

	if token := c.client.Subscribe(stateTopic, 1, stateHandler); token.Wait() && token.Error() != nil {
		errCh <- token.Error()
		return stateCh, eventCh, errCh
	}
	if token := c.client.Subscribe(eventTopic, 1, eventHandler); token.Wait() && token.Error() != nil {
		errCh <- token.Error()
		return stateCh, eventCh, errCh
	}

	go func() {
		<-ctx.Done()
		c.client.Unsubscribe(stateTopic, eventTopic)
		close(stateCh)
		close(eventCh)
		close(errCh)
	}()

	return stateCh, eventCh, errCh
}

func (c *Client) register(id string) chan tsm.ReplyEnvelope {
	ch := make(chan tsm.ReplyEnvelope, 1)
	c.mu.Lock()
	c.replyHandlers[id] = ch
	c.mu.Unlock()
	return ch
}

func (c *Client) unregister(id string) {
	c.mu.Lock()
	delete(c.replyHandlers, id)
	c.mu.Unlock()
}

func (c *Client) handleReply(_ paho.Client, msg paho.Message) {
	c.routeReply(msg.Payload())
}

func (c *Client) routeReply(payload []byte) {
	var reply tsm.ReplyEnvelope
	if err := json.Unmarshal(payload, &reply); err != nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.replyHandlers[reply.ID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case ch <- reply:
	default:
	}
}

// presenceSet keeps the latest presence per node.
type presenceSet struct {
	mu      sync.Mutex
	entries map[string]tsm.Presence
}

func newPresenceSet() *presenceSet {
	return &presenceSet{entries: map[string]tsm.Presence{}}
}

func (s *presenceSet) add(payload []byte) {
	var presence tsm.Presence
	if err := json.Unmarshal(payload, &presence); err != nil || presence.NodeID == "" {
		return
	}
	s.mu.Lock()
	s.entries[presence.NodeID] = presence
	s.mu.Unlock()
}

func (s *presenceSet) list() []tsm.Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tsm.Presence, 0, len(s.entries))
	for _, presence := range s.entries {
		out = append(out, presence)
	}
	return out
}
