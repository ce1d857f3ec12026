package control

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/mikey-austin/tsmusic/internal/player"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
	"go.uber.org/zap"
)

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Player is the part of the player the bridge drives.
type Player interface {
	AddToQueue(ctx context.Context, url string, requester string) (player.Track, error)
	Skip() error
	Stop()
	Pause() error
	Resume() error
	SetVolume(v int) int
	ClearQueue() int
	Queue() []player.Track
	Current() (player.Track, bool)
	State() player.State
	Volume() int
	Subscribe(fn func(player.Event))
}

// Config configures the control bridge.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
}

// Module exposes the player over MQTT.
type Module struct {
	log      *zap.Logger
	client   mqttClient
	player   Player
	config   Config
	cmdTopic string
	now      func() time.Time

	wg sync.WaitGroup
}

// NewModule creates a control bridge.
func NewModule(log *zap.Logger, client mqttClient, p Player, cfg Config) (*Module, error) {
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if client == nil || p == nil {
		return nil, errors.New("mqtt client and player required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = tsm.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Music Bot"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:      log,
		client:   client,
		player:   p,
		config:   cfg,
		cmdTopic: tsm.TopicCommands(cfg.TopicBase, cfg.NodeID),
		now:      time.Now,
	}, nil
}

// Run publishes presence and serves commands until ctx is done.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(true); err != nil {
		return err
	}
	if err := m.publishState(); err != nil {
		return err
	}

	m.player.Subscribe(m.handlePlayerEvent)

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(ctx, msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}

	<-ctx.Done()
	_ = m.client.Unsubscribe(m.cmdTopic)
	m.wg.Wait()
	if err := m.publishPresence(false); err != nil {
		m.log.Warn("publish offline presence", zap.Error(err))
	}
	return nil
}

// OfflinePresence is the payload registered as the MQTT will.
func OfflinePresence(cfg Config) []byte {
	payload, _ := json.Marshal(tsm.Presence{NodeID: cfg.NodeID, Kind: tsm.PresenceKindMusic, Name: cfg.Name, Online: false})
	return payload
}

func (m *Module) publishPresence(online bool) error {
	presence := tsm.Presence{
		NodeID: m.config.NodeID,
		Kind:   tsm.PresenceKindMusic,
		Name:   m.config.Name,
		Online: online,
		TS:     m.now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(tsm.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) publishState() error {
	payload, err := json.Marshal(m.snapshot())
	if err != nil {
		return err
	}
	return m.client.Publish(tsm.TopicState(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) snapshot() tsm.PlayerState {
	return Snapshot(m.player, m.now().Unix())
}

// StateSource is the read side of the player.
type StateSource interface {
	State() player.State
	Volume() int
	Queue() []player.Track
	Current() (player.Track, bool)
}

// Snapshot converts the player's current state to its wire form.
func Snapshot(p StateSource, ts int64) tsm.PlayerState {
	state := tsm.PlayerState{
		Status:      string(p.State()),
		Volume:      p.Volume(),
		QueueLength: len(p.Queue()),
		TS:          ts,
	}
	if current, ok := p.Current(); ok {
		info := TrackInfo(current)
		state.Current = &info
	}
	return state
}

func (m *Module) handlePlayerEvent(evt player.Event) {
	out := tsm.Event{Type: string(evt.Type), TS: m.now().Unix()}
	if evt.Type != player.EventQueueEmpty {
		info := TrackInfo(evt.Track)
		out.Track = &info
	}
	if evt.Err != nil {
		out.Error = evt.Err.Error()
	}
	payload, err := json.Marshal(out)
	if err == nil {
		if err := m.client.Publish(tsm.TopicEvents(m.config.TopicBase, m.config.NodeID), 0, false, payload); err != nil {
			m.log.Warn("publish event", zap.Error(err))
		}
	}
	if err := m.publishState(); err != nil {
		m.log.Warn("publish state", zap.Error(err))
	}
}

func (m *Module) handleMessage(ctx context.Context, msg paho.Message) {
	var cmd tsm.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}
	if err := tsm.ValidateCommandEnvelope(cmd); err != nil {
		m.publishReply(cmd.ReplyTo, errorReply(cmd, tsm.CodeInvalid, err.Error()))
		return
	}

	// queue.add blocks on the metadata lookup.
	if cmd.Type == tsm.CmdQueueAdd {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.publishReply(cmd.ReplyTo, m.dispatch(ctx, cmd))
		}()
		return
	}
	m.publishReply(cmd.ReplyTo, m.dispatch(ctx, cmd))
}

func (m *Module) publishReply(replyTo string, reply tsm.ReplyEnvelope) {
	if replyTo != "" {
		payload, err := json.Marshal(reply)
		if err == nil {
			_ = m.client.Publish(replyTo, 1, false, payload)
		}
	}
	if err := m.publishState(); err != nil {
		m.log.Warn("publish state", zap.Error(err))
	}
}

func (m *Module) dispatch(ctx context.Context, cmd tsm.CommandEnvelope) tsm.ReplyEnvelope {
	switch cmd.Type {
	case tsm.CmdStatus:
		return m.ack(cmd, m.snapshot())
	case tsm.CmdQueueGet:
		return m.queueGet(cmd)
	case tsm.CmdQueueAdd:
		return m.queueAdd(ctx, cmd)
	case tsm.CmdQueueClear:
		return m.ack(cmd, tsm.QueueClearReply{Removed: m.player.ClearQueue()})
	case tsm.CmdSkip:
		return m.result(cmd, m.player.Skip())
	case tsm.CmdStop:
		m.player.Stop()
		return m.ack(cmd, nil)
	case tsm.CmdPause:
		return m.result(cmd, m.player.Pause())
	case tsm.CmdResume:
		return m.result(cmd, m.player.Resume())
	case tsm.CmdSetVolume:
		var body tsm.SetVolumeBody
		if err := json.Unmarshal(cmd.Body, &body); err != nil {
			return errorReply(cmd, tsm.CodeInvalid, "invalid body")
		}
		if body.Volume < 0 || body.Volume > 100 {
			return errorReply(cmd, tsm.CodeInvalid, "volume must be between 0 and 100")
		}
		return m.ack(cmd, tsm.SetVolumeReply{Volume: m.player.SetVolume(body.Volume)})
	default:
		return errorReply(cmd, tsm.CodeInvalid, "unknown command "+cmd.Type)
	}
}

func (m *Module) queueGet(cmd tsm.CommandEnvelope) tsm.ReplyEnvelope {
	queue := m.player.Queue()
	reply := tsm.QueueGetReply{Entries: make([]tsm.TrackInfo, 0, len(queue))}
	for _, track := range queue {
		reply.Entries = append(reply.Entries, TrackInfo(track))
	}
	if current, ok := m.player.Current(); ok {
		info := TrackInfo(current)
		reply.Current = &info
	}
	return m.ack(cmd, reply)
}

func (m *Module) queueAdd(ctx context.Context, cmd tsm.CommandEnvelope) tsm.ReplyEnvelope {
	var body tsm.QueueAddBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, tsm.CodeInvalid, "invalid body")
	}
	requester := strings.TrimSpace(body.Requester)
	if requester == "" {
		requester = cmd.From
	}
	track, err := m.player.AddToQueue(ctx, body.URL, requester)
	if err != nil {
		return m.result(cmd, err)
	}
	return m.ack(cmd, tsm.QueueAddReply{Track: TrackInfo(track)})
}

func (m *Module) result(cmd tsm.CommandEnvelope, err error) tsm.ReplyEnvelope {
	if err == nil {
		return m.ack(cmd, nil)
	}
	var vErr *player.ValidationError
	switch {
	case errors.As(err, &vErr):
		return errorReply(cmd, tsm.CodeInvalid, err.Error())
	case errors.Is(err, player.ErrNothingPlaying):
		return errorReply(cmd, tsm.CodeNotFound, err.Error())
	case errors.Is(err, player.ErrNotPlaying), errors.Is(err, player.ErrNotPaused), errors.Is(err, player.ErrClosed):
		return errorReply(cmd, tsm.CodeConflict, err.Error())
	default:
		return errorReply(cmd, tsm.CodeInternal, err.Error())
	}
}

func (m *Module) ack(cmd tsm.CommandEnvelope, body any) tsm.ReplyEnvelope {
	reply := tsm.ReplyEnvelope{ID: cmd.ID, Type: tsm.ReplyTypeAck, OK: true, TS: m.now().Unix()}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errorReply(cmd, tsm.CodeInternal, err.Error())
		}
		reply.Body = payload
	}
	return reply
}

func errorReply(cmd tsm.CommandEnvelope, code string, message string) tsm.ReplyEnvelope {
	return tsm.ReplyEnvelope{
		ID:   cmd.ID,
		Type: tsm.ReplyTypeError,
		OK:   false,
		TS:   time.Now().Unix(),
		Err:  &tsm.ReplyError{Code: code, Message: message},
	}
}

// TrackInfo converts a player track to its wire form.
func TrackInfo(t player.Track) tsm.TrackInfo {
	return tsm.TrackInfo{
		ID:        t.ID,
		URL:       t.URL,
		Title:     t.Title,
		Duration:  t.Duration,
		Requester: t.Requester,
		AddedAt:   t.AddedAt,
	}
}
