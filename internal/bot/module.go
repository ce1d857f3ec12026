package bot

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey-austin/tsmusic/internal/player"
	"github.com/mikey-austin/tsmusic/pkg/serverquery"
)

const quitTimeout = 3 * time.Second

// QueryClient is the part of the ServerQuery client the bot uses.
type QueryClient interface {
	Connect(ctx context.Context) error
	Subscribe(h serverquery.Handler)
	Whoami(ctx context.Context) (serverquery.Record, error)
	SetNickname(ctx context.Context, nickname string) error
	ChannelFind(ctx context.Context, pattern string) (int, error)
	ClientMove(ctx context.Context, clid int, cid int) error
	RegisterNotify(ctx context.Context, event string, id int) error
	SendChannelMessage(ctx context.Context, cid int, msg string) error
	SendPrivateMessage(ctx context.Context, clid int, msg string) error
	SendServerMessage(ctx context.Context, msg string) error
	Quit(ctx context.Context) error
	Done() <-chan struct{}
}

// Events is the player's event source.
type Events interface {
	Subscribe(fn func(player.Event))
	Stop()
}

// Config configures the bot module.
type Config struct {
	Nickname       string
	DefaultChannel string
	RelayEvents    bool
}

// Module connects to ServerQuery and relays chat to the router.
type Module struct {
	log    *zap.Logger
	client QueryClient
	router *Router
	player Events
	config Config

	selfID    string
	channelID int
	mu        sync.Mutex
	closing   bool
	wg        sync.WaitGroup
}

// NewModule creates the bot module.
func NewModule(log *zap.Logger, client QueryClient, router *Router, p Events, cfg Config) (*Module, error) {
	if client == nil || router == nil || p == nil {
		return nil, errors.New("query client, router and player required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Module{
		log:    log,
		client: client,
		router: router,
		player: p,
		config: cfg,
	}, nil
}

// Run connects, joins the channel and serves chat until ctx ends or the
// connection drops.
func (m *Module) Run(ctx context.Context) error {
	if err := m.bootstrap(ctx); err != nil {
		return err
	}
	m.log.Info("bot ready", zap.String("client_id", m.selfID), zap.Int("channel", m.channelID))

	select {
	case <-ctx.Done():
		m.shutdown()
		return nil
	case <-m.client.Done():
		m.markClosing()
		m.wg.Wait()
		return errors.New("serverquery connection closed")
	}
}

func (m *Module) bootstrap(ctx context.Context) error {
	if err := m.client.Connect(ctx); err != nil {
		return err
	}

	who, err := m.client.Whoami(ctx)
	if err != nil {
		return err
	}
	m.selfID = who["client_id"]
	m.channelID = who.Int("client_channel_id")

	if m.config.Nickname != "" {
		if err := m.client.SetNickname(ctx, m.config.Nickname); err != nil {
			m.log.Warn("set nickname failed", zap.String("nickname", m.config.Nickname), zap.Error(err))
		}
	}
	if m.config.DefaultChannel != "" {
		m.joinChannel(ctx)
	}

	for _, event := range []string{serverquery.NotifyTextServer, serverquery.NotifyTextChannel, serverquery.NotifyTextPrivate} {
		if err := m.client.RegisterNotify(ctx, event, 0); err != nil {
			return err
		}
	}

	m.client.Subscribe(m.handleQueryEvent)
	m.player.Subscribe(m.handlePlayerEvent)
	return nil
}

func (m *Module) joinChannel(ctx context.Context) {
	clid, err := strconv.Atoi(m.selfID)
	if err != nil {
		m.log.Warn("whoami returned no client id, staying in current channel", zap.String("client_id", m.selfID))
		return
	}
	cid, err := m.client.ChannelFind(ctx, m.config.DefaultChannel)
	if err != nil {
		m.log.Warn("channel not found", zap.String("channel", m.config.DefaultChannel), zap.Error(err))
		return
	}
	if err := m.client.ClientMove(ctx, clid, cid); err != nil {
		m.log.Warn("move to channel failed", zap.Int("cid", cid), zap.Error(err))
		return
	}
	m.channelID = cid
}

func (m *Module) markClosing() {
	m.mu.Lock()
	m.closing = true
	m.mu.Unlock()
}

func (m *Module) isClosing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closing
}

// track registers an in-flight command unless the module is closing.
func (m *Module) track() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return false
	}
	m.wg.Add(1)
	return true
}

func (m *Module) shutdown() {
	m.markClosing()
	m.player.Stop()
	m.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), quitTimeout)
	defer cancel()
	if err := m.client.Quit(ctx); err != nil {
		m.log.Debug("serverquery quit", zap.Error(err))
	}
}

func (m *Module) handleQueryEvent(evt serverquery.Event) {
	if evt.Type != serverquery.EventTextMessage || evt.Text == nil {
		return
	}
	text := *evt.Text
	if text.InvokerID == m.selfID {
		return
	}

	// Commands may block on metadata lookups; keep the dispatcher free.
	if !m.track() {
		return
	}
	go func() {
		defer m.wg.Done()
		reply, ok := m.router.Handle(context.Background(), text.Msg, text.InvokerName)
		if !ok || reply == "" {
			return
		}
		if err := m.reply(text, reply); err != nil {
			m.log.Warn("send reply failed", zap.Int("target_mode", text.TargetMode), zap.Error(err))
		}
	}()
}

func (m *Module) reply(text serverquery.TextMessage, msg string) error {
	ctx := context.Background()
	switch text.TargetMode {
	case serverquery.TargetClient:
		clid, err := strconv.Atoi(text.InvokerID)
		if err != nil {
			return err
		}
		return m.client.SendPrivateMessage(ctx, clid, msg)
	case serverquery.TargetChannel:
		return m.client.SendChannelMessage(ctx, m.replyChannel(), msg)
	default:
		return m.client.SendServerMessage(ctx, msg)
	}
}

func (m *Module) replyChannel() int {
	if m.channelID > 0 {
		return m.channelID
	}
	return 1
}

func (m *Module) handlePlayerEvent(evt player.Event) {
	if !m.config.RelayEvents || m.isClosing() || m.channelID == 0 {
		return
	}
	var msg string
	switch evt.Type {
	case player.EventTrackStart:
		msg = "Now playing: " + describe(evt.Track)
	case player.EventTrackError:
		msg = "Could not play " + evt.Track.Title
	case player.EventQueueEmpty:
		msg = "The queue is empty"
	default:
		return
	}
	if err := m.client.SendChannelMessage(context.Background(), m.channelID, msg); err != nil {
		m.log.Debug("relay failed", zap.String("event", string(evt.Type)), zap.Error(err))
	}
}
