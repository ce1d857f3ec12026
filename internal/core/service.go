package core

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/mikey-austin/tsmusic/internal/ports"
	"github.com/mikey-austin/tsmusic/pkg/tsm"
)

// Service orchestrates tsm CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    ports.Clock
	IDGen    ports.IDGen
	Config   Config
}

// ListNodes returns online music bots.
func (s Service) ListNodes(ctx context.Context) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	return NodesResult{Nodes: filterPresence(nodes, tsm.PresenceKindMusic)}, nil
}

// Status returns the bot's player state.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	var state tsm.PlayerState
	if err := s.call(ctx, bot.NodeID, tsm.CmdStatus, struct{}{}, &state); err != nil {
		return StatusResult{}, err
	}
	return StatusResult{Bot: bot, State: state}, nil
}

// Watch streams state snapshots and events for a bot.
func (s Service) Watch(ctx context.Context, selector string) (tsm.Presence, <-chan tsm.PlayerState, <-chan tsm.Event, <-chan error, error) {
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return tsm.Presence{}, nil, nil, nil, err
	}
	states, events, errs := s.Broker.WatchNode(ctx, bot.NodeID)
	return bot, states, events, errs, nil
}

// Queue returns the current track and upcoming queue.
func (s Service) Queue(ctx context.Context, selector string) (QueueResult, error) {
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return QueueResult{}, err
	}
	var body tsm.QueueGetReply
	if err := s.call(ctx, bot.NodeID, tsm.CmdQueueGet, struct{}{}, &body); err != nil {
		return QueueResult{}, err
	}
	return QueueResult{BotID: bot.NodeID, Queue: body}, nil
}

// Add queues a URL on the bot.
func (s Service) Add(ctx context.Context, selector string, url string) (AddResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return AddResult{}, &CLIError{Code: ExitUsage, Msg: "url required"}
	}
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return AddResult{}, err
	}
	var body tsm.QueueAddReply
	if err := s.call(ctx, bot.NodeID, tsm.CmdQueueAdd, tsm.QueueAddBody{URL: url, Requester: s.Config.Identity}, &body); err != nil {
		return AddResult{}, err
	}
	return AddResult{BotID: bot.NodeID, Track: body.Track}, nil
}

// Clear empties the bot's queue.
func (s Service) Clear(ctx context.Context, selector string) (ClearResult, error) {
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return ClearResult{}, err
	}
	var body tsm.QueueClearReply
	if err := s.call(ctx, bot.NodeID, tsm.CmdQueueClear, struct{}{}, &body); err != nil {
		return ClearResult{}, err
	}
	return ClearResult{BotID: bot.NodeID, Removed: body.Removed}, nil
}

// Skip ends the current track.
func (s Service) Skip(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, tsm.CmdSkip)
}

// Stop clears the queue and stops playback.
func (s Service) Stop(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, tsm.CmdStop)
}

// Pause suspends playback.
func (s Service) Pause(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, tsm.CmdPause)
}

// Resume continues playback.
func (s Service) Resume(ctx context.Context, selector string) error {
	return s.simple(ctx, selector, tsm.CmdResume)
}

// SetVolume applies an absolute (0..100) or relative (+n/-n) volume.
func (s Service) SetVolume(ctx context.Context, selector string, arg string) (VolumeResult, error) {
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return VolumeResult{}, err
	}
	vol, err := s.resolveVolume(ctx, bot.NodeID, arg)
	if err != nil {
		return VolumeResult{}, err
	}
	var body tsm.SetVolumeReply
	if err := s.call(ctx, bot.NodeID, tsm.CmdSetVolume, tsm.SetVolumeBody{Volume: vol}, &body); err != nil {
		return VolumeResult{}, err
	}
	return VolumeResult{BotID: bot.NodeID, Volume: body.Volume}, nil
}

func (s Service) resolveVolume(ctx context.Context, nodeID string, arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, &CLIError{Code: ExitUsage, Msg: "volume argument required"}
	}

	if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
		delta, err := strconv.Atoi(arg)
		if err != nil {
			return 0, &CLIError{Code: ExitUsage, Msg: "invalid volume delta"}
		}
		state, err := s.Broker.GetState(ctx, nodeID)
		if err != nil {
			return 0, WrapError(ExitRuntime, "get player state", err)
		}
		return clampVolume(state.Volume + delta), nil
	}

	value, err := strconv.Atoi(arg)
	if err != nil || value < 0 || value > 100 {
		return 0, &CLIError{Code: ExitUsage, Msg: "volume must be between 0 and 100"}
	}
	return value, nil
}

func clampVolume(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func (s Service) simple(ctx context.Context, selector string, cmdType string) error {
	bot, err := s.Resolver.ResolveBot(ctx, selector)
	if err != nil {
		return err
	}
	return s.call(ctx, bot.NodeID, cmdType, struct{}{}, nil)
}

// call publishes a command and decodes the reply body into out when set.
func (s Service) call(ctx context.Context, nodeID string, cmdType string, body any, out any) error {
	cmd, err := tsm.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)
	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply.Body, out); err != nil {
		return WrapError(ExitRuntime, "decode "+cmdType+" reply", err)
	}
	return nil
}

func (s Service) decorateCommand(cmd tsm.CommandEnvelope) tsm.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.Clock.NowUnix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}
