package serverquery

import (
	"context"
	"errors"
	"strconv"
)

// ErrNoMatch is returned by lookups that yield no records.
var ErrNoMatch = errors.New("serverquery: no match")

// Notification event names accepted by RegisterNotify.
const (
	NotifyServer      = "server"
	NotifyChannel     = "channel"
	NotifyTextServer  = "textserver"
	NotifyTextChannel = "textchannel"
	NotifyTextPrivate = "textprivate"
)

func (c *Client) record(ctx context.Context, command string) (Record, error) {
	data, err := c.Send(ctx, command)
	if err != nil {
		return nil, err
	}
	return ParseRecord(data), nil
}

func (c *Client) list(ctx context.Context, command string) ([]Record, error) {
	data, err := c.Send(ctx, command)
	if err != nil {
		return nil, err
	}
	return ParseList(data), nil
}

// Whoami describes the query client itself.
func (c *Client) Whoami(ctx context.Context) (Record, error) {
	return c.record(ctx, "whoami")
}

// Version reports the server version.
func (c *Client) Version(ctx context.Context) (Record, error) {
	return c.record(ctx, "version")
}

// ChannelList lists all channels.
func (c *Client) ChannelList(ctx context.Context) ([]Record, error) {
	return c.list(ctx, "channellist")
}

// ClientList lists connected clients.
func (c *Client) ClientList(ctx context.Context) ([]Record, error) {
	return c.list(ctx, "clientlist")
}

// ClientFind finds clients whose nickname matches pattern.
func (c *Client) ClientFind(ctx context.Context, pattern string) ([]Record, error) {
	return c.list(ctx, Build("clientfind", Params{"pattern": pattern}))
}

// ClientInfo describes one client.
func (c *Client) ClientInfo(ctx context.Context, clid int) (Record, error) {
	return c.record(ctx, Build("clientinfo", Params{"clid": strconv.Itoa(clid)}))
}

// ClientMove moves a client into a channel.
func (c *Client) ClientMove(ctx context.Context, clid int, cid int) error {
	_, err := c.Send(ctx, Build("clientmove", Params{"clid": strconv.Itoa(clid), "cid": strconv.Itoa(cid)}))
	return err
}

// ChannelFind returns the id of the first channel whose name matches pattern.
func (c *Client) ChannelFind(ctx context.Context, pattern string) (int, error) {
	recs, err := c.list(ctx, Build("channelfind", Params{"pattern": pattern}))
	if err != nil {
		return 0, err
	}
	if len(recs) == 0 || recs[0]["cid"] == "" {
		return 0, ErrNoMatch
	}
	return recs[0].Int("cid"), nil
}

// SendTextMessage sends msg to a client, channel or server.
func (c *Client) SendTextMessage(ctx context.Context, targetMode int, target int, msg string) error {
	_, err := c.Send(ctx, Build("sendtextmessage", Params{
		"targetmode": strconv.Itoa(targetMode),
		"target":     strconv.Itoa(target),
		"msg":        msg,
	}))
	return err
}

// SendChannelMessage writes to the channel the query client is in.
func (c *Client) SendChannelMessage(ctx context.Context, cid int, msg string) error {
	return c.SendTextMessage(ctx, TargetChannel, cid, msg)
}

// SendPrivateMessage writes to a single client.
func (c *Client) SendPrivateMessage(ctx context.Context, clid int, msg string) error {
	return c.SendTextMessage(ctx, TargetClient, clid, msg)
}

// SendServerMessage writes to the selected virtual server.
func (c *Client) SendServerMessage(ctx context.Context, msg string) error {
	return c.SendTextMessage(ctx, TargetServer, c.opts.ServerID, msg)
}

// SetNickname changes the query client's nickname.
func (c *Client) SetNickname(ctx context.Context, nickname string) error {
	_, err := c.Send(ctx, Build("clientupdate", Params{"client_nickname": nickname}))
	return err
}

// RegisterNotify subscribes the connection to a server event class. id is
// only sent for channel events.
func (c *Client) RegisterNotify(ctx context.Context, event string, id int) error {
	params := Params{"event": event}
	if event == NotifyChannel {
		params["id"] = strconv.Itoa(id)
	}
	_, err := c.Send(ctx, Build("servernotifyregister", params))
	return err
}
