package serverquery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// DefaultSignature identifies a ServerQuery greeting line.
	DefaultSignature = "TeamSpeak"

	defaultDialTimeout    = 10 * time.Second
	defaultCommandTimeout = 10 * time.Second
	maxLineSize           = 4 * 1024 * 1024
)

// Options configures a Client.
type Options struct {
	// Addr is host:port of the query interface.
	Addr     string
	Username string
	Password string
	// ServerID is the virtual server selected after login. Zero means 1.
	ServerID  int
	Signature string
	// DialTimeout also bounds the wait for the greeting.
	DialTimeout time.Duration
	// CommandTimeout applies to sends whose context has no deadline.
	// Negative disables it.
	CommandTimeout time.Duration
	Logger         *zap.Logger
	// OnCommand, if set, is called once per completed command.
	OnCommand func(verb string, err error)
}

type result struct {
	data string
	err  error
}

type pending struct {
	command string
	data    string
	done    chan result
}

// Client is a ServerQuery connection with FIFO command correlation.
type Client struct {
	log  *zap.Logger
	opts Options

	mu       sync.Mutex
	state    State
	conn     net.Conn
	banner   string
	queue    []*pending
	inflight *pending
	// orphans counts abandoned commands whose terminal line is still due.
	orphans int

	greeted  chan struct{}
	readDone chan struct{}
	events   *eventQueue
}

// NewClient creates a disconnected client.
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ServerID == 0 {
		opts.ServerID = 1
	}
	if opts.Signature == "" {
		opts.Signature = DefaultSignature
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	return &Client{
		log:      opts.Logger,
		opts:     opts,
		greeted:  make(chan struct{}),
		readDone: make(chan struct{}),
		events:   newEventQueue(),
	}
}

// Subscribe registers an event handler. Handlers run on one goroutine in
// arrival order and may call Send.
func (c *Client) Subscribe(h Handler) {
	c.events.subscribe(h)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Banner returns the service line seen before the greeting, if any.
func (c *Client) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// Connect dials, waits for the greeting and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("client is %s", state)}
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.opts.Addr)
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return &ConnectionError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.events.run()
	go c.readLoop(conn)

	greetTimer := time.NewTimer(c.opts.DialTimeout)
	defer greetTimer.Stop()
	select {
	case <-c.greeted:
	case <-c.readDone:
		return &ConnectionError{Op: "greeting", Err: io.ErrUnexpectedEOF}
	case <-greetTimer.C:
		c.teardown(nil)
		return &ConnectionError{Op: "greeting", Err: context.DeadlineExceeded}
	case <-ctx.Done():
		c.teardown(nil)
		return &ConnectionError{Op: "greeting", Err: ctx.Err()}
	}

	login := Build("login", Params{
		"client_login_name":     c.opts.Username,
		"client_login_password": c.opts.Password,
	})
	if _, err := c.send(ctx, login, StateAuthenticating); err != nil {
		return c.authFailed("login", err)
	}
	if _, err := c.send(ctx, "use sid="+strconv.Itoa(c.opts.ServerID), StateAuthenticating); err != nil {
		return c.authFailed("use", err)
	}

	c.mu.Lock()
	if c.state != StateAuthenticating {
		c.mu.Unlock()
		return &ConnectionError{Op: "connect", Err: ErrClosed}
	}
	c.state = StateReady
	c.mu.Unlock()

	c.log.Info("serverquery ready", zap.String("addr", c.opts.Addr), zap.Int("sid", c.opts.ServerID))
	c.events.push(Event{Type: EventReady})
	return nil
}

func (c *Client) authFailed(step string, err error) error {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		c.teardown(nil)
		return &AuthError{Step: step, Err: err}
	}
	c.teardown(nil)
	return err
}

// Send queues a raw command and waits for its terminal line.
func (c *Client) Send(ctx context.Context, command string) (string, error) {
	return c.send(ctx, command, StateReady)
}

func (c *Client) send(ctx context.Context, command string, allowed State) (string, error) {
	if strings.ContainsAny(command, "\r\n") {
		return "", fmt.Errorf("serverquery: command %q contains a line break", verbOf(command))
	}
	if _, ok := ctx.Deadline(); !ok && c.opts.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.CommandTimeout)
		defer cancel()
	}

	p := &pending{command: command, done: make(chan result, 1)}

	c.mu.Lock()
	if c.state != allowed {
		state := c.state
		c.mu.Unlock()
		cause := ErrNotReady
		if state == StateClosed {
			cause = ErrClosed
		}
		return "", &ConnectionError{Op: "send", Err: cause}
	}
	c.queue = append(c.queue, p)
	c.dispatchLocked()
	c.mu.Unlock()

	select {
	case res := <-p.done:
		c.observe(command, res.err)
		return res.data, res.err
	case <-ctx.Done():
	}

	c.mu.Lock()
	select {
	case res := <-p.done:
		c.mu.Unlock()
		c.observe(command, res.err)
		return res.data, res.err
	default:
	}
	c.abandonLocked(p)
	c.mu.Unlock()

	err := &TimeoutError{Command: command, Err: ctx.Err()}
	c.log.Warn("serverquery command abandoned", zap.String("command", verbOf(command)), zap.Error(ctx.Err()))
	c.observe(command, err)
	return "", err
}

func (c *Client) observe(command string, err error) {
	if c.opts.OnCommand != nil {
		c.opts.OnCommand(verbOf(command), err)
	}
}

// abandonLocked drops p from the queue, or from the in-flight slot in which
// case its late response lines are discarded when they arrive.
func (c *Client) abandonLocked(p *pending) {
	if c.inflight == p {
		c.inflight = nil
		c.orphans++
		c.dispatchLocked()
		return
	}
	for i, queued := range c.queue {
		if queued == p {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			return
		}
	}
}

func (c *Client) dispatchLocked() {
	for c.inflight == nil && len(c.queue) > 0 && c.conn != nil {
		p := c.queue[0]
		c.queue = c.queue[1:]
		if _, err := io.WriteString(c.conn, p.command+"\n"); err != nil {
			p.done <- result{err: &ConnectionError{Op: "write", Err: err}}
			continue
		}
		c.inflight = p
	}
}

func (c *Client) readLoop(conn net.Conn) {
	defer close(c.readDone)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(splitLines)
	for scanner.Scan() {
		c.handleLine(scanner.Text())
	}
	err := scanner.Err()
	if err != nil {
		c.log.Debug("serverquery read error", zap.Error(err))
	}
	c.teardown(err)
}

// splitLines frames the server stream on "\n\r".
func splitLines(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.Index(data, []byte("\n\r")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (c *Client) handleLine(line string) {
	line = strings.Trim(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}

	c.mu.Lock()
	switch {
	case c.state == StateConnecting:
		if strings.Contains(line, c.opts.Signature) {
			c.state = StateAuthenticating
			close(c.greeted)
		} else {
			c.banner = line
		}
		c.mu.Unlock()
	case line == "error" || strings.HasPrefix(line, "error "):
		c.completeLocked(ParseRecord(strings.TrimPrefix(line, "error")))
		c.mu.Unlock()
	case strings.HasPrefix(line, notifyPrefix):
		c.mu.Unlock()
		c.events.push(decodeNotification(line))
	default:
		switch {
		case c.orphans > 0:
		case c.inflight != nil:
			c.inflight.data = line
		default:
			c.log.Debug("serverquery unexpected line", zap.String("line", line))
		}
		c.mu.Unlock()
	}
}

func (c *Client) completeLocked(rec Record) {
	if c.orphans > 0 {
		c.orphans--
		return
	}
	p := c.inflight
	if p == nil {
		c.log.Debug("serverquery terminal line without command", zap.String("id", rec["id"]))
		return
	}
	c.inflight = nil
	if id := rec.Int("id"); id != 0 {
		p.done <- result{err: &CommandError{ID: id, Message: rec["msg"]}}
	} else {
		p.done <- result{data: p.data}
	}
	c.dispatchLocked()
}

// Close tears down the connection immediately.
func (c *Client) Close() error {
	c.teardown(nil)
	return nil
}

// Quit logs out gracefully, then closes.
func (c *Client) Quit(ctx context.Context) error {
	_, err := c.Send(ctx, "quit")
	c.teardown(nil)
	return err
}

func (c *Client) teardown(cause error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = StateClosed
	conn := c.conn
	rejected := 0
	if c.inflight != nil {
		c.inflight.done <- result{err: &ConnectionError{Op: "close", Err: ErrClosed}}
		c.inflight = nil
		rejected++
	}
	for _, p := range c.queue {
		p.done <- result{err: &ConnectionError{Op: "close", Err: ErrClosed}}
		rejected++
	}
	c.queue = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.log.Info("serverquery closed", zap.Int("rejected", rejected))
	if cause != nil {
		c.events.push(Event{Type: EventError, Err: &ConnectionError{Op: "read", Err: cause}})
	}
	c.events.push(Event{Type: EventClose})
	c.events.close()
}

func verbOf(command string) string {
	verb, _, _ := strings.Cut(command, " ")
	return verb
}

// eventQueue is an unbounded FIFO drained by one goroutine, so producers
// never block on slow handlers. Each event is delivered to the handlers
// subscribed when it was pushed.
type eventQueue struct {
	mu       sync.Mutex
	pending  []queuedEvent
	handlers []Handler
	closed   bool
	started  bool
	wake     chan struct{}
	done     chan struct{}
}

type queuedEvent struct {
	evt      Event
	handlers []Handler
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1), done: make(chan struct{})}
}

func (q *eventQueue) subscribe(h Handler) {
	q.mu.Lock()
	// Copy so slices captured by earlier pushes are never appended into.
	q.handlers = append(append([]Handler(nil), q.handlers...), h)
	q.mu.Unlock()
}

func (q *eventQueue) push(evt Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, queuedEvent{evt: evt, handlers: q.handlers})
	q.mu.Unlock()
	q.signal()
}

func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	started := q.started
	q.mu.Unlock()
	if !started {
		go q.run()
	}
	q.signal()
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) run() {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()
	defer close(q.done)

	for range q.wake {
		for {
			q.mu.Lock()
			batch := q.pending
			q.pending = nil
			closed := q.closed
			q.mu.Unlock()

			for _, qe := range batch {
				for _, h := range qe.handlers {
					h(qe.evt)
				}
			}
			if len(batch) > 0 {
				continue
			}
			if closed {
				return
			}
			break
		}
	}
}

// Done is closed after the final close event has been delivered.
func (c *Client) Done() <-chan struct{} {
	return c.events.done
}
