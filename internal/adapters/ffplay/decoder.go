package ffplay

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mikey-austin/tsmusic/internal/player"
	"golang.org/x/sys/unix"
)

const DefaultBinary = "ffplay"

// Decoder spawns one ffplay process per track.
type Decoder struct {
	binary string
}

// New returns a decoder running binary, or ffplay from PATH when empty.
func New(binary string) *Decoder {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	return &Decoder{binary: binary}
}

// Args returns the ffplay argument list for path at volume.
func Args(path string, volume int) []string {
	return []string{"-nodisp", "-autoexit", "-loglevel", "error", "-volume", strconv.Itoa(volume), path}
}

// Start launches the decoder.
func (d *Decoder) Start(path string, volume int) (player.Process, error) {
	cmd := exec.Command(d.binary, Args(path, volume)...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", d.binary, err)
	}
	return newProcess(cmd), nil
}

// Process is a running decoder.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	once sync.Once
	done chan struct{}
	err  error
}

func newProcess(cmd *exec.Cmd) *Process {
	p := &Process{cmd: cmd, pid: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p
}

// Wait blocks until the process exits. A signal-terminated process is not
// an error.
func (p *Process) Wait() error {
	<-p.done
	var exitErr *exec.ExitError
	if errors.As(p.err, &exitErr) && !exitErr.Exited() {
		return nil
	}
	return p.err
}

// Terminate sends SIGTERM.
func (p *Process) Terminate() error {
	return p.signal(unix.SIGTERM)
}

// Suspend sends SIGSTOP.
func (p *Process) Suspend() error {
	return p.signal(unix.SIGSTOP)
}

// Continue sends SIGCONT.
func (p *Process) Continue() error {
	return p.signal(unix.SIGCONT)
}

func (p *Process) signal(sig unix.Signal) error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := unix.Kill(p.pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("signal %s: %w", unix.SignalName(sig), err)
	}
	return nil
}
