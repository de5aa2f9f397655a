package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ExitEvent reports that the worker process terminated. Code is the process
// exit code; -1 means the process was killed by a signal.
type ExitEvent struct {
	Code int
	Err  error
}

type callOutcome struct {
	resp *Response
	err  error
}

// pendingCall tracks one in-flight request. Entries are removed on a
// matching response, on round-trip timeout, or when the stream dies,
// whichever happens first.
type pendingCall struct {
	id     string
	method string
	sentAt time.Time
	ch     chan callOutcome
}

// Transport frames and delivers request/response messages over the stdio
// pipes of a single worker subprocess. It guarantees that each request
// eventually yields exactly one matching response, a transport-level error,
// or a process-exit event; it never fabricates responses for a dead worker
// and never recovers a poisoned stream by itself.
type Transport struct {
	writer *FrameWriter
	stdin  io.Closer
	proc   *os.Process

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool

	exitCh   chan ExitEvent
	exitOnce sync.Once
	procDone chan struct{}
}

// SpawnConfig describes how to start the worker subprocess.
type SpawnConfig struct {
	Command string
	Args    []string
	Env     []string

	// Stderr receives the worker's standard error stream. Defaults to the
	// bridge's own stderr so worker logs stay visible.
	Stderr io.Writer
}

// Spawn starts the worker subprocess and binds its pipes to a Transport.
func Spawn(cfg SpawnConfig) (*Transport, error) {
	if cfg.Command == "" {
		return nil, &ConnectionError{Message: "worker command is required"}
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	if len(cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), cfg.Env...)
	}
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ConnectionError{Message: "stdin pipe", Cause: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &ConnectionError{Message: "stdout pipe", Cause: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &ConnectionError{Message: "spawn worker", Cause: err}
	}

	t := newTransport(stdin, stdout)
	t.proc = cmd.Process

	go func() {
		werr := cmd.Wait()
		code := 0
		var exitErr *exec.ExitError
		if errors.As(werr, &exitErr) {
			code = exitErr.ExitCode() // -1 when signal-killed
		} else if werr != nil {
			code = -1
		}
		t.announceExit(ExitEvent{Code: code, Err: werr})
	}()

	return t, nil
}

// newTransport builds a transport over raw pipes and starts the read loop.
// Used directly by tests with in-memory pipes.
func newTransport(stdin io.WriteCloser, stdout io.Reader) *Transport {
	t := &Transport{
		writer:   NewFrameWriter(stdin),
		stdin:    stdin,
		pending:  make(map[string]*pendingCall),
		exitCh:   make(chan ExitEvent, 1),
		procDone: make(chan struct{}),
	}
	go t.readLoop(bufio.NewReader(stdout))
	return t
}

func (t *Transport) readLoop(r *bufio.Reader) {
	for {
		payload, err := ReadFrame(r)
		if err != nil {
			// Framing errors poison the stream; pipe EOF means the
			// process is going away. Either way every in-flight call
			// fails now.
			if err != io.EOF && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
				log.Warn().Err(err).Msg("worker stream read failed")
			}
			t.failPending(&ConnectionError{Message: "worker stream closed", Cause: err})
			return
		}

		var resp Response
		if err := json.Unmarshal(payload, &resp); err != nil {
			log.Warn().Err(err).Msg("undecodable worker message dropped")
			continue
		}
		if resp.Method != "" {
			log.Debug().Str("method", resp.Method).Msg("worker notification")
			continue
		}
		if resp.ID == nil {
			continue
		}

		t.mu.Lock()
		pc, ok := t.pending[*resp.ID]
		if ok {
			delete(t.pending, *resp.ID)
		}
		t.mu.Unlock()

		if ok {
			pc.ch <- callOutcome{resp: &resp}
		}
	}
}

func (t *Transport) failPending(err error) {
	t.mu.Lock()
	t.closed = true
	calls := make([]*pendingCall, 0, len(t.pending))
	for _, pc := range t.pending {
		calls = append(calls, pc)
	}
	t.pending = make(map[string]*pendingCall)
	t.mu.Unlock()

	for _, pc := range calls {
		pc.ch <- callOutcome{err: err}
	}
}

// RoundTrip sends one request and blocks until the matching response, the
// context deadline, or transport failure. The result payload is decoded
// into out when out is non-nil.
func (t *Transport) RoundTrip(ctx context.Context, method string, params, out interface{}) error {
	pc := &pendingCall{
		id:     uuid.NewString(),
		method: method,
		sentAt: time.Now(),
		ch:     make(chan callOutcome, 1),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return &ConnectionError{Message: "transport closed"}
	}
	t.pending[pc.id] = pc
	t.mu.Unlock()

	payload, err := json.Marshal(Request{JSONRPC: "2.0", ID: pc.id, Method: method, Params: params})
	if err != nil {
		t.forget(pc.id)
		return &ProtocolError{Message: "marshal request", Cause: err}
	}
	if err := t.writer.WriteFrame(payload); err != nil {
		t.forget(pc.id)
		return &ConnectionError{Message: "write to worker", Cause: err}
	}

	select {
	case <-ctx.Done():
		t.forget(pc.id)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Method: method, After: time.Since(pc.sentAt).Round(time.Millisecond)}
		}
		return ctx.Err()
	case oc := <-pc.ch:
		if oc.err != nil {
			return oc.err
		}
		if oc.resp.Error != nil {
			return oc.resp.Error
		}
		if out != nil && len(oc.resp.Result) > 0 {
			if err := json.Unmarshal(oc.resp.Result, out); err != nil {
				return &ProtocolError{Message: "decode " + method + " result", Cause: err}
			}
		}
		return nil
	}
}

func (t *Transport) forget(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// announceExit publishes the process exit exactly once and fails any
// requests still in flight.
func (t *Transport) announceExit(ev ExitEvent) {
	t.failPending(&ConnectionError{Message: "worker exited", Cause: ev.Err})
	t.exitOnce.Do(func() {
		t.exitCh <- ev
		close(t.procDone)
	})
}

// Exit delivers the worker's exit event. The channel receives exactly one
// value over the lifetime of the transport.
func (t *Transport) Exit() <-chan ExitEvent {
	return t.exitCh
}

// Close shuts the worker down: closing stdin asks it to exit gracefully,
// and after the grace period the process is killed. Close never blocks
// longer than the grace period plus a short kill wait.
func (t *Transport) Close(grace time.Duration) error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()

	err := t.stdin.Close()

	if t.proc == nil {
		return err
	}

	select {
	case <-t.procDone:
		return nil
	case <-time.After(grace):
	}

	log.Warn().Int("pid", t.proc.Pid).Msg("worker did not exit in grace period, killing")
	_ = t.proc.Kill()

	select {
	case <-t.procDone:
	case <-time.After(2 * time.Second):
	}
	return nil
}
