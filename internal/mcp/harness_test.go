package mcp

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"
)

// fakeWorker serves scripted JSON-RPC handlers over in-memory pipes so the
// transport and manager can be exercised without a real subprocess.
type fakeWorker struct {
	mu       sync.Mutex
	handlers map[string]func(params json.RawMessage) (interface{}, *RPCError)
	calls    map[string]int

	in  *bufio.Reader
	out *FrameWriter

	stdout io.Closer // worker->client pipe, closed to simulate death
}

func newFakeWorker() (*Transport, *fakeWorker) {
	clientToWorker, workerStdin := io.Pipe()
	workerToClient, workerStdout := io.Pipe()

	w := &fakeWorker{
		handlers: map[string]func(json.RawMessage) (interface{}, *RPCError){},
		calls:    map[string]int{},
		in:       bufio.NewReader(clientToWorker),
		out:      NewFrameWriter(workerStdout),
		stdout:   workerStdout,
	}
	w.handle(MethodInitialize, func(json.RawMessage) (interface{}, *RPCError) {
		return InitializeResult{
			ProtocolVersion: protocolVersion,
			ServerInfo:      ServerInfo{Name: "fake-worker", Version: "0.0.1"},
		}, nil
	})

	go w.serve()

	t := newTransport(workerStdin, workerToClient)
	return t, w
}

func (w *fakeWorker) handle(method string, fn func(json.RawMessage) (interface{}, *RPCError)) {
	w.mu.Lock()
	w.handlers[method] = fn
	w.mu.Unlock()
}

func (w *fakeWorker) callCount(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls[method]
}

func (w *fakeWorker) serve() {
	for {
		payload, err := ReadFrame(w.in)
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(payload, &req); err != nil {
			continue
		}

		w.mu.Lock()
		w.calls[req.Method]++
		fn := w.handlers[req.Method]
		w.mu.Unlock()

		if fn == nil {
			// No handler: swallow the request so callers can test
			// timeouts against a silent worker.
			continue
		}

		var params json.RawMessage
		if req.Params != nil {
			params, _ = json.Marshal(req.Params)
		}
		result, rpcErr := fn(params)

		id := req.ID
		resp := Response{JSONRPC: "2.0", ID: &id}
		if rpcErr != nil {
			resp.Error = rpcErr
		} else {
			resp.Result, _ = json.Marshal(result)
		}
		out, _ := json.Marshal(resp)
		if err := w.out.WriteFrame(out); err != nil {
			return
		}
	}
}

// die simulates an abnormal (or graceful, code 0) worker exit.
func (w *fakeWorker) die(t *Transport, code int) {
	_ = w.stdout.Close()
	t.announceExit(ExitEvent{Code: code})
}

func waitForState(t *testing.T, m *Manager, want State, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.State(), want)
}
