package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		HandshakeTimeout:     time.Second,
		CallTimeout:          time.Second,
		DisconnectGrace:      100 * time.Millisecond,
		MaxReconnectAttempts: 3,
		ReconnectDelay:       10 * time.Millisecond,
	}
}

// workerQueue hands out fake workers (or spawn failures) in order, so
// reconnection sequences can be scripted.
type workerQueue struct {
	mu      sync.Mutex
	spawned []*spawnedWorker
	failAll bool
	fails   int
}

type spawnedWorker struct {
	transport *Transport
	worker    *fakeWorker
}

func (q *workerQueue) spawn() (*Transport, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll {
		q.fails++
		return nil, &ConnectionError{Message: "spawn refused"}
	}
	tr, w := newFakeWorker()
	w.handle(MethodToolsList, func(json.RawMessage) (interface{}, *RPCError) {
		return map[string]interface{}{"tools": []ToolDescriptor{
			{Name: "calculator", Title: "Calculator", Description: "basic arithmetic"},
		}}, nil
	})
	sw := &spawnedWorker{transport: tr, worker: w}
	q.spawned = append(q.spawned, sw)
	return tr, nil
}

func (q *workerQueue) last() *spawnedWorker {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.spawned) == 0 {
		return nil
	}
	return q.spawned[len(q.spawned)-1]
}

func (q *workerQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.spawned)
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *workerQueue) {
	t.Helper()
	q := &workerQueue{}
	m := NewManager(cfg)
	m.spawn = q.spawn
	return m, q
}

func TestConnectPerformsHandshake(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !m.IsReady() {
		t.Fatal("manager not ready after Connect")
	}
	if got := m.Server().Name; got != "fake-worker" {
		t.Errorf("server name = %q, want %q", got, "fake-worker")
	}
}

func TestCallsFailFastWhenDisconnected(t *testing.T) {
	m, _ := newTestManager(t, testConfig())

	_, err := m.CallTool(context.Background(), "calculator", nil)
	if !IsNotConnected(err) {
		t.Fatalf("expected NotConnectedError, got %v", err)
	}
	_, err = m.ListTools(context.Background())
	if !IsNotConnected(err) {
		t.Fatalf("expected NotConnectedError, got %v", err)
	}
}

func TestGracefulExitDoesNotReconnect(t *testing.T) {
	m, q := newTestManager(t, testConfig())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sw := q.last()
	sw.worker.die(sw.transport, 0)

	waitForState(t, m, Disconnected, time.Second)

	// No replacement worker may have been spawned.
	time.Sleep(50 * time.Millisecond)
	if got := q.count(); got != 1 {
		t.Errorf("spawned %d workers, want 1", got)
	}
}

func TestAbnormalExitReconnects(t *testing.T) {
	m, q := newTestManager(t, testConfig())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sw := q.last()
	sw.worker.die(sw.transport, 1)

	// The exit is handled asynchronously, so wait for the replacement
	// worker to be spawned before polling for Ready; otherwise the poll
	// can observe the old connection's Ready state.
	deadline := time.Now().Add(2 * time.Second)
	for q.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	waitForState(t, m, Ready, 2*time.Second)
	if got := q.count(); got != 2 {
		t.Errorf("spawned %d workers, want 2", got)
	}

	// The new connection is fully usable.
	tools, err := m.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools after reconnect: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "calculator" {
		t.Errorf("unexpected catalog after reconnect: %+v", tools)
	}
}

func TestReconnectExhaustionEndsFailed(t *testing.T) {
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	m, q := newTestManager(t, cfg)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Every reconnect attempt from now on refuses to spawn.
	q.mu.Lock()
	q.failAll = true
	q.mu.Unlock()

	sw := q.last()
	sw.worker.die(sw.transport, 1)

	waitForState(t, m, Failed, 2*time.Second)

	q.mu.Lock()
	fails := q.fails
	q.mu.Unlock()
	if fails != cfg.MaxReconnectAttempts {
		t.Errorf("reconnect attempts = %d, want %d", fails, cfg.MaxReconnectAttempts)
	}

	// Failed is terminal for the automatic protocol.
	_, err := m.CallTool(context.Background(), "calculator", nil)
	if !IsNotConnected(err) {
		t.Fatalf("expected NotConnectedError in Failed state, got %v", err)
	}

	// An explicit Connect resets the counter and recovers.
	q.mu.Lock()
	q.failAll = false
	q.mu.Unlock()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect after Failed: %v", err)
	}
	if !m.IsReady() {
		t.Fatal("manager not ready after explicit reconnect")
	}
}

func TestCallDuringReconnectingFailsFast(t *testing.T) {
	cfg := testConfig()
	cfg.ReconnectDelay = 500 * time.Millisecond // keep it in Reconnecting for a while
	m, q := newTestManager(t, cfg)
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	sw := q.last()
	sw.worker.die(sw.transport, 1)

	waitForState(t, m, Reconnecting, time.Second)

	start := time.Now()
	_, err := m.CallTool(context.Background(), "calculator", nil)
	if !IsNotConnected(err) {
		t.Fatalf("expected NotConnectedError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("call during Reconnecting took %s, expected immediate failure", elapsed)
	}
}

func TestListToolsCachedPerConnection(t *testing.T) {
	m, q := newTestManager(t, testConfig())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	first, err := m.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	second, err := m.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}

	if len(first) != len(second) || first[0].Name != second[0].Name {
		t.Errorf("consecutive catalogs differ: %+v vs %+v", first, second)
	}
	if got := q.last().worker.callCount(MethodToolsList); got != 1 {
		t.Errorf("tools/list round trips = %d, want 1 (cached)", got)
	}
}

func TestCallToolUnknownEntity(t *testing.T) {
	m, q := newTestManager(t, testConfig())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	q.last().worker.handle(MethodToolsCall, func(json.RawMessage) (interface{}, *RPCError) {
		return nil, &RPCError{Code: CodeUnknownEntity, Message: "unknown tool"}
	})

	_, err := m.CallTool(context.Background(), "no-such-tool", nil)
	var nf *ToolNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ToolNotFoundError, got %v", err)
	}
	if nf.Name != "no-such-tool" {
		t.Errorf("name = %q, want %q", nf.Name, "no-such-tool")
	}
}

func TestToolLevelErrorIsNotTransportError(t *testing.T) {
	m, q := newTestManager(t, testConfig())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	q.last().worker.handle(MethodToolsCall, func(json.RawMessage) (interface{}, *RPCError) {
		return CallToolResult{
			IsError: true,
			Content: []Content{TextContent("division by zero")},
		}, nil
	})

	res, err := m.CallTool(context.Background(), "calculator", map[string]interface{}{"operation": "division"})
	if err != nil {
		t.Fatalf("tool-level error must not surface as call error: %v", err)
	}
	if !res.IsError {
		t.Error("IsError not set")
	}

	// And the connection stays Ready.
	if !m.IsReady() {
		t.Error("tool-level error changed the connection state")
	}
}
