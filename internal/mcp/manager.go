package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// State is the connection state of the bridge. Exactly one instance exists
// per Manager and all transitions happen under its lock.
type State int

const (
	Disconnected State = iota
	Connecting
	Ready
	Reconnecting
	Failed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	clientName    = "toolbridge"
	clientVersion = "1.0.0"
)

// Config controls worker spawning, timeouts and the reconnection bounds.
type Config struct {
	Worker SpawnConfig

	// HandshakeTimeout bounds the initialize round trip during Connect.
	HandshakeTimeout time.Duration
	// CallTimeout is applied to round trips whose context carries no
	// deadline of its own.
	CallTimeout time.Duration
	// DisconnectGrace is how long a worker gets to exit after stdin closes
	// before it is killed.
	DisconnectGrace time.Duration

	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

func (c *Config) setDefaults() {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.DisconnectGrace == 0 {
		c.DisconnectGrace = 3 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 3
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 500 * time.Millisecond
	}
}

// Manager owns the worker subprocess lifecycle: it spawns the process,
// performs the capability handshake, exposes the catalog and invocation
// surface, and reconnects with a bounded number of attempts when the worker
// exits abnormally.
type Manager struct {
	cfg   Config
	spawn func() (*Transport, error)

	mu         sync.Mutex
	state      State
	transport  *Transport
	tools      []ToolDescriptor
	serverInfo ServerInfo
	attempts   int

	sf singleflight.Group
}

// NewManager builds a manager that spawns workers per cfg.Worker. Nothing
// is started until Connect.
func NewManager(cfg Config) *Manager {
	cfg.setDefaults()
	m := &Manager{cfg: cfg, state: Disconnected}
	m.spawn = func() (*Transport, error) { return Spawn(m.cfg.Worker) }
	return m
}

// Connect spawns the worker, performs the handshake and moves the state to
// Ready. Calling Connect from Failed resets the reconnect counter.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case Ready:
		m.mu.Unlock()
		return nil
	case Connecting, Reconnecting:
		m.mu.Unlock()
		return &ConnectionError{Message: "connection attempt already in progress"}
	}
	m.state = Connecting
	m.attempts = 0
	m.mu.Unlock()

	t, info, err := m.dial(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = Disconnected
		return err
	}
	m.install(t, info)
	return nil
}

// dial spawns a worker and runs the initialize handshake with a bounded
// timeout. The process is stopped again if the handshake fails.
func (m *Manager) dial(ctx context.Context) (*Transport, ServerInfo, error) {
	t, err := m.spawn()
	if err != nil {
		return nil, ServerInfo{}, err
	}

	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	params := map[string]interface{}{
		"protocolVersion": protocolVersion,
		"clientInfo":      map[string]string{"name": clientName, "version": clientVersion},
		"capabilities":    map[string]interface{}{},
	}
	var res InitializeResult
	if err := t.RoundTrip(hctx, MethodInitialize, params, &res); err != nil {
		_ = t.Close(m.cfg.DisconnectGrace)
		return nil, ServerInfo{}, &ConnectionError{Message: "handshake failed", Cause: err}
	}

	log.Info().
		Str("worker", res.ServerInfo.Name).
		Str("worker_version", res.ServerInfo.Version).
		Str("protocol", res.ProtocolVersion).
		Msg("worker handshake complete")
	return t, res.ServerInfo, nil
}

// install adopts a fresh transport. Caller holds m.mu.
func (m *Manager) install(t *Transport, info ServerInfo) {
	m.transport = t
	m.serverInfo = info
	m.tools = nil // catalog is cached per connection epoch
	m.state = Ready
	go m.monitor(t)
}

// monitor waits for the worker to exit and decides whether to reconnect.
func (m *Manager) monitor(t *Transport) {
	ev := <-t.Exit()

	m.mu.Lock()
	if m.transport != t {
		// Deliberate disconnect or replacement already detached this
		// transport; the exit is expected.
		m.mu.Unlock()
		return
	}
	m.transport = nil
	m.tools = nil

	if ev.Code == 0 {
		// Intentional shutdown never triggers reconnection and never
		// counts against the attempt budget.
		m.state = Disconnected
		m.mu.Unlock()
		log.Info().Msg("worker exited gracefully")
		return
	}

	m.state = Reconnecting
	m.mu.Unlock()

	log.Warn().Int("exit_code", ev.Code).Msg("worker exited abnormally, reconnecting")
	go m.reconnectLoop()
}

func (m *Manager) reconnectLoop() {
	for {
		m.mu.Lock()
		if m.state != Reconnecting {
			// An external Disconnect or Connect took over.
			m.mu.Unlock()
			return
		}
		if m.attempts >= m.cfg.MaxReconnectAttempts {
			m.state = Failed
			m.mu.Unlock()
			log.Error().
				Int("attempts", m.cfg.MaxReconnectAttempts).
				Msg("reconnect attempts exhausted, connection failed")
			return
		}
		m.attempts++
		attempt := m.attempts
		m.mu.Unlock()

		// Linearly increasing backoff between attempts.
		time.Sleep(m.cfg.ReconnectDelay * time.Duration(attempt))

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
		t, info, err := m.dial(ctx)
		cancel()
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
			continue
		}

		m.mu.Lock()
		if m.state != Reconnecting {
			m.mu.Unlock()
			_ = t.Close(m.cfg.DisconnectGrace)
			return
		}
		m.attempts = 0
		m.install(t, info)
		m.mu.Unlock()

		log.Info().Int("attempt", attempt).Msg("worker reconnected")
		return
	}
}

// Disconnect stops the worker: stdin close first, kill after the grace
// period. The state is always Disconnected afterwards, regardless of how
// responsive the process was.
func (m *Manager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	t := m.transport
	m.transport = nil
	m.tools = nil
	m.state = Disconnected
	m.mu.Unlock()

	if t == nil {
		return nil
	}
	return t.Close(m.cfg.DisconnectGrace)
}

// IsReady reports whether calls can be issued right now.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Ready
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Server returns the worker identity captured during the handshake.
func (m *Manager) Server() ServerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverInfo
}

// ready returns the live transport or a fail-fast NotConnectedError.
func (m *Manager) ready() (*Transport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Ready || m.transport == nil {
		return nil, &NotConnectedError{State: m.state}
	}
	return m.transport, nil
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.cfg.CallTimeout)
}

// ListTools returns the worker's tool catalog. The most recent catalog is
// cached for the life of the connection; concurrent cold fetches collapse
// into a single round trip.
func (m *Manager) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	t, err := m.ready()
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.tools != nil {
		cached := append([]ToolDescriptor(nil), m.tools...)
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	v, err, _ := m.sf.Do("tools/list", func() (interface{}, error) {
		cctx, cancel := m.callContext(ctx)
		defer cancel()

		var res struct {
			Tools []ToolDescriptor `json:"tools"`
		}
		if err := t.RoundTrip(cctx, MethodToolsList, struct{}{}, &res); err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.transport == t {
			m.tools = res.Tools
		}
		m.mu.Unlock()
		return res.Tools, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]ToolDescriptor(nil), v.([]ToolDescriptor)...), nil
}

// ListResources returns the worker's resource catalog. Resources are
// addressed by URI at read time and are not cached beyond this listing.
func (m *Manager) ListResources(ctx context.Context) ([]ResourceDescriptor, error) {
	t, err := m.ready()
	if err != nil {
		return nil, err
	}
	cctx, cancel := m.callContext(ctx)
	defer cancel()

	var res struct {
		Resources []ResourceDescriptor `json:"resources"`
	}
	if err := t.RoundTrip(cctx, MethodResourcesList, struct{}{}, &res); err != nil {
		return nil, err
	}
	return res.Resources, nil
}

// ListPrompts returns the worker's prompt template catalog.
func (m *Manager) ListPrompts(ctx context.Context) ([]PromptDescriptor, error) {
	t, err := m.ready()
	if err != nil {
		return nil, err
	}
	cctx, cancel := m.callContext(ctx)
	defer cancel()

	var res struct {
		Prompts []PromptDescriptor `json:"prompts"`
	}
	if err := t.RoundTrip(cctx, MethodPromptsList, struct{}{}, &res); err != nil {
		return nil, err
	}
	return res.Prompts, nil
}

// CallTool invokes a named tool and returns the worker's raw result. A
// result with IsError set is an application-level failure and must not be
// treated as a connection problem.
func (m *Manager) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*CallToolResult, error) {
	t, err := m.ready()
	if err != nil {
		return nil, err
	}
	cctx, cancel := m.callContext(ctx)
	defer cancel()

	params := map[string]interface{}{"name": name}
	if len(arguments) > 0 {
		params["arguments"] = arguments
	}

	var res CallToolResult
	if err := t.RoundTrip(cctx, MethodToolsCall, params, &res); err != nil {
		return nil, mapUnknownEntity(err, "tool", name)
	}
	return &res, nil
}

// ReadResource fetches the contents of a resource by URI.
func (m *Manager) ReadResource(ctx context.Context, uri string) (*ReadResourceResult, error) {
	t, err := m.ready()
	if err != nil {
		return nil, err
	}
	cctx, cancel := m.callContext(ctx)
	defer cancel()

	var res ReadResourceResult
	if err := t.RoundTrip(cctx, MethodResourcesRead, map[string]string{"uri": uri}, &res); err != nil {
		return nil, mapUnknownEntity(err, "resource", uri)
	}
	return &res, nil
}

// GetPrompt renders a prompt template with the given arguments.
func (m *Manager) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*GetPromptResult, error) {
	t, err := m.ready()
	if err != nil {
		return nil, err
	}
	cctx, cancel := m.callContext(ctx)
	defer cancel()

	params := map[string]interface{}{"name": name}
	if len(arguments) > 0 {
		params["arguments"] = arguments
	}

	var res GetPromptResult
	if err := t.RoundTrip(cctx, MethodPromptsGet, params, &res); err != nil {
		return nil, mapUnknownEntity(err, "prompt", name)
	}
	return &res, nil
}

func mapUnknownEntity(err error, kind, name string) error {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == CodeUnknownEntity {
		return &ToolNotFoundError{Kind: kind, Name: name}
	}
	return err
}
