package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/handler"
	"github.com/toolbridge/toolbridge/internal/llm"
	"github.com/toolbridge/toolbridge/internal/mcp"
	"github.com/toolbridge/toolbridge/internal/middleware"
	"github.com/toolbridge/toolbridge/internal/orchestrator"
	"github.com/toolbridge/toolbridge/internal/security"
	"github.com/toolbridge/toolbridge/internal/store"
)

func (s *Server) setupRoutes() (http.Handler, error) {
	cfg := s.cfg
	ctx := context.Background()

	// ─── Conversation store ─────────────────────────────────────────────────────
	st := store.New(store.Config{
		MaxConversations:           cfg.MaxConversations,
		MaxMessagesPerConversation: cfg.MaxMessagesPerConversation,
		MaxAge:                     cfg.ConversationMaxAge,
		SweepInterval:              cfg.SweepInterval,
	})
	st.Start()
	s.store = st

	// ─── LLM provider ───────────────────────────────────────────────────────────
	apiKey, model, baseURL := cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.AnthropicBaseURL
	if cfg.LLMProvider == "openai" {
		apiKey, model, baseURL = cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL
	}
	provider, err := llm.NewProvider(cfg.LLMProvider, apiKey, model, baseURL)
	if err != nil {
		return nil, err
	}

	// ─── Tool worker ────────────────────────────────────────────────────────────
	manager := mcp.NewManager(mcp.Config{
		Worker: mcp.SpawnConfig{
			Command: cfg.WorkerCommand,
			Args:    cfg.WorkerArgs,
		},
		HandshakeTimeout:     cfg.HandshakeTimeout,
		CallTimeout:          cfg.ToolCallTimeout,
		DisconnectGrace:      cfg.DisconnectGrace,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
	})
	s.manager = manager

	if cfg.WorkerCommand == "" {
		log.Warn().Msg("TOOL_WORKER_CMD not set - chat will run without tools")
	} else if err := manager.Connect(ctx); err != nil {
		log.Warn().Err(err).Msg("tool worker unavailable at startup")
	} else {
		info := manager.Server()
		log.Info().
			Str("worker", info.Name).
			Str("version", info.Version).
			Msg("tool worker connected")
	}

	orch := orchestrator.New(provider, manager, st, orchestrator.Config{
		ToolCallTimeout:  cfg.ToolCallTimeout,
		ModelCallTimeout: cfg.ModelCallTimeout,
	})

	log.Info().
		Str("llm_provider", provider.Name()).
		Bool("worker_configured", cfg.WorkerCommand != "").
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	// ─── Security ───────────────────────────────────────────────────────────────
	promptVal := security.NewPromptValidator()
	var piiDetector *security.PIIDetector
	if cfg.EnablePIIDetection {
		piiDetector = security.NewPIIDetector(cfg.PIIKeywords)
	}
	auditLogger := security.NewAuditLogger(cfg.EnableAuditLogging)

	// ─── Handlers ───────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(manager)
	chatH := handler.NewChatHandler(orch, promptVal, piiDetector, auditLogger)
	convH := handler.NewConversationsHandler(st)
	statsH := handler.NewStatsHandler(st, orch, manager)

	// ─── Router ─────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute))

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/chat", chatH.Chat)

			r.Get("/conversations", convH.List)
			r.Get("/conversations/search", convH.Search)
			r.Get("/conversations/{id}", convH.Get)
			r.Delete("/conversations/{id}", convH.Delete)

			r.Get("/stats", statsH.Stats)
			r.Get("/capabilities", statsH.Capabilities)
			r.Get("/resources/read", statsH.ReadResource)
			r.Get("/prompts/{name}", statsH.GetPrompt)
		})
	})

	return r, nil
}
