// Package main is the entry point for the tool worker. The worker speaks
// framed JSON-RPC on stdin/stdout, so all logging goes to stderr.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/config"
	"github.com/toolbridge/toolbridge/internal/tools"
	"github.com/toolbridge/toolbridge/internal/worker"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx := context.Background()
	reg := buildRegistry(ctx, cfg)

	log.Info().Int("tools", len(reg.Tools())).Msg("tool worker ready")

	if err := worker.NewServer(os.Stdin, os.Stdout, reg).Serve(ctx); err != nil {
		log.Fatal().Err(err).Msg("worker terminated")
	}
}

func buildRegistry(ctx context.Context, cfg *config.Config) *worker.Registry {
	reg := worker.NewRegistry()

	reg.Register(tools.CalculatorTool())
	reg.Register(tools.WeatherTool(tools.NewWeatherClient(cfg.WeatherGeocodingURL, cfg.WeatherForecastURL)))

	if notes, err := tools.OpenNotesStore(cfg.NotesDBPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.NotesDBPath).Msg("notes store unavailable")
	} else {
		reg.Register(tools.SaveNoteTool(notes))
		reg.Register(tools.ListNotesTool(notes))
		reg.Register(tools.DeleteNoteTool(notes))
		reg.WithNotes(notes)
	}

	if sandbox, err := tools.NewFileSandbox(cfg.FilesRoot); err != nil {
		log.Warn().Err(err).Str("root", cfg.FilesRoot).Msg("file sandbox unavailable")
	} else {
		reg.Register(tools.ReadFileTool(sandbox))
		reg.Register(tools.ListDirectoryTool(sandbox))
		reg.WithSandbox(sandbox)
	}

	if cfg.DatabaseURL != "" {
		if qc, err := tools.NewQueryClient(ctx, cfg.DatabaseURL, cfg.SensitiveColumns); err != nil {
			log.Warn().Err(err).Msg("database unavailable")
		} else {
			reg.Register(tools.QueryDatabaseTool(qc))
		}
	}

	if cfg.ElasticsearchEnabled {
		sc, err := tools.NewSearchClient(tools.SearchConfig{
			Addresses:       cfg.ElasticsearchAddresses,
			Username:        cfg.ElasticsearchUser,
			Password:        cfg.ElasticsearchPassword,
			VerifyCerts:     cfg.ElasticsearchVerifyCerts,
			AllowedPatterns: cfg.ESAllowedPatterns,
		})
		if err != nil {
			log.Warn().Err(err).Msg("elasticsearch unavailable")
		} else {
			reg.Register(tools.SearchDocumentsTool(sc))
		}
	}

	return reg
}
