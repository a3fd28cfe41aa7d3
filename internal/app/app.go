// Package app wires configuration, the completion client, the stores and
// the conversation orchestrator into a runnable server.
package app

import (
	"context"
	"fmt"
	"log"
	"strings"

	"daggy/internal/artifactstore"
	"daggy/internal/config"
	"daggy/internal/convo"
	"daggy/internal/journal"
	"daggy/internal/llm"
	"daggy/internal/server"
)

type App struct {
	server  *server.Server
	journal *journal.Store
	llm     llm.Client
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newLLMClient(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to init completion client: %w", err)
	}
	client = llm.Chain(client, llm.WithLogging(log.Default()))

	prompts, err := convo.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		// Built-in prompts are always usable; an unreadable override
		// file should not keep the server down.
		log.Printf("prompt override ignored: %v", err)
	}

	journalStore := journal.NewFromEnv(cfg.Journal.Dir, cfg.Journal.PostgresDSN)
	artifacts, err := newArtifactStore(cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to init artifact store: %w", err)
	}

	orchestrator := convo.New(
		convo.NewClassifier(client, prompts.Journal, stageConfig(cfg.LLM.JournalModel)),
		convo.NewDetailStage(client, prompts.Detail, stageConfig(cfg.LLM.DetailModel)),
		convo.NewGenerateStage(client, prompts.Yaml, stageConfig(cfg.LLM.YamlModel)),
		convo.WithJournal(journalStore),
		convo.WithArtifacts(artifacts),
	)

	handler := server.NewHandler(orchestrator, journalStore, artifacts)
	srv := server.New(cfg.Port, server.NewMux(handler))

	return &App{
		server:  srv,
		journal: journalStore,
		llm:     client,
	}, nil
}

func newLLMClient(cfg config.LLMConfig) (llm.Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "openrouter":
		return llm.NewOpenRouterClient(cfg.OpenRouterAPIKey, "")
	case "gemini":
		return llm.NewGeminiClient(context.Background(), "")
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newArtifactStore(cfg config.ArtifactConfig) (artifactstore.Store, error) {
	if !cfg.Enabled {
		return artifactstore.NewMemoryStore(), nil
	}
	return artifactstore.NewS3Store(artifactstore.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
}

// stageConfig overrides only the model; token and temperature defaults
// stay with the stage.
func stageConfig(model string) convo.StageConfig {
	return convo.StageConfig{Opts: llm.Options{Model: strings.TrimSpace(model)}}
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.journal.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := a.llm.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
