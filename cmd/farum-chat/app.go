package main

import (
	"context"
	"fmt"
	"io"

	"github.com/PabloGalante/farum-chat/internal/adapters/llm"
	boltstore "github.com/PabloGalante/farum-chat/internal/adapters/storage/bolt"
	firestorestore "github.com/PabloGalante/farum-chat/internal/adapters/storage/firestore"
	"github.com/PabloGalante/farum-chat/internal/adapters/storage/instrumented"
	memstore "github.com/PabloGalante/farum-chat/internal/adapters/storage/memory"
	redisstore "github.com/PabloGalante/farum-chat/internal/adapters/storage/redis"
	sqlitestore "github.com/PabloGalante/farum-chat/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/farum-chat/internal/app/conversation"
	"github.com/PabloGalante/farum-chat/internal/app/history"
	"github.com/PabloGalante/farum-chat/internal/app/threads"
	"github.com/PabloGalante/farum-chat/internal/app/tools"
	"github.com/PabloGalante/farum-chat/internal/config"
	"github.com/PabloGalante/farum-chat/internal/docstore"
	"github.com/PabloGalante/farum-chat/internal/domain"
	"github.com/PabloGalante/farum-chat/internal/observability"
)

// app is the wired application shared by every command.
type app struct {
	cfg     *config.Config
	storage *instrumented.Storage
	svc     *conversation.Service
	closer  io.Closer
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

// buildApp wires storage, model, stores, tools and the conversation service.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := observability.Logger()
	jsonOpts := docstore.DefaultOptions

	raw, closer, err := buildStorage(ctx, cfg, jsonOpts)
	if err != nil {
		return nil, err
	}
	storage := instrumented.Wrap(raw, cfg.Storage.Backend)
	log.Info("storage ready", "backend", cfg.Storage.Backend)

	model, err := buildModel(ctx, cfg)
	if err != nil {
		if closer != nil {
			_ = closer.Close()
		}
		return nil, err
	}

	threadStore := threads.NewStore(storage, jsonOpts)
	historyStore := history.NewStore(storage, jsonOpts)
	registry := tools.NewRegistry(
		tools.NewListThreadsTool(threadStore),
		tools.NewCurrentTimeTool(),
	)

	svc := conversation.NewService(model, threadStore, historyStore, registry).
		WithMaxToolRounds(cfg.MaxToolRounds).
		WithJSONOptions(jsonOpts)

	return &app{cfg: cfg, storage: storage, svc: svc, closer: closer}, nil
}

func buildStorage(ctx context.Context, cfg *config.Config, jsonOpts docstore.Options) (domain.DocumentStorage, io.Closer, error) {
	st := cfg.Storage
	switch st.Backend {
	case config.BackendBolt:
		s, err := boltstore.Open(st.BoltPath, jsonOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing bolt store: %w", err)
		}
		return s, s, nil

	case config.BackendRedis:
		s, err := redisstore.New(st.RedisURL, st.RedisPrefix, jsonOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing redis store: %w", err)
		}
		return s, s, nil

	case config.BackendSQLite:
		s, err := sqlitestore.Open(st.SQLitePath, jsonOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing sqlite store: %w", err)
		}
		return s, s, nil

	case config.BackendFirestore:
		s, err := firestorestore.NewStore(ctx, firestorestore.Options{
			ProjectID:  cfg.GCPProjectID,
			Collection: st.FirestoreCollection,
			Envelope:   st.FirestoreEnvelope,
		}, jsonOpts)
		if err != nil {
			return nil, nil, fmt.Errorf("error initializing Firestore store: %w", err)
		}
		return s, s, nil

	default:
		return memstore.NewDocumentStore(), nil, nil
	}
}

// Choose between mock and Gemini by config (useful for dev)
func buildModel(ctx context.Context, cfg *config.Config) (domain.ModelClient, error) {
	log := observability.Logger()
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		return llm.NewMockLLM(), nil
	}

	log.Info("using Gemini LLM client", "model", cfg.ModelName)
	client, err := llm.NewVertexClient(ctx, llm.VertexConfig{
		Project:   cfg.GCPProjectID,
		Location:  cfg.GCPLocation,
		APIKey:    cfg.APIKey,
		ModelName: cfg.ModelName,
	})
	if err != nil {
		return nil, fmt.Errorf("error initializing Gemini LLM client: %w", err)
	}
	return client, nil
}
