// Package app builds the dependency bundle once at startup. Nothing in the
// pipeline reaches for globals; every component receives its collaborators here.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/0xcro3dile/creditrag-go/internal/adapters/embedding"
	"github.com/0xcro3dile/creditrag-go/internal/adapters/filewatcher"
	"github.com/0xcro3dile/creditrag-go/internal/adapters/llm"
	"github.com/0xcro3dile/creditrag-go/internal/adapters/loader"
	"github.com/0xcro3dile/creditrag-go/internal/adapters/tokenizer"
	"github.com/0xcro3dile/creditrag-go/internal/adapters/vectordb"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
	"github.com/0xcro3dile/creditrag-go/internal/domain/usecases"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/config"
	httpserver "github.com/0xcro3dile/creditrag-go/internal/infrastructure/http"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/logger"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/metrics"
	"github.com/0xcro3dile/creditrag-go/internal/prompts"
)

type App struct {
	Cfg      *config.Config
	Log      *logger.Logger
	Metrics  *metrics.Recorder
	Store    *vectordb.Store
	Embedder ports.Embedder
	Local    ports.ChatModel
	Cloud    ports.ChatModel // nil when no cloud provider is configured
	Builder  *usecases.IndexBuilder
	Engine   *usecases.Engine

	closers []io.Closer
}

// Clients lets callers substitute collaborators, mainly for tests.
// Nil fields are built from config.
type Clients struct {
	Embedder ports.Embedder
	Local    ports.ChatModel
	Cloud    ports.ChatModel
	Store    *vectordb.Store
}

// New wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	return NewWithClients(ctx, cfg, log, Clients{})
}

func NewWithClients(ctx context.Context, cfg *config.Config, log *logger.Logger, clients Clients) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: log, Metrics: metrics.NewRecorder(log)}

	catalogue, err := loadCatalogue(cfg.Prompts.File)
	if err != nil {
		return nil, err
	}

	if a.Store = clients.Store; a.Store == nil {
		if a.Store, err = vectordb.NewSQLiteStore(ctx, cfg.Index.Dir); err != nil {
			return nil, fmt.Errorf("opening index: %w", err)
		}
	}
	if idx, err := a.Store.Active(ctx); err == nil {
		meta := idx.Meta()
		a.Metrics.SetIndexChunks(meta.Chunks)
		log.Info("index loaded", "build_id", meta.BuildID, "chunks", meta.Chunks, "embedding_model", meta.EmbeddingModel)
	}

	if a.Embedder = clients.Embedder; a.Embedder == nil {
		if a.Embedder, err = newEmbedder(cfg.Embedding, log); err != nil {
			return nil, err
		}
	}
	if a.Local = clients.Local; a.Local == nil {
		a.Local = llm.NewOllamaChat(cfg.Local.URL, cfg.Local.Model)
	}
	if a.Cloud = clients.Cloud; a.Cloud == nil {
		if err := a.dialCloud(ctx); err != nil {
			return nil, err
		}
	}

	length, err := lengthFunc(cfg.Index)
	if err != nil {
		return nil, err
	}
	splitter, err := usecases.NewRecursiveSplitter(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap, length)
	if err != nil {
		return nil, err
	}
	a.Builder = usecases.NewIndexBuilder(
		loader.NewDirectoryLoader(cfg.Corpus.Extensions),
		splitter,
		a.Embedder,
		a.Store,
		a.Metrics,
		usecases.IndexBuilderConfig{Metric: cfg.Index.Metric, BatchSize: cfg.Index.BatchSize},
	)

	deps := usecases.EngineDeps{
		Classifier: usecases.NewIntentClassifier(a.Local, catalogue.Classifier, a.Metrics),
		Retriever: usecases.NewRetriever(a.Embedder, a.Store, usecases.RetrievalDepth{
			Explanation: cfg.Routing.KExplanation,
			Simulation:  cfg.Routing.KSimulation,
			Default:     cfg.Routing.KDefault,
		}),
		Policy: usecases.RoutingPolicy{
			Base:       cfg.Routing.BaseThreshold,
			Simulation: cfg.Routing.SimulationThreshold,
		},
		Responder: usecases.NewResponder(a.Local, catalogue),
		Recorder:  a.Metrics,
		Timeout:   cfg.Engine.TurnTimeout,
	}
	// Leave the interface nil rather than holding a typed nil.
	if a.Cloud != nil {
		deps.Cloud = a.Cloud
	}
	if a.Engine, err = usecases.NewEngine(deps); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) dialCloud(ctx context.Context) error {
	c := a.Cfg.Cloud
	if c.Provider == "none" {
		return nil
	}
	if c.APIKey == "" {
		a.Log.Warn("no cloud API key, low-confidence questions will fail", "provider", c.Provider)
		return nil
	}
	switch c.Provider {
	case "gemini":
		g, err := llm.NewGeminiChat(ctx, c.APIKey, c.Model)
		if err != nil {
			return err
		}
		a.Cloud = g
		a.closers = append(a.closers, g)
	case "openai":
		o, err := llm.NewOpenAIChat(c.APIKey, c.BaseURL, c.Model)
		if err != nil {
			return err
		}
		a.Cloud = o
	}
	return nil
}

func newEmbedder(cfg config.EmbeddingConfig, log *logger.Logger) (ports.Embedder, error) {
	var e ports.Embedder = embedding.NewOllamaEmbedder(cfg.URL, cfg.Model,
		embedding.WithConcurrency(cfg.Concurrency),
		embedding.WithLogger(log),
	)
	if cfg.CacheSize > 0 {
		cached, err := embedding.NewCachedEmbedder(e, cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("embedding cache: %w", err)
		}
		e = cached
	}
	return e, nil
}

func lengthFunc(cfg config.IndexConfig) (usecases.LengthFunc, error) {
	if cfg.LengthUnit != "tokens" {
		return usecases.RuneLength, nil
	}
	counter, err := tokenizer.NewCounter(cfg.Encoding)
	if err != nil {
		return nil, err
	}
	return counter.Count, nil
}

func loadCatalogue(path string) (*prompts.Catalogue, error) {
	if path != "" {
		return prompts.LoadFile(path)
	}
	return prompts.Default()
}

// Watch rebuilds the index on corpus changes until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	w, err := filewatcher.NewFSNotifyWatcher(a.Cfg.Corpus.Extensions, a.Log)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Stop()
	a.Log.Info("watching corpus", "dir", a.Cfg.Corpus.Dir, "debounce", a.Cfg.Corpus.Debounce)
	return a.Builder.Watch(ctx, a.Cfg.Corpus.Dir, w, a.Cfg.Corpus.Debounce)
}

// HTTPServer builds the JSON API over this bundle.
func (a *App) HTTPServer() (*httpserver.Server, error) {
	return httpserver.NewServer(httpserver.Config{
		Addr:        a.Cfg.Server.Addr,
		Mode:        a.Cfg.Log.Mode,
		CORSOrigins: a.Cfg.Server.CORSOrigins,
		CorpusDir:   a.Cfg.Corpus.Dir,
	}, httpserver.Deps{
		Engine:   a.Engine,
		Indexer:  a.Builder,
		Store:    a.Store,
		Gatherer: a.Metrics.Registry(),
		Logger:   a.Log,
	})
}

// Close releases clients and flushes the log.
func (a *App) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.Log.Sync()
}
