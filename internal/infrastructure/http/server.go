// Package http exposes the question pipeline and index over a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/logger"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/metrics"
)

// Asker answers questions; *usecases.Engine satisfies it.
type Asker interface {
	Process(ctx context.Context, question string) (entities.Turn, error)
	Route(ctx context.Context, question string) (entities.Turn, error)
}

// Indexer rebuilds the index from a corpus directory.
type Indexer interface {
	Build(ctx context.Context, dir string) (entities.IndexMeta, error)
}

type Config struct {
	Addr        string
	Mode        string // "prod" selects gin release mode
	CORSOrigins []string
	CorpusDir   string
}

type Deps struct {
	Engine   Asker
	Indexer  Indexer
	Store    ports.IndexStore
	Gatherer prometheus.Gatherer // nil disables /metrics
	Logger   *logger.Logger
}

// Server is the HTTP server for the question API.
type Server struct {
	cfg    Config
	deps   Deps
	router *gin.Engine
}

// NewServer wires routes and middleware.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Indexer == nil || deps.Store == nil {
		return nil, errors.New("http server needs an engine, indexer and store")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{cfg: cfg, deps: deps, router: gin.New()}
	s.router.Use(gin.Recovery(), s.logRequests())
	if len(cfg.CORSOrigins) > 0 {
		s.router.Use(corsMiddleware(cfg.CORSOrigins))
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.router.GET("/api/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.POST("/ask", s.handleAsk)
		api.GET("/index", s.handleIndexMeta)
		api.POST("/index/rebuild", s.handleRebuild)
	}

	if s.deps.Gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // local models can be slow
	}

	s.deps.Logger.Info("server starting", "addr", s.cfg.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type askRequest struct {
	Question  string `json:"question"`
	LocalOnly bool   `json:"local_only"`
}

type sourceRef struct {
	Source   string  `json:"source"`
	Seq      int     `json:"seq"`
	Distance float64 `json:"distance"`
}

type askResponse struct {
	TurnID     string      `json:"turn_id"`
	Intent     string      `json:"intent"`
	Confidence float64     `json:"confidence"`
	Decision   string      `json:"decision"`
	K          int         `json:"k"`
	Response   string      `json:"response"`
	Sources    []sourceRef `json:"sources"`
	ElapsedMS  int64       `json:"elapsed_ms"`
}

type indexResponse struct {
	BuildID        string    `json:"build_id"`
	EmbeddingModel string    `json:"embedding_model"`
	Dimensions     int       `json:"dimensions"`
	Metric         string    `json:"metric"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	Documents      int       `json:"documents"`
	Chunks         int       `json:"chunks"`
	BuiltAt        time.Time `json:"built_at"`
}

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error  apiError `json:"error"`
	TurnID string   `json:"turn_id,omitempty"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "bad_request", err, "")
		return
	}

	ask := s.deps.Engine.Process
	if req.LocalOnly {
		ask = s.deps.Engine.Route
	}
	turn, err := ask(c.Request.Context(), req.Question)
	if err != nil {
		status, code := classifyError(err)
		respondError(c, status, code, err, turn.ID)
		return
	}
	c.JSON(http.StatusOK, newAskResponse(turn))
}

func (s *Server) handleIndexMeta(c *gin.Context) {
	idx, err := s.deps.Store.Active(c.Request.Context())
	if errors.Is(err, entities.ErrIndexNotBuilt) {
		respondError(c, http.StatusNotFound, "index_not_built", err, "")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "index", err, "")
		return
	}
	c.JSON(http.StatusOK, newIndexResponse(idx.Meta()))
}

func (s *Server) handleRebuild(c *gin.Context) {
	meta, err := s.deps.Indexer.Build(c.Request.Context(), s.cfg.CorpusDir)
	if err != nil {
		status, code := classifyError(err)
		respondError(c, status, code, err, "")
		return
	}
	c.JSON(http.StatusOK, newIndexResponse(meta))
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok", "index": "ready"}
	if _, err := s.deps.Store.Active(c.Request.Context()); err != nil {
		status["index"] = "not_built"
	}
	c.JSON(http.StatusOK, status)
}

// classifyError maps pipeline errors to a status and a stable code.
func classifyError(err error) (int, string) {
	code := metrics.ErrorKind(err)
	switch code {
	case "empty_question":
		return http.StatusBadRequest, code
	case "index_mismatch":
		return http.StatusConflict, code
	case "timeout":
		return http.StatusGatewayTimeout, code
	case "canceled":
		return 499, code
	case "collaborator_unavailable":
		return http.StatusBadGateway, code
	}
	if errors.Is(err, entities.ErrIndexNotBuilt) {
		return http.StatusConflict, "index_not_built"
	}
	return http.StatusInternalServerError, "internal"
}

func respondError(c *gin.Context, status int, code string, err error, turnID string) {
	c.JSON(status, errorEnvelope{Error: apiError{Message: err.Error(), Code: code}, TurnID: turnID})
}

func newAskResponse(t entities.Turn) askResponse {
	sources := make([]sourceRef, 0, len(t.Hits))
	for _, h := range t.Hits {
		sources = append(sources, sourceRef{Source: h.Chunk.Source, Seq: h.Chunk.Seq, Distance: h.Distance})
	}
	return askResponse{
		TurnID:     t.ID,
		Intent:     string(t.Intent),
		Confidence: t.Confidence,
		Decision:   string(t.Decision),
		K:          t.K,
		Response:   t.Response,
		Sources:    sources,
		ElapsedMS:  t.Elapsed.Milliseconds(),
	}
}

func newIndexResponse(m entities.IndexMeta) indexResponse {
	return indexResponse{
		BuildID:        m.BuildID,
		EmbeddingModel: m.EmbeddingModel,
		Dimensions:     m.Dimensions,
		Metric:         m.Metric,
		ChunkSize:      m.ChunkSize,
		ChunkOverlap:   m.ChunkOverlap,
		Documents:      m.Documents,
		Chunks:         m.Chunks,
		BuiltAt:        m.BuiltAt,
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.deps.Logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
