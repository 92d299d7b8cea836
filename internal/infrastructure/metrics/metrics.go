// Package metrics records the per-turn decision trail as structured logs and
// Prometheus series.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/infrastructure/logger"
)

// Recorder implements ports.DecisionRecorder.
type Recorder struct {
	log      *logger.Logger
	registry *prometheus.Registry

	turns       *prometheus.CounterVec
	confidence  *prometheus.HistogramVec
	hits        prometheus.Histogram
	retrieval   prometheus.Histogram
	fallbacks   prometheus.Counter
	errors      *prometheus.CounterVec
	builds      prometheus.Counter
	buildTime   prometheus.Histogram
	indexChunks prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry. log may be nil.
func NewRecorder(log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Recorder{
		log:      log,
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrag_turns_total",
			Help: "Routed turns by intent and decision",
		}, []string{"intent", "decision"}),
		confidence: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "creditrag_retrieval_confidence",
			Help:    "Retrieval confidence per turn",
			Buckets: []float64{0, 0.2, 0.3, 0.4, 0.5, 0.55, 0.6, 0.65, 0.7, 0.8, 0.9, 1.0},
		}, []string{"intent"}),
		hits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrag_retrieval_hits",
			Help:    "Number of chunks returned by retrieval",
			Buckets: []float64{0, 1, 2, 4, 6, 8},
		}),
		retrieval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrag_retrieval_seconds",
			Help:    "Embed and search latency per turn",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditrag_classifier_fallback_total",
			Help: "Classifier outputs outside the label set",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "creditrag_errors_total",
			Help: "Failures by pipeline stage and kind",
		}, []string{"stage", "kind"}),
		builds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "creditrag_index_builds_total",
			Help: "Completed index builds",
		}),
		buildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "creditrag_index_build_seconds",
			Help:    "Index build duration",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		indexChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "creditrag_index_chunks",
			Help: "Chunks in the active index",
		}),
	}
	r.registry.MustRegister(r.turns, r.confidence, r.hits, r.retrieval, r.fallbacks, r.errors, r.builds, r.buildTime, r.indexChunks)
	return r
}

// Registry exposes the collectors for a /metrics handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// RecordTurn logs the decision record and counts it.
func (r *Recorder) RecordTurn(turn entities.Turn) {
	r.log.Info("turn decided",
		"turn_id", turn.ID,
		"intent", string(turn.Intent),
		"confidence", turn.Confidence,
		"decision", string(turn.Decision),
		"k", turn.K,
		"hits", len(turn.Hits),
		"retrieval", turn.Retrieval,
	)
	if turn.Decision == entities.DecisionCloud {
		r.log.Info("escalating to cloud",
			"turn_id", turn.ID,
			"intent", string(turn.Intent),
			"provider", turn.Provider,
		)
	}
	r.turns.WithLabelValues(string(turn.Intent), string(turn.Decision)).Inc()
	r.confidence.WithLabelValues(string(turn.Intent)).Observe(turn.Confidence)
	r.hits.Observe(float64(len(turn.Hits)))
	r.retrieval.Observe(turn.Retrieval.Seconds())
}

// RecordClassifierFallback keeps the rejected raw label in the log.
func (r *Recorder) RecordClassifierFallback(raw string) {
	r.log.Warn("classifier returned unknown label, using explanation", "raw_label", raw)
	r.fallbacks.Inc()
}

func (r *Recorder) RecordIndexBuilt(meta entities.IndexMeta, elapsed time.Duration) {
	r.log.Info("index built",
		"build_id", meta.BuildID,
		"documents", meta.Documents,
		"chunks", meta.Chunks,
		"embedding_model", meta.EmbeddingModel,
		"dimensions", meta.Dimensions,
		"elapsed", elapsed,
	)
	r.builds.Inc()
	r.buildTime.Observe(elapsed.Seconds())
	r.indexChunks.Set(float64(meta.Chunks))
}

// SetIndexChunks reports the size of an index loaded from disk.
func (r *Recorder) SetIndexChunks(n int) { r.indexChunks.Set(float64(n)) }

func (r *Recorder) RecordError(stage string, err error) {
	kind := ErrorKind(err)
	r.log.Error("stage failed", "stage", stage, "kind", kind, "error", err)
	r.errors.WithLabelValues(stage, kind).Inc()
}

// ErrorKind buckets err into the pipeline error taxonomy.
func ErrorKind(err error) string {
	// Context errors come first: collaborators wrap them in CollaboratorError.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, entities.ErrIndexMismatch):
		return "index_mismatch"
	case errors.Is(err, entities.ErrCollaboratorUnavailable):
		return "collaborator_unavailable"
	case errors.Is(err, entities.ErrEmptyQuestion):
		return "empty_question"
	default:
		return "other"
	}
}
