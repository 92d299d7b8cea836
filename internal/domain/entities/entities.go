// Package entities contains core business entities.
// These are pure domain objects with no knowledge of storage, models or transport.
package entities

import (
	"strings"
	"time"
)

// Document is one source file of the credit knowledge base.
// Immutable once loaded; recreated on every re-index.
type Document struct {
	Source  string // Stable identifier, the path relative to the corpus root
	Content string
}

// Chunk is a bounded-size span of a Document, the atomic retrievable unit.
type Chunk struct {
	Text   string
	Source string
	Seq    int // Position within the source document
}

// IndexEntry pairs a Chunk with its embedding.
type IndexEntry struct {
	Chunk     Chunk
	Embedding []float32
}

// SearchHit is one element of a retrieval result.
// Distance is >= 0, lower is better.
type SearchHit struct {
	Chunk    Chunk
	Distance float64
}

// IndexMeta describes a persisted index.
// EmbeddingModel is checked on every query path.
type IndexMeta struct {
	BuildID        string
	EmbeddingModel string
	Dimensions     int
	Metric         string
	ChunkSize      int
	ChunkOverlap   int
	Documents      int
	Chunks         int
	BuiltAt        time.Time
}

// Intent is the coarse question category driving formatting and retrieval breadth.
type Intent string

const (
	IntentExplanation    Intent = "explanation"
	IntentAdvisory       Intent = "advisory"
	IntentRiskAssessment Intent = "risk_assessment"
	IntentSimulation     Intent = "simulation"
)

// Intents lists every allowed label, in classifier prompt order.
var Intents = []Intent{IntentExplanation, IntentAdvisory, IntentRiskAssessment, IntentSimulation}

// Valid reports whether i is one of the four allowed labels.
func (i Intent) Valid() bool {
	switch i {
	case IntentExplanation, IntentAdvisory, IntentRiskAssessment, IntentSimulation:
		return true
	}
	return false
}

// ParseIntent normalises raw model output into an Intent.
// Anything outside the allowed set becomes IntentExplanation and ok is false.
func ParseIntent(raw string) (intent Intent, ok bool) {
	label := strings.ToLower(strings.TrimSpace(raw))
	label = strings.Trim(label, " \t\r\n.,;:!?\"'`*")
	if i := Intent(label); i.Valid() {
		return i, true
	}
	return IntentExplanation, false
}

// Decision is the local/cloud execution choice made per question.
type Decision string

const (
	DecisionLocal Decision = "local"
	DecisionCloud Decision = "cloud"
)

// Turn is the transient record of one question and its answer. Not persisted.
type Turn struct {
	ID         string
	Question   string
	Intent     Intent
	Confidence float64
	Decision   Decision
	Provider   string // cloud model name, set only when Decision is cloud
	K          int
	Hits       []SearchHit
	Response   string
	Retrieval  time.Duration
	Elapsed    time.Duration
}

// ChatMessage is one message sent to a language model.
type ChatMessage struct {
	Role    string // "system" or "user"
	Content string
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)
