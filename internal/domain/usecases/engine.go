package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/creditrag-go/internal/domain/entities"
	"github.com/0xcro3dile/creditrag-go/internal/domain/ports"
)

var errCloudNotConfigured = errors.New("no cloud model configured")

// EngineDeps is the explicitly constructed client bundle the engine runs on.
type EngineDeps struct {
	Classifier *IntentClassifier
	Retriever  *Retriever
	Policy     RoutingPolicy
	Responder  *Responder
	Cloud      ports.ChatModel        // nil when escalation is not configured
	Recorder   ports.DecisionRecorder // may be nil
	Timeout    time.Duration          // per turn, zero means none
}

// Engine answers one question per call: classify, retrieve, decide, answer.
// It holds no per-conversation state and is safe for concurrent use.
type Engine struct {
	deps EngineDeps
}

// NewEngine checks the bundle and returns an Engine.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Classifier == nil || deps.Retriever == nil || deps.Responder == nil {
		return nil, fmt.Errorf("%w: engine needs a classifier, retriever and responder", entities.ErrInvalidConfig)
	}
	if err := deps.Policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{deps: deps}, nil
}

// Process runs the full pipeline. The decision record is emitted before the
// answering call, so it exists even when answering fails. On error the
// returned Turn carries whatever was decided before the failure.
func (e *Engine) Process(ctx context.Context, question string) (entities.Turn, error) {
	return e.run(ctx, question, true)
}

// Route answers locally whatever the retrieval confidence. Classification,
// retrieval and the decision record are unchanged; only the escalation is
// skipped.
func (e *Engine) Route(ctx context.Context, question string) (entities.Turn, error) {
	return e.run(ctx, question, false)
}

func (e *Engine) run(ctx context.Context, question string, gate bool) (turn entities.Turn, err error) {
	question = strings.TrimSpace(question)
	turn = entities.Turn{ID: uuid.NewString(), Question: question}
	if question == "" {
		return turn, entities.ErrEmptyQuestion
	}

	if e.deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deps.Timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() { turn.Elapsed = time.Since(start) }()

	intent, err := e.deps.Classifier.Classify(ctx, question)
	if err != nil {
		return turn, e.fail("classify", err)
	}
	turn.Intent = intent

	retrievalStart := time.Now()
	retrieval, err := e.deps.Retriever.Retrieve(ctx, question, intent)
	turn.Retrieval = time.Since(retrievalStart)
	turn.K = retrieval.K
	if err != nil {
		return turn, e.fail("retrieve", err)
	}
	turn.Hits = retrieval.Hits
	turn.Confidence = retrieval.Confidence

	turn.Decision = entities.DecisionLocal
	if gate {
		turn.Decision = e.deps.Policy.Decide(intent, retrieval.Confidence)
	}
	if turn.Decision == entities.DecisionCloud {
		turn.Provider = "none"
		if e.deps.Cloud != nil {
			turn.Provider = e.deps.Cloud.Name()
		}
	}
	if e.deps.Recorder != nil {
		e.deps.Recorder.RecordTurn(turn)
	}

	if turn.Decision == entities.DecisionCloud {
		turn.Response, err = e.deps.Responder.Escalate(ctx, e.deps.Cloud, intent, question)
	} else {
		turn.Response, err = e.deps.Responder.Answer(ctx, intent, question, JoinContext(retrieval.Hits))
	}
	if err != nil {
		return turn, e.fail("answer", err)
	}
	return turn, nil
}

func (e *Engine) fail(stage string, err error) error {
	if e.deps.Recorder != nil {
		e.deps.Recorder.RecordError(stage, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
