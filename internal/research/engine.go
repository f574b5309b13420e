package research

import (
	"context"
	"fmt"
	"time"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/config"
	"finresearch/internal/errors"
	"finresearch/internal/usage"
	"finresearch/ports"

	"github.com/google/uuid"
)

// Dependencies are the collaborators injected into the engine once
type Dependencies struct {
	Generator ports.TextGenerator
	Retriever ports.Retriever
	Web       ports.WebSearcher
	Market    ports.MarketData
	Catalog   *config.Catalog
	Prompts   *ai.PromptManager
	Events    EventSink
	Logger    *internal.Logger

	TopK             int
	WebOptions       WebOptions
	MarketSourceName string
}

// Engine drives one research run through plan, stages and synthesis.
// It holds no per-run state and is safe for concurrent runs.
type Engine struct {
	planner     *Planner
	stages      map[domain.Capability]Stage
	synthesizer *Synthesizer
	events      EventSink
	logger      *internal.Logger

	now   func() time.Time
	newID func() string
}

// NewEngine wires the planner, the three stages and the synthesizer
func NewEngine(deps Dependencies) (*Engine, error) {
	switch {
	case deps.Generator == nil:
		return nil, errors.ConfigInvalid("text generator is required")
	case deps.Retriever == nil:
		return nil, errors.ConfigInvalid("retriever is required")
	case deps.Web == nil:
		return nil, errors.ConfigInvalid("web searcher is required")
	case deps.Market == nil:
		return nil, errors.ConfigInvalid("market data is required")
	}

	catalog := deps.Catalog
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	prompts := deps.Prompts
	if prompts == nil {
		prompts = ai.NewPromptManager("")
	}
	events := deps.Events
	if events == nil {
		events = nopSink{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = internal.DefaultLogger
	}

	filters := NewFilterExtractor(deps.Generator, prompts, catalog)
	stages := []Stage{
		NewDocumentStage(deps.Generator, deps.Retriever, filters, prompts, deps.TopK),
		NewWebStage(deps.Generator, deps.Web, prompts, deps.WebOptions),
		NewMarketStage(deps.Generator, deps.Market, catalog, prompts, deps.MarketSourceName),
	}

	return newEngine(NewPlanner(deps.Generator, prompts, catalog), stages, NewSynthesizer(deps.Generator, prompts), events, logger), nil
}

func newEngine(planner *Planner, stages []Stage, synth *Synthesizer, events EventSink, logger *internal.Logger) *Engine {
	byCap := make(map[domain.Capability]Stage, len(stages))
	for _, s := range stages {
		byCap[s.Capability()] = s
	}
	return &Engine{
		planner:     planner,
		stages:      byCap,
		synthesizer: synth,
		events:      events,
		logger:      logger.With("Engine"),
		now:         time.Now,
		newID:       newRunID,
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// RunOption customizes a single run
type RunOption func(*runOptions)

type runOptions struct {
	runID string
}

// WithRunID sets the run ID instead of generating one
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// Run answers question. On a fatal error it returns only the error; no
// partial state escapes.
func (e *Engine) Run(ctx context.Context, question string, opts ...RunOption) (*domain.RunState, error) {
	req, err := domain.NewResearchRequest(question)
	if err != nil {
		return nil, errors.InvalidInput(err.Error())
	}

	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}
	runID := ro.runID
	if runID == "" {
		runID = e.newID()
	}

	ctx = usage.ContextWithRunID(ctx, runID)
	state := domain.NewRunState(runID, req, e.now())
	e.publish(Event{Type: EventRunStarted, RunID: runID, Message: req.OriginalQuestion})
	e.logger.Info("run %s started: %q", runID, req.OriginalQuestion)

	if err := e.drive(ctx, state); err != nil {
		e.logger.Error("run %s failed: %v", runID, err)
		e.publish(Event{Type: EventRunFailed, RunID: runID, Message: err.Error()})
		return nil, err
	}

	e.logger.Info("run %s completed in %dms via %v", runID, state.DurationMs, state.Path)
	e.publish(Event{Type: EventRunCompleted, RunID: runID, Count: state.EvidenceLedger.Len()})
	return state, nil
}

func (e *Engine) drive(ctx context.Context, state *domain.RunState) error {
	plan, err := e.planner.Plan(ctx, state.Request)
	if err != nil {
		return err
	}
	state.ApplyPlan(plan)
	e.publish(Event{
		Type:    EventPlanReady,
		RunID:   state.RunID,
		Count:   len(plan.SubQuestions),
		Message: plan.RequiredCapabilities.String(),
	})

	current := domain.StateClassify
	for !current.Terminal() {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "research run cancelled")
		}

		next := domain.Next(current, state.RequiredCapabilities, state.ExecutedCapabilities)
		e.logger.Debug("run %s: %s -> %s", state.RunID, current, next)
		state.Enter(next)

		switch next {
		case domain.StateDocument, domain.StateWeb, domain.StateMarket:
			c, _ := next.Capability()
			if err := e.runStage(ctx, state, c); err != nil {
				return err
			}
		case domain.StateSynthesize:
			e.publish(Event{Type: EventSynthesisStarted, RunID: state.RunID, Count: state.EvidenceLedger.Len()})
			final, err := e.synthesizer.Synthesize(ctx, state.Request, state.EvidenceLedger.Records())
			if err != nil {
				return err
			}
			state.Complete(final, e.now())
		}
		current = next
	}
	return nil
}

func (e *Engine) runStage(ctx context.Context, state *domain.RunState, c domain.Capability) error {
	if state.HasExecuted(c) {
		return errors.InternalError(fmt.Sprintf("%s stage scheduled twice", c))
	}
	stage, ok := e.stages[c]
	if !ok {
		return errors.InternalError(fmt.Sprintf("no stage registered for %s", c))
	}

	e.publish(Event{Type: EventStageStarted, RunID: state.RunID, Stage: c.String(), Count: len(state.View().SubQuestionsFor(c))})

	delta, err := stage.Execute(ctx, state.View())
	if err != nil {
		return errors.Wrapf(err, "%s stage failed", c)
	}
	if delta.Capability != c {
		return errors.InternalError(fmt.Sprintf("%s stage returned delta for %s", c, delta.Capability))
	}
	if err := state.Merge(delta); err != nil {
		return errors.Wrap(err, "failed to merge stage results")
	}

	e.logger.Info("%s stage appended %d records", c, len(delta.Records))
	e.publish(Event{Type: EventStageCompleted, RunID: state.RunID, Stage: c.String(), Count: len(delta.Records)})
	return nil
}

func (e *Engine) publish(ev Event) {
	ev.Timestamp = e.now()
	e.events.Publish(ev)
}
