// Package autopoiesis generates tools with a language model and refines them
// by running them and feeding the output back.
//
// The Ouroboros Loop:
// Generate → Execute → Revise → (Execute → Revise)* → Converged | Exhausted
//
// A run converges when a revision returns exactly the code it was given.
package autopoiesis

import (
	"context"
	"time"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
	"toolsmith/internal/types"
)

// DefaultMaxIterations is the revision budget of one Iterate call.
const DefaultMaxIterations = 5

// Runner executes a formatted tool and returns everything it printed.
type Runner interface {
	Run(ctx context.Context, formattedCode string) (string, error)
}

// LoopStage identifies where in the loop we are
type LoopStage int

const (
	StageInitial LoopStage = iota
	StageGenerating
	StageExecuting
	StageRevising
	StageConverged
	StageExhausted
)

func (s LoopStage) String() string {
	switch s {
	case StageInitial:
		return "initial"
	case StageGenerating:
		return "generating"
	case StageExecuting:
		return "executing"
	case StageRevising:
		return "revising"
	case StageConverged:
		return "converged"
	case StageExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// IterationEvent is passed to observers at every stage transition.
type IterationEvent struct {
	Stage     LoopStage
	Iteration int
	// Tool is the record the stage works on; nil before the first generation.
	Tool *ToolRecord
	// Log is set once the tool has been executed in this iteration.
	Log  string
	Time time.Time
}

// IterationStep records one execute/revise pass.
type IterationStep struct {
	Iteration int           `json:"iteration"`
	Slug      string        `json:"slug"`
	Code      string        `json:"code"`
	Log       string        `json:"log"`
	Duration  time.Duration `json:"duration"`
}

// IterationResult is the outcome of a completed run. Exhaustion is a normal
// result, not an error.
type IterationResult struct {
	Tool       FormattedToolRecord
	Outcome    LoopStage // StageConverged or StageExhausted
	Iterations int       // revision calls performed
	Steps      []IterationStep
	Duration   time.Duration
}

// Converged reports whether the run ended on a stable revision.
func (r *IterationResult) Converged() bool { return r.Outcome == StageConverged }

// OuroborosConfig configures the Ouroboros Loop
type OuroborosConfig struct {
	MaxIterations  int  // Revision budget; 0 executes nothing
	InitialDirect  bool // Generate the first record without lookup tools
	MaxAgentRounds int
	// OnEvent observes every run unless a run supplies its own observer.
	OnEvent func(IterationEvent)
}

// DefaultOuroborosConfig returns the default loop settings.
func DefaultOuroborosConfig() OuroborosConfig {
	return OuroborosConfig{
		MaxIterations:  DefaultMaxIterations,
		MaxAgentRounds: DefaultMaxAgentRounds,
	}
}

// OuroborosLoop drives generation, execution and revision of one tool per
// Iterate call. It keeps no per-run state and may serve concurrent runs.
type OuroborosLoop struct {
	direct    Strategy
	augmented Strategy
	revision  Strategy
	formatter *ToolFormatter
	runner    Runner
	config    OuroborosConfig
}

// NewOuroborosLoop wires the three strategies over one completion client and
// lookup registry.
func NewOuroborosLoop(client types.LLMClient, assets *Assets, registry *tools.Registry, runner Runner, config OuroborosConfig) *OuroborosLoop {
	return NewOuroborosLoopWithStrategies(
		NewDirectStrategy(client, assets),
		NewAugmentedStrategy(client, assets, registry, config.MaxAgentRounds),
		NewRevisionStrategy(client, assets, registry, config.MaxAgentRounds),
		NewToolFormatter(assets),
		runner,
		config,
	)
}

// NewOuroborosLoopWithStrategies builds a loop from explicit parts.
func NewOuroborosLoopWithStrategies(direct, augmented, revision Strategy, formatter *ToolFormatter, runner Runner, config OuroborosConfig) *OuroborosLoop {
	if config.MaxIterations < 0 {
		config.MaxIterations = 0
	}
	return &OuroborosLoop{
		direct:    direct,
		augmented: augmented,
		revision:  revision,
		formatter: formatter,
		runner:    runner,
		config:    config,
	}
}

// IterateOption adjusts a single Iterate call.
type IterateOption func(*iterateOptions)

type iterateOptions struct {
	maxIterations int
	onEvent       func(IterationEvent)
}

// WithMaxIterations overrides the revision budget for one run.
func WithMaxIterations(n int) IterateOption {
	return func(o *iterateOptions) {
		if n < 0 {
			n = 0
		}
		o.maxIterations = n
	}
}

// WithObserver sets the event observer for one run.
func WithObserver(fn func(IterationEvent)) IterateOption {
	return func(o *iterateOptions) { o.onEvent = fn }
}

// Iterate generates a tool for req, then executes and revises it until a
// revision leaves the code unchanged or MaxIterations revisions have been
// made. Cancellation is checked before every execution. Failures are
// returned as *StageError.
func (l *OuroborosLoop) Iterate(ctx context.Context, req ToolRequest, opts ...IterateOption) (*IterationResult, error) {
	timer := logging.StartTimer(logging.CategoryOuroboros, "Iterate")
	defer timer.Stop()

	o := iterateOptions{maxIterations: l.config.MaxIterations, onEvent: l.config.OnEvent}
	for _, opt := range opts {
		opt(&o)
	}
	emit := func(stage LoopStage, iteration int, tool *ToolRecord, log string) {
		logging.OuroborosDebug("stage %s (iteration %d)", stage, iteration)
		if o.onEvent != nil {
			o.onEvent(IterationEvent{Stage: stage, Iteration: iteration, Tool: tool, Log: log, Time: time.Now()})
		}
	}

	start := time.Now()
	logging.Ouroboros("iterating tool %q (max %d iterations)", req.Name, o.maxIterations)

	emit(StageInitial, 0, nil, "")
	emit(StageGenerating, 0, nil, "")
	rec, err := l.generateRecord(ctx, req, !l.config.InitialDirect)
	if err != nil {
		logging.OuroborosError("initial generation failed: %v", err)
		return nil, &StageError{Stage: StageGenerating, Err: err}
	}

	state := IterationState{Current: *rec}
	var steps []IterationStep

	for state.Iteration < o.maxIterations {
		if err := ctx.Err(); err != nil {
			logging.OuroborosWarn("canceled before iteration %d: %v", state.Iteration, err)
			return nil, err
		}

		stepStart := time.Now()
		current := state.Current.Clone()
		emit(StageExecuting, state.Iteration, &current, "")
		logs, err := l.execute(ctx, current)
		if err != nil {
			logging.OuroborosError("execution failed at iteration %d: %v", state.Iteration, err)
			return nil, &StageError{Stage: StageExecuting, Err: err}
		}
		state.ExecutionLog, state.HasLog = logs, true

		emit(StageRevising, state.Iteration, &current, logs)
		candidate, err := l.reviseRecord(ctx, current, logs)
		if err != nil {
			logging.OuroborosError("revision failed at iteration %d: %v", state.Iteration, err)
			return nil, &StageError{Stage: StageRevising, Err: err}
		}
		steps = append(steps, IterationStep{
			Iteration: state.Iteration,
			Slug:      current.Slug,
			Code:      current.Code,
			Log:       logs,
			Duration:  time.Since(stepStart),
		})

		if candidate.Code == state.Current.Code {
			logging.Ouroboros("converged after %d revision(s)", state.Iteration+1)
			return l.finish(StageConverged, *candidate, state.Iteration+1, steps, start, emit)
		}

		previous := state.Current
		state.Previous = &previous
		state.Current = *candidate
		state.Iteration++
	}

	logging.Ouroboros("max %d iterations reached", o.maxIterations)
	return l.finish(StageExhausted, state.Current, state.Iteration, steps, start, emit)
}

func (l *OuroborosLoop) finish(outcome LoopStage, rec ToolRecord, iterations int, steps []IterationStep, start time.Time, emit func(LoopStage, int, *ToolRecord, string)) (*IterationResult, error) {
	formatted, err := l.formatter.Format(rec)
	if err != nil {
		return nil, &StageError{Stage: outcome, Err: err}
	}
	emit(outcome, iterations, &formatted.ToolRecord, "")
	return &IterationResult{
		Tool:       *formatted,
		Outcome:    outcome,
		Iterations: iterations,
		Steps:      steps,
		Duration:   time.Since(start),
	}, nil
}

// Generate makes one tool for req, with or without lookup tools, and formats
// it. Nothing is executed.
func (l *OuroborosLoop) Generate(ctx context.Context, req ToolRequest, withAgent bool) (*FormattedToolRecord, error) {
	rec, err := l.generateRecord(ctx, req, withAgent)
	if err != nil {
		return nil, &StageError{Stage: StageGenerating, Err: err}
	}
	formatted, err := l.formatter.Format(*rec)
	if err != nil {
		return nil, &StageError{Stage: StageGenerating, Err: err}
	}
	return formatted, nil
}

// Revise asks for one revision of tool given the logs of a run and formats
// the result. Nothing is executed.
func (l *OuroborosLoop) Revise(ctx context.Context, tool ToolRecord, logs string) (*FormattedToolRecord, error) {
	rec, err := l.reviseRecord(ctx, tool, logs)
	if err != nil {
		return nil, &StageError{Stage: StageRevising, Err: err}
	}
	formatted, err := l.formatter.Format(*rec)
	if err != nil {
		return nil, &StageError{Stage: StageRevising, Err: err}
	}
	return formatted, nil
}

func (l *OuroborosLoop) generateRecord(ctx context.Context, req ToolRequest, withAgent bool) (*ToolRecord, error) {
	strategy := l.direct
	if withAgent {
		strategy = l.augmented
	}
	raw, err := strategy.Generate(ctx, GenerationInput{Request: &req})
	if err != nil {
		return nil, err
	}
	return ParseToolRecord(raw)
}

func (l *OuroborosLoop) reviseRecord(ctx context.Context, tool ToolRecord, logs string) (*ToolRecord, error) {
	raw, err := l.revision.Generate(ctx, GenerationInput{Revision: &RevisionInput{Tool: tool, Logs: logs}})
	if err != nil {
		return nil, err
	}
	return ParseToolRecord(raw)
}

func (l *OuroborosLoop) execute(ctx context.Context, rec ToolRecord) (string, error) {
	formatted, err := l.formatter.Format(rec)
	if err != nil {
		return "", err
	}
	if report := InspectToolCode(rec.Code); !report.OK() {
		for _, w := range report.Warnings {
			logging.ToolgenWarn("%s: %s", rec.Slug, w)
		}
	}
	timer := logging.StartTimer(logging.CategoryOuroboros, "execute "+rec.Slug)
	defer timer.Stop()
	return l.runner.Run(ctx, formatted.WrappedCode)
}
