package store

import (
	"context"

	"toolsmith/internal/autopoiesis"
	"toolsmith/internal/logging"
)

// Recorder journals one Iterate run. Observe is passed to the loop as its
// observer; Finish closes the run.
type Recorder struct {
	store *IterationStore
	runID string
	ctx   context.Context
}

// Record starts a journal run for req.
func (s *IterationStore) Record(ctx context.Context, req autopoiesis.ToolRequest) (*Recorder, error) {
	id, err := s.StartRun(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: s, runID: id, ctx: context.WithoutCancel(ctx)}, nil
}

// RunID returns the journal ID of the run.
func (r *Recorder) RunID() string { return r.runID }

// Observe stores one stage transition. Journal failures are logged and do
// not interrupt the run.
func (r *Recorder) Observe(e autopoiesis.IterationEvent) {
	step := Step{RunID: r.runID, Iteration: e.Iteration, Stage: e.Stage.String(), Log: e.Log}
	if e.Tool != nil {
		step.Slug = e.Tool.Slug
		step.Code = e.Tool.Code
	}
	if err := r.store.AddStep(r.ctx, step); err != nil {
		logging.StoreWarn("journal step for run %s dropped: %v", r.runID, err)
	}
}

// Finish records the outcome of the run; err is the error Iterate returned.
func (r *Recorder) Finish(result *autopoiesis.IterationResult, err error) error {
	if err != nil {
		return r.store.FinishRun(r.ctx, r.runID, "failed", 0, "", "", err.Error())
	}
	return r.store.FinishRun(r.ctx, r.runID, result.Outcome.String(), result.Iterations,
		result.Tool.Slug, result.Tool.Code, "")
}
