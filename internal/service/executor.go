package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/middleware"
	apperrors "github.com/evalforge/evalforge/api/internal/pkg/errors"
	"github.com/evalforge/evalforge/api/internal/pipeline"
	"github.com/evalforge/evalforge/api/internal/tracing"
)

// ExperimentStore is the experiment/run persistence consumed by the
// execution layer.
type ExperimentStore interface {
	Create(ctx context.Context, experiment *domain.Experiment) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Experiment, error)
	List(ctx context.Context, filter *domain.ExperimentFilter, limit, offset int) (*domain.ExperimentList, error)
	Delete(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, status domain.RunStatus, progress int) error
	CreateRun(ctx context.Context, run *domain.ExperimentRun) error
	GetRunByID(ctx context.Context, id uuid.UUID) (*domain.ExperimentRun, error)
	UpdateRun(ctx context.Context, run *domain.ExperimentRun) error
	ListRuns(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentRun, error)
}

// DatasetStore provides read access to dataset version items
type DatasetStore interface {
	GetVersionItems(ctx context.Context, versionID uuid.UUID) ([]domain.DatasetItem, error)
}

// ResultStore persists per-item results and aggregate summaries
type ResultStore interface {
	Create(ctx context.Context, result *domain.ExperimentResult) error
	List(ctx context.Context, filter *domain.ResultFilter) ([]domain.ExperimentResult, error)
	ListScores(ctx context.Context, experimentID, evaluatorID uuid.UUID) ([]float64, error)
	UpsertAggregate(ctx context.Context, agg *domain.ExperimentAggregateResult) error
	ListAggregates(ctx context.Context, experimentID uuid.UUID) ([]domain.ExperimentAggregateResult, error)
}

// Executor drives one experiment run end to end: it owns the
// status/progress state machine, iterates dataset items sequentially,
// invokes the target and evaluators with spans around each stage, and
// persists one result per (item, evaluator).
//
// Items are processed strictly in dataset order; item i+1 never starts
// before item i's persistence completes. The stop signal is polled at
// item boundaries only, so at most one extra item finishes after a stop
// is requested.
type Executor struct {
	experiments ExperimentStore
	datasets    DatasetStore
	results     ResultStore
	registry    pipeline.EvaluatorRegistry
	evalClient  pipeline.EvaluatorClient
	target      *pipeline.TargetAdapter
	tracer      *tracing.Tracer
	stop        StopSignal
	logger      *zap.Logger
}

// NewExecutor creates an executor
func NewExecutor(
	experiments ExperimentStore,
	datasets DatasetStore,
	results ResultStore,
	registry pipeline.EvaluatorRegistry,
	evalClient pipeline.EvaluatorClient,
	target *pipeline.TargetAdapter,
	tracer *tracing.Tracer,
	stop StopSignal,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		experiments: experiments,
		datasets:    datasets,
		results:     results,
		registry:    registry,
		evalClient:  evalClient,
		target:      target,
		tracer:      tracer,
		stop:        stop,
		logger:      logger,
	}
}

// Execute runs one (experiment, run) pair to a terminal status. It is
// a safe no-op when either entity is already stopped. Any failure that
// escapes the item loop marks both entities failed, records the message
// on the run, and is returned to the caller so the job layer can report
// it.
func (e *Executor) Execute(ctx context.Context, experimentID, runID uuid.UUID) (err error) {
	experiment, err := e.experiments.GetByID(ctx, experimentID)
	if err != nil {
		return err
	}
	run, err := e.experiments.GetRunByID(ctx, runID)
	if err != nil {
		return err
	}

	if experiment.Status == domain.RunStatusStopped || run.Status == domain.RunStatusStopped {
		e.logger.Info("run already stopped, nothing to execute",
			zap.String("experiment_id", experimentID.String()),
			zap.String("run_id", runID.String()),
		)
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			e.markFailed(ctx, experiment, run, fmt.Sprintf("panic: %v", r))
			panic(r)
		}
		if err != nil {
			e.markFailed(ctx, experiment, run, err.Error())
		}
	}()

	return e.run(ctx, experiment, run)
}

func (e *Executor) run(ctx context.Context, experiment *domain.Experiment, run *domain.ExperimentRun) error {
	// Every (re)start visibly restarts the progress bar.
	if err := e.experiments.UpdateProgress(ctx, experiment.ID, domain.RunStatusRunning, 0); err != nil {
		return fmt.Errorf("failed to mark experiment running: %w", err)
	}
	now := time.Now()
	run.Status = domain.RunStatusRunning
	run.Progress = 0
	run.StartedAt = &now
	if err := e.experiments.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}

	items, err := e.datasets.GetVersionItems(ctx, experiment.DatasetVersionID)
	if err != nil {
		return err
	}

	if len(items) == 0 {
		e.logger.Info("dataset version has no items",
			zap.String("experiment_id", experiment.ID.String()),
			zap.String("dataset_version_id", experiment.DatasetVersionID.String()),
		)
		return e.finish(ctx, experiment, run, domain.RunStatusCompleted, 100)
	}

	// A stop may have raced item resolution.
	if stopped, err := e.stopped(ctx, experiment, run); err != nil {
		return err
	} else if stopped {
		return e.finish(ctx, experiment, run, domain.RunStatusStopped, run.Progress)
	}

	evaluators, err := e.resolveEvaluators(ctx, experiment)
	if err != nil {
		return err
	}

	total := len(items)
	for i := range items {
		if stopped, err := e.stopped(ctx, experiment, run); err != nil {
			return err
		} else if stopped {
			e.logger.Info("stop honored at item boundary",
				zap.String("experiment_id", experiment.ID.String()),
				zap.String("run_id", run.ID.String()),
				zap.Int("processed", i),
				zap.Int("total", total),
			)
			return e.finish(ctx, experiment, run, domain.RunStatusStopped, run.Progress)
		}

		if err := e.processItem(ctx, experiment, run, &items[i], evaluators); err != nil {
			return err
		}
		middleware.RecordItemProcessed()

		// The terminal write belongs to finish alone; the loop only
		// records intermediate progress.
		if i+1 == total {
			break
		}
		progress := progressFor(i+1, total)
		if err := e.experiments.UpdateProgress(ctx, experiment.ID, domain.RunStatusRunning, progress); err != nil {
			return fmt.Errorf("failed to update experiment progress: %w", err)
		}
		run.Progress = progress
		if err := e.experiments.UpdateRun(ctx, run); err != nil {
			return fmt.Errorf("failed to update run progress: %w", err)
		}
	}

	return e.finish(ctx, experiment, run, domain.RunStatusCompleted, 100)
}

// processItem runs the per-item pipeline: root span, field extraction,
// target invocation, evaluator invocations, result persistence. Target
// and evaluator failures are recorded on results and never abort the
// item; only infrastructure failures (result persistence, a broken turn
// structure) escape.
func (e *Executor) processItem(
	ctx context.Context,
	experiment *domain.Experiment,
	run *domain.ExperimentRun,
	item *domain.DatasetItem,
	evaluators []*domain.Evaluator,
) error {
	root := e.tracer.StartSpan("experiment.item",
		tracing.WithKind(domain.SpanKindItem),
		tracing.WithAttributes(map[string]any{
			"experiment_id": experiment.ID.String(),
			"run_id":        run.ID.String(),
			"item_id":       item.ID.String(),
		}),
	)
	// Root-first: the trace row exists before any child span persists.
	e.tracer.MaterializeTrace(ctx, root)
	defer e.tracer.Finish(ctx, root)

	fields, err := pipeline.ExtractFields(item)
	if err != nil {
		root.SetError(err.Error())
		return err
	}
	if len(fields) == 0 {
		e.logger.Warn("item yielded no extracted fields",
			zap.String("item_id", item.ID.String()),
		)
	}

	targetSpan := e.tracer.StartSpan("target.invoke",
		tracing.WithTraceID(root.TraceID),
		tracing.WithParent(root.SpanID),
		tracing.WithKind(domain.SpanKindTarget),
		tracing.WithAttributes(map[string]any{
			"target_kind": string(experiment.Target.Kind),
		}),
	)
	output, targetErr := e.target.Invoke(ctx, experiment.Target, fields, item)
	if targetErr != nil {
		targetSpan.SetError(targetErr.Error())
		middleware.RecordTargetCall(string(experiment.Target.Kind), "error")
	} else {
		middleware.RecordTargetCall(string(experiment.Target.Kind), "ok")
	}
	e.tracer.Finish(ctx, targetSpan)

	// Scoring a configured target's own failure is meaningless; record
	// one failed result per evaluator instead of spending evaluator
	// calls. A target-less experiment always reaches evaluation.
	if targetErr != nil && experiment.Target.Configured() {
		root.SetError(targetErr.Error())
		for _, ev := range evaluators {
			result := &domain.ExperimentResult{
				ID:           uuid.New(),
				ExperimentID: experiment.ID,
				RunID:        run.ID,
				ItemID:       item.ID,
				EvaluatorID:  ev.ID,
				ActualOutput: output,
				ErrorMessage: fmt.Sprintf("target invocation failed: %v", targetErr),
				TraceID:      root.TraceID,
				CreatedAt:    time.Now(),
			}
			if err := e.results.Create(ctx, result); err != nil {
				return fmt.Errorf("failed to persist result: %w", err)
			}
		}
		root.SetAttribute("evaluators_skipped", len(evaluators))
		return nil
	}

	var failures int
	for _, ev := range evaluators {
		result, err := e.runEvaluator(ctx, experiment, run, item, ev, fields, output, root)
		if err != nil {
			return err
		}
		if result.ErrorMessage != "" {
			failures++
		}
	}

	root.SetAttribute("evaluator_count", len(evaluators))
	root.SetAttribute("evaluator_failures", failures)
	if failures > 0 && failures == len(evaluators) {
		root.SetError("all evaluators failed")
	}
	return nil
}

// runEvaluator builds the evaluator's input, invokes it, and persists
// one result. Evaluator-local failures land on the result as a null
// score plus error text; the returned error is reserved for persistence
// failures.
func (e *Executor) runEvaluator(
	ctx context.Context,
	experiment *domain.Experiment,
	run *domain.ExperimentRun,
	item *domain.DatasetItem,
	evaluator *domain.Evaluator,
	fields map[string]string,
	targetOutput string,
	root *domain.Span,
) (*domain.ExperimentResult, error) {
	span := e.tracer.StartSpan("evaluator.run",
		tracing.WithTraceID(root.TraceID),
		tracing.WithParent(root.SpanID),
		tracing.WithKind(domain.SpanKindEvaluator),
		tracing.WithAttributes(map[string]any{
			"evaluator_id":   evaluator.ID.String(),
			"evaluator_kind": string(evaluator.Kind),
		}),
	)
	defer e.tracer.Finish(ctx, span)

	result := &domain.ExperimentResult{
		ID:           uuid.New(),
		ExperimentID: experiment.ID,
		RunID:        run.ID,
		ItemID:       item.ID,
		EvaluatorID:  evaluator.ID,
		ActualOutput: targetOutput,
		TraceID:      root.TraceID,
		CreatedAt:    time.Now(),
	}

	inputData, err := e.buildInput(evaluator.Kind, fields, targetOutput)
	if err != nil {
		span.SetError(err.Error())
		result.ErrorMessage = err.Error()
		if perr := e.results.Create(ctx, result); perr != nil {
			return nil, fmt.Errorf("failed to persist result: %w", perr)
		}
		return result, nil
	}

	started := time.Now()
	out, err := e.evalClient.Run(ctx, evaluator.VersionID, inputData)
	elapsed := time.Since(started)
	result.LatencyMs = float64(elapsed) / float64(time.Millisecond)

	outcome := "ok"
	if err != nil || (out != nil && out.Error != nil) {
		outcome = "error"
	}
	middleware.RecordEvaluatorCall(string(evaluator.Kind), outcome, elapsed)

	switch {
	case err != nil:
		span.SetError(err.Error())
		result.ErrorMessage = err.Error()
	default:
		out = pipeline.NormalizeOutput(out)
		result.Score = out.Score
		result.Reason = out.Reason
		if out.Error != nil {
			span.SetError(out.Error.Message)
			result.ErrorMessage = out.Error.Message
		} else {
			span.SetAttribute("input_tokens", out.Usage.InputTokens)
			span.SetAttribute("output_tokens", out.Usage.OutputTokens)
		}
	}

	if perr := e.results.Create(ctx, result); perr != nil {
		return nil, fmt.Errorf("failed to persist result: %w", perr)
	}
	return result, nil
}

func (e *Executor) buildInput(kind domain.EvaluatorKind, fields map[string]string, targetOutput string) (any, error) {
	switch kind {
	case domain.EvaluatorKindCode:
		return pipeline.BuildCodeInput(fields, targetOutput)
	case domain.EvaluatorKindPrompt:
		return pipeline.BuildPromptInput(fields, targetOutput), nil
	default:
		return nil, fmt.Errorf("unknown evaluator kind: %s", kind)
	}
}

func (e *Executor) resolveEvaluators(ctx context.Context, experiment *domain.Experiment) ([]*domain.Evaluator, error) {
	evaluators := make([]*domain.Evaluator, 0, len(experiment.EvaluatorIDs))
	for _, id := range experiment.EvaluatorIDs {
		ev, err := e.registry.GetEvaluator(ctx, id)
		if err != nil {
			return nil, err
		}
		evaluators = append(evaluators, ev)
	}
	if len(evaluators) == 0 {
		return nil, apperrors.Validation("experiment has no evaluators configured")
	}
	return evaluators, nil
}

// stopped consults the explicit stop signal and, as a fallback, the
// persisted statuses, so a status write that bypassed the signal still
// stops the run.
func (e *Executor) stopped(ctx context.Context, experiment *domain.Experiment, run *domain.ExperimentRun) (bool, error) {
	tripped, err := e.stop.Stopped(ctx, experiment.ID, run.ID)
	if err != nil {
		e.logger.Warn("stop signal check failed", zap.Error(err))
	} else if tripped {
		return true, nil
	}

	current, err := e.experiments.GetByID(ctx, experiment.ID)
	if err != nil {
		return false, err
	}
	if current.Status.StopRequested() {
		return true, nil
	}
	currentRun, err := e.experiments.GetRunByID(ctx, run.ID)
	if err != nil {
		return false, err
	}
	return currentRun.Status.StopRequested(), nil
}

func (e *Executor) finish(ctx context.Context, experiment *domain.Experiment, run *domain.ExperimentRun, status domain.RunStatus, progress int) error {
	if err := e.experiments.UpdateProgress(ctx, experiment.ID, status, progress); err != nil {
		return fmt.Errorf("failed to finalize experiment status: %w", err)
	}
	now := time.Now()
	run.Status = status
	run.Progress = progress
	run.CompletedAt = &now
	if err := e.experiments.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to finalize run status: %w", err)
	}

	middleware.RecordRunFinished(string(status))
	e.logger.Info("run finished",
		zap.String("experiment_id", experiment.ID.String()),
		zap.String("run_id", run.ID.String()),
		zap.String("status", string(status)),
		zap.Int("progress", progress),
	)
	return nil
}

// markFailed is the run-fatal path: both entities end failed and the
// message lands on the run. Persisted results up to the failure remain
// queryable.
func (e *Executor) markFailed(ctx context.Context, experiment *domain.Experiment, run *domain.ExperimentRun, msg string) {
	if err := e.experiments.UpdateStatus(ctx, experiment.ID, domain.RunStatusFailed); err != nil {
		e.logger.Error("failed to mark experiment failed", zap.Error(err))
	}
	now := time.Now()
	run.Status = domain.RunStatusFailed
	run.ErrorMessage = msg
	run.CompletedAt = &now
	if err := e.experiments.UpdateRun(ctx, run); err != nil {
		e.logger.Error("failed to mark run failed", zap.Error(err))
	}

	middleware.RecordRunFinished(string(domain.RunStatusFailed))
	e.logger.Error("run failed",
		zap.String("experiment_id", experiment.ID.String()),
		zap.String("run_id", run.ID.String()),
		zap.String("error", msg),
	)
}

// progressFor reports percent complete after processed of total items.
// Ceiling rounding keeps the bar moving from the first item: 3 items
// report 34, 67, 100.
func progressFor(processed, total int) int {
	if total <= 0 {
		return 100
	}
	return (processed*100 + total - 1) / total
}
