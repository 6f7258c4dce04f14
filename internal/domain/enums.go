package domain

// RunStatus represents the lifecycle state shared by experiments and runs
type RunStatus string

const (
	RunStatusPending     RunStatus = "pending"
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusStopped     RunStatus = "stopped"
	RunStatusTerminating RunStatus = "terminating"
	RunStatusTerminated  RunStatus = "terminated"
)

// IsValid checks if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted,
		RunStatusFailed, RunStatusStopped, RunStatusTerminating, RunStatusTerminated:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusStopped, RunStatusTerminated:
		return true
	}
	return false
}

// StopRequested reports whether a stop has been requested or honored
func (s RunStatus) StopRequested() bool {
	return s == RunStatusStopped || s == RunStatusTerminating || s == RunStatusTerminated
}

// CanTransitionTo reports whether the transition s -> next is allowed
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case RunStatusPending:
		return next == RunStatusRunning || next == RunStatusStopped || next == RunStatusTerminating
	case RunStatusRunning:
		return next != RunStatusPending && next.IsValid()
	case RunStatusTerminating:
		return next == RunStatusStopped || next == RunStatusTerminated || next == RunStatusFailed
	}
	return false
}

// ExperimentType distinguishes offline dataset runs from online evaluation
type ExperimentType string

const (
	ExperimentTypeOffline ExperimentType = "offline"
	ExperimentTypeOnline  ExperimentType = "online"
)

// IsValid checks if the experiment type is valid
func (t ExperimentType) IsValid() bool {
	switch t {
	case ExperimentTypeOffline, ExperimentTypeOnline:
		return true
	}
	return false
}

// RetryMode represents the requested retry strategy for a run.
// Only a full re-run is honored by the executor today; the other
// modes are accepted and recorded but execute as a full re-run.
type RetryMode string

const (
	RetryModeFull        RetryMode = "full"
	RetryModeFailureOnly RetryMode = "failure_only"
	RetryModeTargetItems RetryMode = "target_items"
)

// IsValid checks if the retry mode is valid
func (m RetryMode) IsValid() bool {
	switch m {
	case RetryModeFull, RetryModeFailureOnly, RetryModeTargetItems:
		return true
	}
	return false
}

// EvaluatorKind represents the kind of evaluator
type EvaluatorKind string

const (
	EvaluatorKindCode   EvaluatorKind = "code"
	EvaluatorKindPrompt EvaluatorKind = "prompt"
)

// IsValid checks if the evaluator kind is valid
func (k EvaluatorKind) IsValid() bool {
	switch k {
	case EvaluatorKindCode, EvaluatorKindPrompt:
		return true
	}
	return false
}

// TargetKind represents the kind of system under test
type TargetKind string

const (
	TargetKindNone   TargetKind = "none"
	TargetKindAPI    TargetKind = "api"
	TargetKindModel  TargetKind = "model"
	TargetKindPrompt TargetKind = "prompt"
)

// IsValid checks if the target kind is valid
func (k TargetKind) IsValid() bool {
	switch k {
	case TargetKindNone, TargetKindAPI, TargetKindModel, TargetKindPrompt:
		return true
	}
	return false
}

// SpanStatus represents the final status of a span
type SpanStatus string

const (
	SpanStatusUnset SpanStatus = ""
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// SpanKind classifies what a span measures
type SpanKind string

const (
	SpanKindInternal  SpanKind = "internal"
	SpanKindItem      SpanKind = "item"
	SpanKindTarget    SpanKind = "target"
	SpanKindEvaluator SpanKind = "evaluator"
)

// IsValid checks if the span kind is valid
func (k SpanKind) IsValid() bool {
	switch k {
	case SpanKindInternal, SpanKindItem, SpanKindTarget, SpanKindEvaluator:
		return true
	}
	return false
}
