package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Experiment represents a stored evaluation experiment: a dataset version
// to read, evaluators to score with, and an optional system under test.
type Experiment struct {
	ID               uuid.UUID      `json:"id"`
	ProjectID        uuid.UUID      `json:"projectId"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	DatasetVersionID uuid.UUID      `json:"datasetVersionId"`
	EvaluatorIDs     []uuid.UUID    `json:"evaluatorIds"`
	Target           TargetSpec     `json:"target"`
	Status           RunStatus      `json:"status"`
	Progress         int            `json:"progress"` // 0-100
	Concurrency      int            `json:"concurrency"`
	Type             ExperimentType `json:"type"`
	RetryMode        RetryMode      `json:"retryMode"`
	CreatedBy        uuid.UUID      `json:"createdBy"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// ExperimentRun represents one execution attempt of an experiment.
// Run numbers increase monotonically per experiment; a retry always
// creates a new run rather than mutating a previous one.
type ExperimentRun struct {
	ID           uuid.UUID  `json:"id"`
	ExperimentID uuid.UUID  `json:"experimentId"`
	RunNumber    int        `json:"runNumber"`
	Status       RunStatus  `json:"status"`
	Progress     int        `json:"progress"` // 0-100
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	JobID        string     `json:"jobId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// TargetSpec is the tagged configuration of the system under test.
// Exactly the sub-config matching Kind is set; all others are nil.
type TargetSpec struct {
	Kind   TargetKind        `json:"kind"`
	API    *APITargetSpec    `json:"api,omitempty"`
	Model  *ModelTargetSpec  `json:"model,omitempty"`
	Prompt *PromptTargetSpec `json:"prompt,omitempty"`
}

// APITargetSpec configures an HTTP endpoint under test
type APITargetSpec struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// ModelTargetSpec configures a model-backed target
type ModelTargetSpec struct {
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
	Params       map[string]any `json:"params,omitempty"`
	CredentialID *uuid.UUID     `json:"credentialId,omitempty"`
}

// PromptTargetSpec configures a stored-prompt-backed target
type PromptTargetSpec struct {
	PromptVersionID uuid.UUID      `json:"promptVersionId"`
	Model           string         `json:"model,omitempty"`
	Params          map[string]any `json:"params,omitempty"`
}

// Configured reports whether a real target is configured (kind != none)
func (t TargetSpec) Configured() bool {
	return t.Kind != TargetKindNone && t.Kind != ""
}

// Validate checks that the spec carries exactly the config its kind requires
func (t TargetSpec) Validate() error {
	switch t.Kind {
	case TargetKindNone, "":
		return nil
	case TargetKindAPI:
		if t.API == nil || t.API.URL == "" {
			return fmt.Errorf("api target requires a url")
		}
		return nil
	case TargetKindModel:
		if t.Model == nil || t.Model.Model == "" {
			return fmt.Errorf("model target requires a model name")
		}
		return nil
	case TargetKindPrompt:
		if t.Prompt == nil || t.Prompt.PromptVersionID == uuid.Nil {
			return fmt.Errorf("prompt target requires a prompt version id")
		}
		return nil
	default:
		return fmt.Errorf("unknown target kind: %s", t.Kind)
	}
}

// ExperimentInput represents input for creating an experiment
type ExperimentInput struct {
	Name             string         `json:"name" validate:"required,min=1,max=100"`
	Description      string         `json:"description,omitempty"`
	DatasetVersionID string         `json:"datasetVersionId" validate:"required,uuid"`
	EvaluatorIDs     []string       `json:"evaluatorIds" validate:"required,min=1,dive,uuid"`
	Target           *TargetSpec    `json:"target,omitempty"`
	Concurrency      *int           `json:"concurrency,omitempty" validate:"omitempty,min=1,max=16"`
	Type             ExperimentType `json:"type,omitempty"`
	RetryMode        RetryMode      `json:"retryMode,omitempty"`
}

// StatusUpdateInput represents input for updating experiment/run status
type StatusUpdateInput struct {
	Status RunStatus `json:"status" validate:"required"`
	RunID  *string   `json:"runId,omitempty" validate:"omitempty,uuid"`
}

// ExperimentFilter represents filter options for querying experiments
type ExperimentFilter struct {
	ProjectID uuid.UUID
	Status    *RunStatus
	Type      *ExperimentType
	Search    string
}

// ExperimentList represents a paginated list of experiments
type ExperimentList struct {
	Experiments []Experiment `json:"experiments"`
	TotalCount  int64        `json:"totalCount"`
	HasMore     bool         `json:"hasMore"`
}
