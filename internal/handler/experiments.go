package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/evalforge/evalforge/api/internal/domain"
	"github.com/evalforge/evalforge/api/internal/service"
	"github.com/evalforge/evalforge/api/internal/validator"
)

// ExperimentHandler handles experiment-related HTTP requests
type ExperimentHandler struct {
	logger            *zap.Logger
	experimentService *service.ExperimentService
}

// NewExperimentHandler creates a new experiment handler
func NewExperimentHandler(
	logger *zap.Logger,
	experimentService *service.ExperimentService,
) *ExperimentHandler {
	return &ExperimentHandler{
		logger:            logger,
		experimentService: experimentService,
	}
}

// ListExperiments returns experiments for a project
func (h *ExperimentHandler) ListExperiments(c *fiber.Ctx) error {
	projectID := parseQueryUUID(c, "projectId")
	if projectID == nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid project ID")
	}

	filter := &domain.ExperimentFilter{
		ProjectID: *projectID,
		Search:    c.Query("search"),
	}
	if status := c.Query("status"); status != "" {
		s := domain.RunStatus(status)
		if !s.IsValid() {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid status filter")
		}
		filter.Status = &s
	}

	p := ParsePagination(c, 100)
	result, err := h.experimentService.List(c.Context(), filter, p.Limit, p.Offset)
	if err != nil {
		h.logger.Error("failed to list experiments", zap.Error(err))
		return serviceError(c, err)
	}

	return c.JSON(result)
}

// GetExperiment returns a specific experiment
func (h *ExperimentHandler) GetExperiment(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	experiment, err := h.experimentService.Get(c.Context(), experimentID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(experiment)
}

// CreateExperiment creates a new experiment
func (h *ExperimentHandler) CreateExperiment(c *fiber.Ctx) error {
	projectID := parseQueryUUID(c, "projectId")
	if projectID == nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid project ID")
	}
	userID, err := callerID(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Missing or invalid user ID")
	}

	var input domain.ExperimentInput
	if err := c.BodyParser(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validator.Validate(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	experiment, err := h.experimentService.Create(c.Context(), *projectID, userID, &input)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(experiment)
}

// DeleteExperiment removes an experiment and everything under it
func (h *ExperimentHandler) DeleteExperiment(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	if err := h.experimentService.Delete(c.Context(), experimentID); err != nil {
		return serviceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// CreateRun creates and dispatches the next run of an experiment
func (h *ExperimentHandler) CreateRun(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	run, err := h.experimentService.CreateRun(c.Context(), experimentID)
	if err != nil {
		h.logger.Error("failed to create run",
			zap.String("experimentId", experimentID.String()),
			zap.Error(err),
		)
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

// ListRuns returns the runs of an experiment
func (h *ExperimentHandler) ListRuns(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	runs, err := h.experimentService.ListRuns(c.Context(), experimentID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

// UpdateStatus applies a status change to an experiment and optionally
// one of its runs. A stop-like status takes effect at the executor's
// next item boundary.
func (h *ExperimentHandler) UpdateStatus(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	var input domain.StatusUpdateInput
	if err := c.BodyParser(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := validator.Validate(&input); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.experimentService.UpdateStatus(c.Context(), experimentID, &input); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": input.Status})
}

// GetResults returns per-item results for an experiment
func (h *ExperimentHandler) GetResults(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	filter := &domain.ResultFilter{
		ExperimentID: &experimentID,
		RunID:        parseQueryUUID(c, "runId"),
		EvaluatorID:  parseQueryUUID(c, "evaluatorId"),
	}

	results, err := h.experimentService.GetResults(c.Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"results": results})
}

// CalculateAggregates recomputes and returns per-evaluator aggregates
func (h *ExperimentHandler) CalculateAggregates(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	aggregates, err := h.experimentService.CalculateAggregateResults(c.Context(), experimentID)
	if err != nil {
		h.logger.Error("failed to calculate aggregates",
			zap.String("experimentId", experimentID.String()),
			zap.Error(err),
		)
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"aggregates": aggregates})
}

// GetStatistics returns live per-evaluator statistics
func (h *ExperimentHandler) GetStatistics(c *fiber.Ctx) error {
	experimentID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid experiment ID")
	}

	stats, err := h.experimentService.GetStatistics(c.Context(), experimentID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"statistics": stats})
}

// RegisterRoutes registers experiment routes
func (h *ExperimentHandler) RegisterRoutes(router fiber.Router) {
	experiments := router.Group("/experiments")
	experiments.Get("/", h.ListExperiments)
	experiments.Post("/", h.CreateExperiment)
	experiments.Get("/:id", h.GetExperiment)
	experiments.Delete("/:id", h.DeleteExperiment)
	experiments.Post("/:id/runs", h.CreateRun)
	experiments.Get("/:id/runs", h.ListRuns)
	experiments.Patch("/:id/status", h.UpdateStatus)
	experiments.Get("/:id/results", h.GetResults)
	experiments.Post("/:id/aggregates", h.CalculateAggregates)
	experiments.Get("/:id/statistics", h.GetStatistics)
}
