package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	chrepo "github.com/evalforge/evalforge/api/internal/repository/clickhouse"
)

// TraceHandler serves the trace tree recorded for processed items
type TraceHandler struct {
	logger    *zap.Logger
	traceRepo *chrepo.TraceRepository
}

// NewTraceHandler creates a new trace handler
func NewTraceHandler(logger *zap.Logger, traceRepo *chrepo.TraceRepository) *TraceHandler {
	return &TraceHandler{logger: logger, traceRepo: traceRepo}
}

// GetTrace returns one trace with its spans. A trace with zero spans is
// a valid momentary state while a run is in flight.
func (h *TraceHandler) GetTrace(c *fiber.Ctx) error {
	traceID := c.Params("id")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid trace ID")
	}

	trace, err := h.traceRepo.GetTrace(c.Context(), traceID)
	if err != nil {
		h.logger.Debug("trace not found", zap.String("traceId", traceID), zap.Error(err))
		return errorResponse(c, fiber.StatusNotFound, "Trace not found")
	}

	return c.JSON(trace)
}

// GetSpans returns the spans of a trace in start order
func (h *TraceHandler) GetSpans(c *fiber.Ctx) error {
	traceID := c.Params("id")
	if traceID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid trace ID")
	}

	spans, err := h.traceRepo.ListSpans(c.Context(), traceID)
	if err != nil {
		h.logger.Error("failed to list spans", zap.String("traceId", traceID), zap.Error(err))
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"spans": spans})
}

// RegisterRoutes registers trace routes
func (h *TraceHandler) RegisterRoutes(router fiber.Router) {
	traces := router.Group("/traces")
	traces.Get("/:id", h.GetTrace)
	traces.Get("/:id/spans", h.GetSpans)
}
