package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	pgrepo "github.com/evalforge/evalforge/api/internal/repository/postgres"
)

// DatasetHandler serves the dataset read path consumed by experiment
// setup screens. Datasets are written by the import subsystem; this
// surface is read only.
type DatasetHandler struct {
	logger      *zap.Logger
	datasetRepo *pgrepo.DatasetRepository
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(logger *zap.Logger, datasetRepo *pgrepo.DatasetRepository) *DatasetHandler {
	return &DatasetHandler{logger: logger, datasetRepo: datasetRepo}
}

// GetVersion returns one dataset version
func (h *DatasetHandler) GetVersion(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid dataset version ID")
	}

	version, err := h.datasetRepo.GetVersion(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(version)
}

// GetVersionItems returns the items of a dataset version in dataset order
func (h *DatasetHandler) GetVersionItems(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid dataset version ID")
	}

	items, err := h.datasetRepo.GetVersionItems(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"items": items, "totalCount": len(items)})
}

// GetItem returns one dataset item
func (h *DatasetHandler) GetItem(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid dataset item ID")
	}

	item, err := h.datasetRepo.GetItem(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(item)
}

// RegisterRoutes registers dataset routes
func (h *DatasetHandler) RegisterRoutes(router fiber.Router) {
	datasets := router.Group("/datasets")
	datasets.Get("/versions/:id", h.GetVersion)
	datasets.Get("/versions/:id/items", h.GetVersionItems)
	datasets.Get("/items/:id", h.GetItem)
}
