package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"floodcast/internal/core"
	"floodcast/internal/types"
)

// ModelLister lists the model catalog.
type ModelLister interface {
	List(ctx context.Context) ([]types.Model, error)
}

// SensorLister lists every sensor.
type SensorLister interface {
	List(ctx context.Context) ([]types.Sensor, error)
}

// RiverBasinLister lists the river basins.
type RiverBasinLister interface {
	List(ctx context.Context) ([]types.RiverBasin, error)
}

// CatalogHandler serves read-only catalog listings.
type CatalogHandler struct {
	models  ModelLister
	sensors SensorLister
	basins  RiverBasinLister
	logger  *slog.Logger
}

func NewCatalogHandler(models ModelLister, sensors SensorLister, basins RiverBasinLister, logger *slog.Logger) *CatalogHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogHandler{models: models, sensors: sensors, basins: basins, logger: logger}
}

// RegisterRoutes mounts the catalog endpoints.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.HandleListModels)
	r.Get("/sensors", h.HandleListSensors)
	r.Get("/river-basins", h.HandleListRiverBasins)
}

func (h *CatalogHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	listAll(w, r, h.models.List)
}

func (h *CatalogHandler) HandleListSensors(w http.ResponseWriter, r *http.Request) {
	listAll(w, r, h.sensors.List)
}

func (h *CatalogHandler) HandleListRiverBasins(w http.ResponseWriter, r *http.Request) {
	listAll(w, r, h.basins.List)
}

// listAll writes the listing, encoding an empty catalog as [] rather than null.
func listAll[T any](w http.ResponseWriter, r *http.Request, list func(context.Context) ([]T, error)) {
	items, err := list(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	core.Data(w, r, http.StatusOK, items)
}
