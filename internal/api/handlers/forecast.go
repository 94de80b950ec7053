// Package handlers maps the floodcast HTTP API onto the forecasting
// service and the catalog repositories.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"floodcast/internal/core"
	"floodcast/internal/forecasting"
	"floodcast/internal/types"
)

const defaultFallbackHours = forecasting.FallbackDefaultHours

// RequestDefaults fill the fields a forecast request leaves out.
type RequestDefaults struct {
	PredictionHours int
	StepHours       float64
}

// DefaultRequestDefaults returns 5 hours at a 1 hour step.
func DefaultRequestDefaults() RequestDefaults {
	return RequestDefaults{PredictionHours: 5, StepHours: 1}
}

// ForecastRunner is the forecasting surface the handler drives.
type ForecastRunner interface {
	RunSensor(ctx context.Context, req forecasting.Request) (*forecasting.Result, error)
	RunBasin(ctx context.Context, basinCode string, onlyActive bool) (*forecasting.BasinSummary, error)
	RunFallback(ctx context.Context, sensorCode string, hours int) (*forecasting.Result, error)
}

// BasinEnqueuer schedules a basin run on the worker queue.
type BasinEnqueuer interface {
	Enqueue(ctx context.Context, basinCode string, onlyActive bool, reason string) (string, error)
}

// ForecastHandler serves the /forecast endpoints.
type ForecastHandler struct {
	runner    ForecastRunner
	queue     BasinEnqueuer
	defaults  RequestDefaults
	validator *core.Validator
	logger    *slog.Logger
}

// NewForecastHandler creates a ForecastHandler. A nil queue disables
// asynchronous basin runs. Zero fields of defaults take the values of
// DefaultRequestDefaults.
func NewForecastHandler(runner ForecastRunner, queue BasinEnqueuer, defaults RequestDefaults, val *core.Validator, logger *slog.Logger) *ForecastHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if val == nil {
		val = core.NewValidator(logger)
	}
	builtin := DefaultRequestDefaults()
	if defaults.PredictionHours == 0 {
		defaults.PredictionHours = builtin.PredictionHours
	}
	if defaults.StepHours == 0 {
		defaults.StepHours = builtin.StepHours
	}
	return &ForecastHandler{
		runner:    runner,
		queue:     queue,
		defaults:  defaults,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the forecast endpoints.
func (h *ForecastHandler) RegisterRoutes(r chi.Router) {
	r.Post("/run", h.HandleRun)
	r.Post("/hourly", h.HandleHourly)
	r.Post("/run-basin", h.HandleRunBasin)
	r.Post("/fallback", h.HandleFallback)
}

type runRequest struct {
	SensorCode      string   `json:"sensor_code" validate:"required,catalog_code"`
	ModelCode       string   `json:"model_code" validate:"omitempty,catalog_code"`
	PredictionHours *int     `json:"prediction_hours"`
	StepHours       *float64 `json:"step_hours"`
}

type hoursRequest struct {
	SensorCode string `json:"sensor_code" validate:"required,catalog_code"`
	Hours      *int   `json:"hours"`
}

type basinRequest struct {
	RiverBasinCode string `json:"river_basin_code" validate:"required,catalog_code"`
	OnlyActive     *bool  `json:"only_active"`
	Async          bool   `json:"async"`
}

type basinAccepted struct {
	RunID          string `json:"run_id"`
	RiverBasinCode string `json:"river_basin_code"`
	Status         string `json:"status"`
}

// HandleRun handles POST /v1/forecast/run.
func (h *ForecastHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !h.decode(w, r, &req) {
		return
	}

	hours, err := hoursOrDefault(req.PredictionHours, h.defaults.PredictionHours)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	step := h.defaults.StepHours
	if req.StepHours != nil {
		step = *req.StepHours
		if !forecasting.ValidStepHours(step) {
			core.Error(w, r, forecasting.StepSizeError(step))
			return
		}
	}

	h.runSensor(w, r, forecasting.Request{
		SensorCode: req.SensorCode,
		ModelCode:  req.ModelCode,
		Hours:      hours,
		StepHours:  step,
	})
}

// HandleHourly handles POST /v1/forecast/hourly: an hourly-step run of the
// sensor's assigned model.
func (h *ForecastHandler) HandleHourly(w http.ResponseWriter, r *http.Request) {
	var req hoursRequest
	if !h.decode(w, r, &req) {
		return
	}
	hours, err := hoursOrDefault(req.Hours, h.defaults.PredictionHours)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	h.runSensor(w, r, forecasting.Request{SensorCode: req.SensorCode, Hours: hours, StepHours: 1})
}

func (h *ForecastHandler) runSensor(w http.ResponseWriter, r *http.Request, req forecasting.Request) {
	res, err := h.runner.RunSensor(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "forecast run failed",
			"sensor_code", req.SensorCode,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// HandleRunBasin handles POST /v1/forecast/run-basin. Async requests are
// queued for the worker and answered with 202.
func (h *ForecastHandler) HandleRunBasin(w http.ResponseWriter, r *http.Request) {
	var req basinRequest
	if !h.decode(w, r, &req) {
		return
	}
	onlyActive := true
	if req.OnlyActive != nil {
		onlyActive = *req.OnlyActive
	}

	if req.Async {
		if h.queue == nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationQueueDisabled,
				"asynchronous basin runs are not configured", nil))
			return
		}
		runID, err := h.queue.Enqueue(r.Context(), req.RiverBasinCode, onlyActive, "api")
		if err != nil {
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, http.StatusAccepted, basinAccepted{
			RunID:          runID,
			RiverBasinCode: req.RiverBasinCode,
			Status:         "queued",
		})
		return
	}

	summary, err := h.runner.RunBasin(r.Context(), req.RiverBasinCode, onlyActive)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, summary)
}

// HandleFallback handles POST /v1/forecast/fallback.
func (h *ForecastHandler) HandleFallback(w http.ResponseWriter, r *http.Request) {
	var req hoursRequest
	if !h.decode(w, r, &req) {
		return
	}
	hours, err := hoursOrDefault(req.Hours, defaultFallbackHours)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	res, err := h.runner.RunFallback(r.Context(), req.SensorCode, hours)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.Data(w, r, http.StatusOK, res)
}

// decode reads and validates the body, writing the error response itself
// when it returns false.
func (h *ForecastHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(w, r, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

func hoursOrDefault(p *int, def int) (int, error) {
	if p == nil {
		return def, nil
	}
	if *p < forecasting.MinHours || *p > forecasting.MaxHours {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationHorizon,
			"hours must be between 1 and 24", nil, map[string]any{"hours": *p})
	}
	return *p, nil
}
