package crawler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"crawld/internal/pkg/logger"
	"crawld/internal/pkg/scheduler"
	"crawld/internal/pkg/server"
)

// Handler handles crawl batch HTTP requests
type Handler struct {
	service *Service
	logger  *logger.Logger
}

// NewHandler creates a new crawler handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// SubmitBatch runs a batch of fetch tasks and returns the aggregate result.
// The request blocks until the batch finishes or the client disconnects;
// disconnecting cancels the unfinished tasks.
func (h *Handler) SubmitBatch(c echo.Context) error {
	var req SubmitBatchRequest
	if err := c.Bind(&req); err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid request body")
	}

	resp, err := h.service.SubmitBatch(c.Request().Context(), &req)
	if err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Failed to run batch")
	}

	return server.SuccessResponse(c, http.StatusOK, resp, "Batch completed")
}

// ListBatches lists archived batch runs, newest first.
func (h *Handler) ListBatches(c echo.Context) error {
	limit, offset := pagination(c)

	batches, err := h.service.ListBatches(limit, offset)
	if err != nil {
		h.logger.Error("Failed to list batches")
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to list batches")
	}

	return server.SuccessResponse(c, http.StatusOK, batches, "Batches retrieved successfully")
}

// GetBatch returns one archived batch run.
func (h *Handler) GetBatch(c echo.Context) error {
	batch, err := h.service.GetBatch(c.Param("id"))
	if err != nil {
		return server.ErrorResponse(c, http.StatusNotFound, err.Error(), "Batch not found")
	}

	return server.SuccessResponse(c, http.StatusOK, batch, "Batch retrieved successfully")
}

// GetBatchTasks returns the archived task records of a batch.
func (h *Handler) GetBatchTasks(c echo.Context) error {
	limit, offset := pagination(c)

	tasks, err := h.service.BatchTasks(c.Param("id"), limit, offset)
	if err != nil {
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to list batch tasks")
	}

	return server.SuccessResponse(c, http.StatusOK, tasks, "Batch tasks retrieved successfully")
}

// ListDeadLetters returns the newest dead-lettered tasks.
func (h *Handler) ListDeadLetters(c echo.Context) error {
	limit, _ := pagination(c)

	entries, err := h.service.DeadLetters(c.Request().Context(), int64(limit))
	if err != nil {
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to list dead letters")
	}

	return server.SuccessResponse(c, http.StatusOK, entries, "Dead letters retrieved successfully")
}

// DispatcherStatus reports dispatcher saturation.
func (h *Handler) DispatcherStatus(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.service.DispatcherStatus(), "Dispatcher status")
}

// CreateJob registers a recurring batch.
func (h *Handler) CreateJob(c echo.Context) error {
	var req CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid request body")
	}

	if err := h.service.RegisterJob(&req); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, scheduler.ErrJobAlreadyExists) {
			status = http.StatusConflict
		}
		return server.ErrorResponse(c, status, err.Error(), "Failed to register job")
	}

	return server.SuccessResponse(c, http.StatusCreated, map[string]string{"name": req.Name}, "Job registered successfully")
}

// ListJobs lists registered recurring batches.
func (h *Handler) ListJobs(c echo.Context) error {
	jobs, err := h.service.Jobs()
	if err != nil {
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to list jobs")
	}

	return server.SuccessResponse(c, http.StatusOK, jobs, "Jobs retrieved successfully")
}

// TriggerJob runs a recurring batch immediately.
func (h *Handler) TriggerJob(c echo.Context) error {
	if err := h.service.TriggerJob(c.Param("name")); err != nil {
		return jobErrorResponse(c, err)
	}
	return server.SuccessResponse(c, http.StatusAccepted, nil, "Job triggered")
}

// PauseJob pauses a recurring batch.
func (h *Handler) PauseJob(c echo.Context) error {
	if err := h.service.PauseJob(c.Param("name")); err != nil {
		return jobErrorResponse(c, err)
	}
	return server.SuccessResponse(c, http.StatusOK, nil, "Job paused")
}

// ResumeJob resumes a paused recurring batch.
func (h *Handler) ResumeJob(c echo.Context) error {
	if err := h.service.ResumeJob(c.Param("name")); err != nil {
		return jobErrorResponse(c, err)
	}
	return server.SuccessResponse(c, http.StatusOK, nil, "Job resumed")
}

// DeleteJob unregisters a recurring batch.
func (h *Handler) DeleteJob(c echo.Context) error {
	if err := h.service.RemoveJob(c.Param("name")); err != nil {
		return jobErrorResponse(c, err)
	}
	return server.SuccessResponse(c, http.StatusOK, nil, "Job removed")
}

func jobErrorResponse(c echo.Context, err error) error {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		status = http.StatusConflict
	}
	return server.ErrorResponse(c, status, err.Error(), "Job operation failed")
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))

	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
