package crawler

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers crawler routes
func RegisterRoutes(e *echo.Echo, handler *Handler) {
	api := e.Group("/api/v1")

	api.POST("/batches", handler.SubmitBatch)
	api.GET("/batches", handler.ListBatches)
	api.GET("/batches/:id", handler.GetBatch)
	api.GET("/batches/:id/tasks", handler.GetBatchTasks)

	api.GET("/dispatcher", handler.DispatcherStatus)
	api.GET("/deadletters", handler.ListDeadLetters)

	api.POST("/jobs", handler.CreateJob)
	api.GET("/jobs", handler.ListJobs)
	api.POST("/jobs/:name/trigger", handler.TriggerJob)
	api.POST("/jobs/:name/pause", handler.PauseJob)
	api.POST("/jobs/:name/resume", handler.ResumeJob)
	api.DELETE("/jobs/:name", handler.DeleteJob)
}
