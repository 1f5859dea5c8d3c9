package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/kubev2v/asyncqueue/api/v1"
	"github.com/kubev2v/asyncqueue/internal/models"
	"github.com/kubev2v/asyncqueue/internal/services"
	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
	srvErrors "github.com/kubev2v/asyncqueue/pkg/errors"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// nginx convention for a request abandoned by the client
	statusClientClosedRequest = 499
)

// SubmitTask runs a task, or joins the run already in flight for its key
// (POST /tasks)
func (h *Handler) SubmitTask(c *gin.Context) {
	var req v1.TaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		return
	}

	result, err := h.taskSrv.Submit(c.Request.Context(), models.Task{Key: req.Key, Payload: req.Payload})
	if err != nil {
		switch {
		case srvErrors.IsInvalidTaskError(err):
			c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		case errors.Is(err, asyncqueue.ErrQueueStopped):
			c.JSON(http.StatusServiceUnavailable, v1.Error{Error: err.Error()})
		case errors.Is(err, context.Canceled):
			// client went away; the task keeps running and is recorded
			c.AbortWithStatus(statusClientClosedRequest)
		case errors.Is(err, context.DeadlineExceeded):
			c.JSON(http.StatusGatewayTimeout, v1.Error{Error: "timed out waiting for the task"})
		default:
			zap.S().Named("task_handler").Warnw("task failed", "key", req.Key, "error", err)
			c.JSON(http.StatusInternalServerError, v1.Error{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, v1.NewTaskResultFromModel(*result))
}

// GetTasks returns stored executions with filtering and pagination
// (GET /tasks)
func (h *Handler) GetTasks(c *gin.Context) {
	var params v1.GetTasksParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, v1.Error{Error: err.Error()})
		return
	}

	page := 1
	if params.Page != nil && *params.Page > 0 {
		page = *params.Page
	}
	pageSize := defaultPageSize
	if params.PageSize != nil && *params.PageSize > 0 {
		pageSize = min(*params.PageSize, maxPageSize)
	}

	result, err := h.taskSrv.List(c.Request.Context(), services.TaskListParams{
		Failed: params.Failed,
		Limit:  uint64(pageSize),
		Offset: uint64((page - 1) * pageSize),
	})
	if err != nil {
		zap.S().Named("task_handler").Errorw("failed to list tasks", "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error{Error: "failed to list tasks"})
		return
	}

	pageCount := (result.Total + pageSize - 1) / pageSize
	if pageCount == 0 {
		pageCount = 1
	}

	tasks := make([]v1.TaskRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		tasks = append(tasks, v1.NewTaskRecordFromModel(rec))
	}

	c.JSON(http.StatusOK, v1.TaskListResponse{
		Page:      page,
		PageCount: pageCount,
		Total:     result.Total,
		Tasks:     tasks,
	})
}

// GetTask returns the stored execution for a key
// (GET /tasks/{key})
func (h *Handler) GetTask(c *gin.Context) {
	key := c.Param("key")

	rec, err := h.taskSrv.Get(c.Request.Context(), key)
	if err != nil {
		if srvErrors.IsResourceNotFoundError(err) {
			c.JSON(http.StatusNotFound, v1.Error{Error: err.Error()})
			return
		}
		zap.S().Named("task_handler").Errorw("failed to get task", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error{Error: "failed to get task"})
		return
	}

	c.JSON(http.StatusOK, v1.NewTaskRecordFromModel(*rec))
}

// ForgetTask drops the cached outcome so the key runs again on next submit
// (DELETE /tasks/{key})
func (h *Handler) ForgetTask(c *gin.Context) {
	key := c.Param("key")

	if err := h.taskSrv.Forget(c.Request.Context(), key); err != nil {
		zap.S().Named("task_handler").Errorw("failed to forget task", "key", key, "error", err)
		c.JSON(http.StatusInternalServerError, v1.Error{Error: "failed to forget task"})
		return
	}

	c.Status(http.StatusNoContent)
}

// GetQueueStatus returns the queue counters
// (GET /queue)
func (h *Handler) GetQueueStatus(c *gin.Context) {
	var status v1.QueueStatus
	status.FromModel(h.taskSrv.Stats())
	c.JSON(http.StatusOK, status)
}
