package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/kubev2v/asyncqueue/internal/services"
)

type Handler struct {
	taskSrv *services.TaskService
}

func New(taskSrv *services.TaskService) *Handler {
	return &Handler{
		taskSrv: taskSrv,
	}
}

// RegisterRoutes mounts every endpoint on router. The server hands in the
// /api/v1 group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/tasks", h.SubmitTask)
	router.GET("/tasks", h.GetTasks)
	router.GET("/tasks/:key", h.GetTask)
	router.DELETE("/tasks/:key", h.ForgetTask)
	router.GET("/queue", h.GetQueueStatus)
}
