package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	env        string
	readyCheck func() error
}

func NewHealthHandler(env string, readyCheck func() error) *HealthHandler {
	return &HealthHandler{env: env, readyCheck: readyCheck}
}

func (h *HealthHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":      "success",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": h.env,
	})
}

func (h *HealthHandler) Ready(ctx *gin.Context) {
	if h.readyCheck != nil {
		if err := h.readyCheck(); err != nil {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
			})
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
}
