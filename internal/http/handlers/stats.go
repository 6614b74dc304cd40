package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gatherly/gatherly/internal/service"
	"github.com/gin-gonic/gin"
)

type StatsService interface {
	Snapshot(ctx context.Context, eventID int64) (service.StatsView, error)
}

type StatsHandler struct {
	svc StatsService
	dev bool
}

func NewStatsHandler(svc StatsService, dev bool) *StatsHandler {
	return &StatsHandler{svc: svc, dev: dev}
}

func (h *StatsHandler) GetEventStats(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	view, err := h.svc.Snapshot(cctx, id)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	RespondDataWithETag(ctx, http.StatusOK, view)
}
