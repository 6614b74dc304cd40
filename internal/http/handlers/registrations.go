package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gatherly/gatherly/internal/cache"
	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/engine"
	"github.com/gin-gonic/gin"
)

type Registrar interface {
	Register(ctx context.Context, userID, eventID int64) (engine.Result, error)
	Cancel(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error
	RegisterBatch(ctx context.Context, eventID int64, userIDs []int64) ([]engine.BatchOutcome, error)
}

type RegistrationsHandler struct {
	eng   Registrar
	cache cache.Store
	dev   bool
}

func NewRegistrationsHandler(eng Registrar, c cache.Store, dev bool) *RegistrationsHandler {
	return &RegistrationsHandler{eng: eng, cache: c, dev: dev}
}

// Register signs the caller up. An elevated actor may register another user
// by sending {"user_id": n}.
func (h *RegistrationsHandler) Register(ctx *gin.Context) {
	eventID, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	actor := viewerFrom(ctx)

	if actor.Anonymous() {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	targetID := actor.UserID

	if ctx.Request.ContentLength > 0 {
		var req registration.RegisterRequest

		if !BindJSON(ctx, &req) {
			return
		}

		if req.UserID != 0 && req.UserID != actor.UserID {
			if !actor.Elevated() {
				RespondForbidden(ctx, "Only admins may register another user")
				return
			}

			targetID = req.UserID
		}
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	res, err := h.eng.Register(cctx, targetID, eventID)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if h.cache != nil {
		h.cache.Clear(ctx.Request.Context())
	}

	if res.Reactivated {
		RespondMessage(ctx, http.StatusOK, "registration reactivated", gin.H{
			"registration_id": res.RegistrationID,
		})
		return
	}

	RespondMessage(ctx, http.StatusCreated, "registered", gin.H{
		"registration_id": res.RegistrationID,
	})
}

func (h *RegistrationsHandler) Cancel(ctx *gin.Context) {
	eventID, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	targetID, ok := parseID(ctx, "userId")

	if !ok {
		return
	}

	actor := viewerFrom(ctx)

	if actor.Anonymous() {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)

	defer cancel()

	err := h.eng.Cancel(cctx, actor.UserID, targetID, eventID, actor.Elevated())

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if h.cache != nil {
		h.cache.Clear(ctx.Request.Context())
	}

	RespondMessage(ctx, http.StatusOK, "registration cancelled", nil)
}

// RegisterBatch admits a list of users in one transaction. Admin only,
// enforced by the router.
func (h *RegistrationsHandler) RegisterBatch(ctx *gin.Context) {
	eventID, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	var req registration.BatchRegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(10 * time.Second)

	defer cancel()

	outcomes, err := h.eng.RegisterBatch(cctx, eventID, req.UserIDs)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if h.cache != nil {
		h.cache.Clear(ctx.Request.Context())
	}

	RespondData(ctx, http.StatusOK, gin.H{"results": outcomes})
}
