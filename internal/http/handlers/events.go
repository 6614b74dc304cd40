package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gatherly/gatherly/internal/cache"
	"github.com/gatherly/gatherly/internal/config"
	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/http/middlewares"
	"github.com/gatherly/gatherly/internal/service"
	"github.com/gin-gonic/gin"
)

type EventsService interface {
	Create(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error)
	Detail(ctx context.Context, id int64, viewer service.Viewer) (service.EventView, error)
	ListUpcoming(ctx context.Context, filter event.ListFilter) ([]event.Event, event.PageInfo, error)
	Update(ctx context.Context, actor service.Viewer, id int64, req event.UpdateEventRequest) (event.Event, error)
	Delete(ctx context.Context, actor service.Viewer, id int64) error
}

type EventsHandler struct {
	svc   EventsService
	cache cache.Store
	dev   bool
}

func NewEventsHandler(svc EventsService, c cache.Store, dev bool) *EventsHandler {
	return &EventsHandler{svc: svc, cache: c, dev: dev}
}

func viewerFrom(ctx *gin.Context) service.Viewer {
	id, ok := middlewares.UserIDFromContext(ctx)

	if !ok {
		return service.Viewer{}
	}

	role, _ := middlewares.RoleFromContext(ctx)

	return service.Viewer{UserID: id, Role: role}
}

func parseID(ctx *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)

	if err != nil || id < 1 {
		RespondBadRequest(ctx, name+" must be a positive integer")
		return 0, false
	}

	return id, true
}

func (h *EventsHandler) CreateEvent(ctx *gin.Context) {
	actor := viewerFrom(ctx)

	if actor.Anonymous() {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	var req event.CreateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	e, err := h.svc.Create(cctx, actor.UserID, req)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if h.cache != nil {
		h.cache.Clear(ctx.Request.Context())
	}

	RespondMessage(ctx, http.StatusCreated, "event created", e)
}

func (h *EventsHandler) GetEventByID(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	view, err := h.svc.Detail(cctx, id, viewerFrom(ctx))

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	RespondDataWithETag(ctx, http.StatusOK, view)
}

func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}

	return n
}

func (h *EventsHandler) ListUpcoming(ctx *gin.Context) {
	filter := event.ListFilter{
		Page:      parseIntDefault(ctx.Query("page"), 1),
		Limit:     parseIntDefault(ctx.Query("limit"), 10),
		SortBy:    ctx.DefaultQuery("sort_by", "date_time"),
		SortOrder: ctx.DefaultQuery("sort_order", "ASC"),
	}

	if s := ctx.Query("search"); s != "" {
		filter.Search = &s
	}

	if l := ctx.Query("location"); l != "" {
		filter.Location = &l
	}

	if v := ctx.Query("min_capacity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			RespondBadRequest(ctx, "min_capacity must be an integer")
			return
		}
		filter.MinCapacity = &n
	}

	if v := ctx.Query("max_capacity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			RespondBadRequest(ctx, "max_capacity must be an integer")
			return
		}
		filter.MaxCapacity = &n
	}

	if v := ctx.Query("date_from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			RespondBadRequest(ctx, "date_from must be an RFC3339 datetime")
			return
		}
		filter.DateFrom = &t
	}

	if v := ctx.Query("date_to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			RespondBadRequest(ctx, "date_to must be an RFC3339 datetime")
			return
		}
		filter.DateTo = &t
	}

	cacheKey := ""

	if h.cache != nil {
		cacheKey = cache.BuildUpcomingListKey(
			filter.Page, filter.Limit, filter.SortBy, filter.SortOrder,
			filter.Search, filter.Location,
			filter.MinCapacity, filter.MaxCapacity,
			filter.DateFrom, filter.DateTo,
		)

		if body, ok := h.cache.Get(ctx.Request.Context(), cacheKey); ok {
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	items, page, err := h.svc.ListUpcoming(cctx, filter)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	resp := Envelope{Success: true, Data: gin.H{
		"events":     items,
		"pagination": page,
	}}

	if h.cache != nil {
		if body, err := json.Marshal(resp); err == nil {
			h.cache.Set(ctx.Request.Context(), cacheKey, body)
		}
	}

	ctx.JSON(http.StatusOK, resp)
}

func (h *EventsHandler) UpdateEvent(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	actor := viewerFrom(ctx)

	if actor.Anonymous() {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	var req event.UpdateEventRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	e, err := h.svc.Update(cctx, actor, id, req)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if h.cache != nil {
		h.cache.Clear(ctx.Request.Context())
	}

	RespondMessage(ctx, http.StatusOK, "event updated", e)
}

func (h *EventsHandler) DeleteEvent(ctx *gin.Context) {
	id, ok := parseID(ctx, "id")

	if !ok {
		return
	}

	actor := viewerFrom(ctx)

	if actor.Anonymous() {
		RespondUnAuthorized(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)

	defer cancel()

	err := h.svc.Delete(cctx, actor, id)

	if err != nil {
		RespondDomainError(ctx, err, h.dev)
		return
	}

	if h.cache != nil {
		h.cache.Clear(ctx.Request.Context())
	}

	RespondMessage(ctx, http.StatusOK, "event deleted", nil)
}
