package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/domain/event"
	"github.com/gatherly/gatherly/internal/http/handlers"
	"github.com/gatherly/gatherly/internal/service"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

// Fake implementation of the handlers.EventsService interface

type fakeEventsService struct {
	createFn func(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error)
	detailFn func(ctx context.Context, id int64, viewer service.Viewer) (service.EventView, error)
	listFn   func(ctx context.Context, filter event.ListFilter) ([]event.Event, event.PageInfo, error)
	updateFn func(ctx context.Context, actor service.Viewer, id int64, req event.UpdateEventRequest) (event.Event, error)
	deleteFn func(ctx context.Context, actor service.Viewer, id int64) error
}

func (f *fakeEventsService) Create(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error) {
	if f.createFn != nil {
		return f.createFn(ctx, ownerID, req)
	}
	return event.Event{}, nil
}

func (f *fakeEventsService) Detail(ctx context.Context, id int64, viewer service.Viewer) (service.EventView, error) {
	if f.detailFn != nil {
		return f.detailFn(ctx, id, viewer)
	}
	return service.EventView{}, nil
}

func (f *fakeEventsService) ListUpcoming(ctx context.Context, filter event.ListFilter) ([]event.Event, event.PageInfo, error) {
	if f.listFn != nil {
		return f.listFn(ctx, filter)
	}
	return []event.Event{}, event.PageInfo{}, nil
}

func (f *fakeEventsService) Update(ctx context.Context, actor service.Viewer, id int64, req event.UpdateEventRequest) (event.Event, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, actor, id, req)
	}
	return event.Event{}, nil
}

func (f *fakeEventsService) Delete(ctx context.Context, actor service.Viewer, id int64) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, actor, id)
	}
	return nil
}

// identity stubs the auth middleware by planting the context keys it would set.
func identity(userID int64, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("auth.userID", userID)
		c.Set("auth.role", role)
		c.Next()
	}
}

func setupRouter(method, path string, mws []gin.HandlerFunc, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	hs := append(append([]gin.HandlerFunc{}, mws...), h)
	r.Handle(method, path, hs...)

	return r
}

func doJSON(r *gin.Engine, method, url, body string) *httptest.ResponseRecorder {
	var req *http.Request

	if body != "" {
		req = httptest.NewRequest(method, url, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateEventHandler(t *testing.T) {
	validBody := `{
		"title": "Go Meetup",
		"date_time": "` + t0.Add(14*24*time.Hour).Format(time.RFC3339) + `",
		"capacity": 50
	}`

	tests := []struct {
		name           string
		body           string
		authed         bool
		svcSetUp       func(*fakeEventsService)
		wantStatusCode int
	}{
		{
			name:   "success",
			body:   validBody,
			authed: true,
			svcSetUp: func(f *fakeEventsService) {
				f.createFn = func(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error) {
					return event.Event{ID: 1, Title: req.Title, Capacity: req.Capacity, CreatedBy: ownerID, IsActive: true}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "missing_identity",
			body:           validBody,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "missing_required_fields",
			body:           `{"title": ""}`,
			authed:         true,
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "semantic_validation_error",
			body:   validBody,
			authed: true,
			svcSetUp: func(f *fakeEventsService) {
				f.createFn = func(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error) {
					return event.Event{}, &event.FieldError{Field: "date_time", Message: "must be at least 1h0m0s in the future"}
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "scheduling_conflict",
			body:   validBody,
			authed: true,
			svcSetUp: func(f *fakeEventsService) {
				f.createFn = func(ctx context.Context, ownerID int64, req event.CreateEventRequest) (event.Event, error) {
					return event.Event{}, event.ErrScheduleConflict
				}
			},
			wantStatusCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventsService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewEventsHandler(svc, nil, true)

			var mws []gin.HandlerFunc
			if tt.authed {
				mws = append(mws, identity(1, "user"))
			}

			r := setupRouter(http.MethodPost, "/api/events", mws, h.CreateEvent)

			w := doJSON(r, http.MethodPost, "/api/events", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			var env handlers.Envelope
			if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
				t.Fatalf("invalid envelope: %v", err)
			}

			if wantSuccess := tt.wantStatusCode < 400; env.Success != wantSuccess {
				t.Fatalf("success flag %v for status %d", env.Success, w.Code)
			}
		})
	}
}

func TestGetEventByIDHandler(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		svcSetUp       func(*fakeEventsService)
		wantStatusCode int
	}{
		{
			name: "success",
			url:  "/api/events/5",
			svcSetUp: func(f *fakeEventsService) {
				f.detailFn = func(ctx context.Context, id int64, viewer service.Viewer) (service.EventView, error) {
					return service.EventView{
						Event:          event.Event{ID: id, Title: "Launch", Capacity: 10, CurrentRegistrations: 4, IsActive: true},
						AvailableSpots: 6,
					}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "non_numeric_id",
			url:            "/api/events/abc",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "not_found",
			url:  "/api/events/5",
			svcSetUp: func(f *fakeEventsService) {
				f.detailFn = func(ctx context.Context, id int64, viewer service.Viewer) (service.EventView, error) {
					return service.EventView{}, event.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventsService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewEventsHandler(svc, nil, true)

			r := setupRouter(http.MethodGet, "/api/events/:id", nil, h.GetEventByID)

			w := doJSON(r, http.MethodGet, tt.url, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestGetEventETag(t *testing.T) {
	svc := &fakeEventsService{
		detailFn: func(ctx context.Context, id int64, viewer service.Viewer) (service.EventView, error) {
			return service.EventView{
				Event: event.Event{ID: id, Title: "Launch", IsActive: true},
			}, nil
		},
	}

	h := handlers.NewEventsHandler(svc, nil, true)
	r := setupRouter(http.MethodGet, "/api/events/:id", nil, h.GetEventByID)

	w := doJSON(r, http.MethodGet, "/api/events/5", "")

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing etag")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events/5", nil)
	req.Header.Set("If-None-Match", etag)
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("got status %d, want 304", w2.Code)
	}
}

func TestListUpcomingHandler(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		svcSetUp       func(*fakeEventsService)
		wantStatusCode int
	}{
		{
			name: "success_with_filters",
			url:  "/api/events/upcoming?page=2&limit=5&search=go&sort_by=capacity&sort_order=DESC",
			svcSetUp: func(f *fakeEventsService) {
				f.listFn = func(ctx context.Context, filter event.ListFilter) ([]event.Event, event.PageInfo, error) {
					if filter.Page != 2 || filter.Limit != 5 {
						t.Fatalf("filter not threaded: %+v", filter)
					}
					if filter.Search == nil || *filter.Search != "go" {
						t.Fatalf("search not threaded: %+v", filter)
					}
					return []event.Event{{ID: 1}}, event.NewPageInfo(2, 5, 11), nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "invalid_limit_rejected_by_service",
			url:  "/api/events/upcoming?limit=101",
			svcSetUp: func(f *fakeEventsService) {
				f.listFn = func(ctx context.Context, filter event.ListFilter) ([]event.Event, event.PageInfo, error) {
					return nil, event.PageInfo{}, &event.FieldError{Field: "limit", Message: "must be between 1 and 100"}
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "bad_date_filter",
			url:            "/api/events/upcoming?date_from=yesterday",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "bad_capacity_filter",
			url:            "/api/events/upcoming?min_capacity=lots",
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventsService{}

			if tt.svcSetUp != nil {
				tt.svcSetUp(svc)
			}

			h := handlers.NewEventsHandler(svc, nil, true)

			r := setupRouter(http.MethodGet, "/api/events/upcoming", nil, h.ListUpcoming)

			w := doJSON(r, http.MethodGet, tt.url, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestUpdateEventHandler(t *testing.T) {
	tests := []struct {
		name           string
		svcSetUp       func(*fakeEventsService)
		wantStatusCode int
	}{
		{
			name: "owner_updates",
			svcSetUp: func(f *fakeEventsService) {
				f.updateFn = func(ctx context.Context, actor service.Viewer, id int64, req event.UpdateEventRequest) (event.Event, error) {
					return event.Event{ID: id, Title: *req.Title}, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "non_owner_forbidden",
			svcSetUp: func(f *fakeEventsService) {
				f.updateFn = func(ctx context.Context, actor service.Viewer, id int64, req event.UpdateEventRequest) (event.Event, error) {
					return event.Event{}, event.ErrNotOwner
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name: "capacity_below_current",
			svcSetUp: func(f *fakeEventsService) {
				f.updateFn = func(ctx context.Context, actor service.Viewer, id int64, req event.UpdateEventRequest) (event.Event, error) {
					return event.Event{}, service.ErrCapacityBelowRegistrations
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeEventsService{}
			tt.svcSetUp(svc)

			h := handlers.NewEventsHandler(svc, nil, true)

			r := setupRouter(http.MethodPut, "/api/events/:id", []gin.HandlerFunc{identity(1, "user")}, h.UpdateEvent)

			w := doJSON(r, http.MethodPut, "/api/events/5", `{"title": "Renamed"}`)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}
