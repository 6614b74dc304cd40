package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/gatherly/gatherly/internal/domain/registration"
	"github.com/gatherly/gatherly/internal/engine"
	"github.com/gatherly/gatherly/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

// Fake implementation of the handlers.Registrar interface

type fakeRegistrar struct {
	registerFn func(ctx context.Context, userID, eventID int64) (engine.Result, error)
	cancelFn   func(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error
	batchFn    func(ctx context.Context, eventID int64, userIDs []int64) ([]engine.BatchOutcome, error)
}

func (f *fakeRegistrar) Register(ctx context.Context, userID, eventID int64) (engine.Result, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, userID, eventID)
	}
	return engine.Result{}, nil
}

func (f *fakeRegistrar) Cancel(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, actorID, targetUserID, eventID, elevated)
	}
	return nil
}

func (f *fakeRegistrar) RegisterBatch(ctx context.Context, eventID int64, userIDs []int64) ([]engine.BatchOutcome, error) {
	if f.batchFn != nil {
		return f.batchFn(ctx, eventID, userIDs)
	}
	return nil, nil
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		viewer         gin.HandlerFunc
		engSetUp       func(*fakeRegistrar)
		wantStatusCode int
		wantInBody     string
	}{
		{
			name:   "created",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					if userID != 7 || eventID != 5 {
						t.Fatalf("wrong target: user %d event %d", userID, eventID)
					}
					return engine.Result{RegistrationID: 99}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:   "reactivated",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					return engine.Result{RegistrationID: 99, Reactivated: true}, nil
				}
			},
			wantStatusCode: http.StatusOK,
			wantInBody:     "reactivated",
		},
		{
			name:   "event_full_is_business_rule",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					return engine.Result{}, registration.ErrEventFull
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantInBody:     "maximum capacity",
		},
		{
			name:   "event_past",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					return engine.Result{}, registration.ErrEventPast
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:   "duplicate_conflict",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					return engine.Result{}, registration.ErrAlreadyRegistered
				}
			},
			wantStatusCode: http.StatusConflict,
		},
		{
			name:           "on_behalf_of_requires_admin",
			body:           `{"user_id": 9}`,
			viewer:         identity(7, "user"),
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:   "admin_registers_on_behalf",
			body:   `{"user_id": 9}`,
			viewer: identity(7, "admin"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					if userID != 9 {
						t.Fatalf("expected target user 9, got %d", userID)
					}
					return engine.Result{RegistrationID: 100}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "anonymous_unauthorized",
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					t.Fatalf("engine must not be called")
					return engine.Result{}, nil
				}
			},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:   "transient_exhausted_is_503",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.registerFn = func(ctx context.Context, userID, eventID int64) (engine.Result, error) {
					return engine.Result{}, engine.ErrTransient
				}
			},
			wantStatusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeRegistrar{}

			if tt.engSetUp != nil {
				tt.engSetUp(eng)
			}

			h := handlers.NewRegistrationsHandler(eng, nil, true)

			var mws []gin.HandlerFunc
			if tt.viewer != nil {
				mws = append(mws, tt.viewer)
			}

			r := setupRouter(http.MethodPost, "/api/events/:id/register", mws, h.Register)

			w := doJSON(r, http.MethodPost, "/api/events/5/register", tt.body)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantInBody != "" && !strings.Contains(w.Body.String(), tt.wantInBody) {
				t.Fatalf("body %q does not mention %q", w.Body.String(), tt.wantInBody)
			}
		})
	}
}

func TestCancelHandler(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		viewer         gin.HandlerFunc
		engSetUp       func(*fakeRegistrar)
		wantStatusCode int
		wantInBody     string
	}{
		{
			name:   "self_cancel",
			url:    "/api/events/5/register/7",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.cancelFn = func(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error {
					if actorID != 7 || targetUserID != 7 || eventID != 5 || elevated {
						t.Fatalf("wrong args: %d %d %d %v", actorID, targetUserID, eventID, elevated)
					}
					return nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:   "cancel_other_user_forbidden",
			url:    "/api/events/5/register/7",
			viewer: identity(8, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.cancelFn = func(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error {
					return registration.ErrForbidden
				}
			},
			wantStatusCode: http.StatusForbidden,
			wantInBody:     "only cancel your own",
		},
		{
			name:   "not_registered",
			url:    "/api/events/5/register/7",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.cancelFn = func(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error {
					return registration.ErrNotRegistered
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:   "past_event",
			url:    "/api/events/5/register/7",
			viewer: identity(7, "user"),
			engSetUp: func(f *fakeRegistrar) {
				f.cancelFn = func(ctx context.Context, actorID, targetUserID, eventID int64, elevated bool) error {
					return registration.ErrEventPast
				}
			},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "bad_user_id_param",
			url:            "/api/events/5/register/bob",
			viewer:         identity(7, "user"),
			wantStatusCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeRegistrar{}

			if tt.engSetUp != nil {
				tt.engSetUp(eng)
			}

			h := handlers.NewRegistrationsHandler(eng, nil, true)

			r := setupRouter(http.MethodDelete, "/api/events/:id/register/:userId", []gin.HandlerFunc{tt.viewer}, h.Cancel)

			w := doJSON(r, http.MethodDelete, tt.url, "")

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantInBody != "" && !strings.Contains(w.Body.String(), tt.wantInBody) {
				t.Fatalf("body %q does not mention %q", w.Body.String(), tt.wantInBody)
			}
		})
	}
}

func TestRegisterBatchHandler(t *testing.T) {
	eng := &fakeRegistrar{
		batchFn: func(ctx context.Context, eventID int64, userIDs []int64) ([]engine.BatchOutcome, error) {
			if eventID != 5 || len(userIDs) != 3 {
				t.Fatalf("wrong args: event %d users %v", eventID, userIDs)
			}

			id := int64(1)
			return []engine.BatchOutcome{
				{UserID: 10, RegistrationID: &id, Outcome: "created"},
				{UserID: 11, Outcome: "event_full"},
				{UserID: 12, Outcome: "already_registered"},
			}, nil
		},
	}

	h := handlers.NewRegistrationsHandler(eng, nil, true)

	r := setupRouter(http.MethodPost, "/api/events/:id/register/batch", []gin.HandlerFunc{identity(1, "admin")}, h.RegisterBatch)

	w := doJSON(r, http.MethodPost, "/api/events/5/register/batch", `{"user_ids": [10, 11, 12]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	var env handlers.Envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}

	if !env.Success {
		t.Fatalf("expected success envelope")
	}
}

func TestRegisterBatchRequiresUserIDs(t *testing.T) {
	h := handlers.NewRegistrationsHandler(&fakeRegistrar{}, nil, true)

	r := setupRouter(http.MethodPost, "/api/events/:id/register/batch", []gin.HandlerFunc{identity(1, "admin")}, h.RegisterBatch)

	w := doJSON(r, http.MethodPost, "/api/events/5/register/batch", `{"user_ids": []}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400, body=%s", w.Code, w.Body.String())
	}
}
