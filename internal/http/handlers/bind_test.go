package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gatherly/gatherly/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type bindTarget struct {
	Name  string `json:"name" binding:"required,min=1"`
	Email string `json:"email" binding:"required,email"`
	Count int    `json:"count"`
}

func bindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var out bindTarget
		if !handlers.BindJSON(c, &out) {
			return
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantInBody string
	}{
		{
			name:     "valid",
			body:     `{"name": "A", "email": "a@example.com"}`,
			wantCode: http.StatusOK,
		},
		{
			name:       "missing_fields_named",
			body:       `{}`,
			wantCode:   http.StatusBadRequest,
			wantInBody: "name is required",
		},
		{
			name:       "bad_email_named",
			body:       `{"name": "A", "email": "nope"}`,
			wantCode:   http.StatusBadRequest,
			wantInBody: "email must be a valid email address",
		},
		{
			name:       "syntax_error",
			body:       `{"name": `,
			wantCode:   http.StatusBadRequest,
			wantInBody: "not valid JSON",
		},
		{
			name:       "type_mismatch_names_field",
			body:       `{"name": "A", "email": "a@example.com", "count": "three"}`,
			wantCode:   http.StatusBadRequest,
			wantInBody: "count must be of type int",
		},
	}

	r := bindRouter()

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/x", tt.body)

			if w.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantCode, w.Body.String())
			}

			if tt.wantInBody != "" && !strings.Contains(w.Body.String(), tt.wantInBody) {
				t.Fatalf("body %q does not mention %q", w.Body.String(), tt.wantInBody)
			}
		})
	}
}
