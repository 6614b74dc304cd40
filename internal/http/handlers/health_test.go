package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gatherly/gatherly/internal/http/handlers"
)

func TestHealthEnvelope(t *testing.T) {
	h := handlers.NewHealthHandler("dev", nil)

	r := setupRouter(http.MethodGet, "/health", nil, h.Health)

	w := doJSON(r, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d", w.Code)
	}

	var body struct {
		Status      string `json:"status"`
		Timestamp   string `json:"timestamp"`
		Environment string `json:"environment"`
	}

	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}

	if body.Status != "success" || body.Environment != "dev" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Fatalf("timestamp not RFC3339: %q", body.Timestamp)
	}
}

func TestReadyReflectsDependencies(t *testing.T) {
	ok := handlers.NewHealthHandler("dev", func() error { return nil })
	r := setupRouter(http.MethodGet, "/ready", nil, ok.Ready)

	if w := doJSON(r, http.MethodGet, "/ready", ""); w.Code != http.StatusOK {
		t.Fatalf("ready: got %d", w.Code)
	}

	down := handlers.NewHealthHandler("dev", func() error { return errors.New("db down") })
	r = setupRouter(http.MethodGet, "/ready", nil, down.Ready)

	if w := doJSON(r, http.MethodGet, "/ready", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("not ready: got %d", w.Code)
	}
}
