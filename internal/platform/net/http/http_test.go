package http

import (
	"encoding/json"
	"errors"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	perr "flowkeeper/internal/platform/errors"

	"github.com/go-chi/chi/v5"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env
}

func TestServerRouter_RoutesAndCall(t *testing.T) {
	s := NewServer(":0", func(m *chi.Mux) {})
	s.Router().Route("/v1", func(r Router) {
		r.Get("/ok", Call(func(*stdhttp.Request) (any, error) { return map[string]int{"n": 1}, nil }))
		r.Post("/fail", Call(func(*stdhttp.Request) (any, error) {
			return nil, perr.Conflictf("sweep already running")
		}))
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/v1/ok", nil))
	if rec.Code != 200 || decode(t, rec).Status != "OK" {
		t.Fatalf("GET /v1/ok = %d %s", rec.Code, rec.Body)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/v1/fail", nil))
	env := decode(t, rec)
	if rec.Code != stdhttp.StatusConflict || env.Code != perr.ErrorCodeConflict || env.Error != "sweep already running" {
		t.Fatalf("POST /v1/fail = %d %+v", rec.Code, env)
	}
}

func TestRespondError_ForeignError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, httptest.NewRequest("GET", "/", nil), errors.New("plain"))
	if rec.Code != 500 || decode(t, rec).Error != "plain" {
		t.Fatalf("unexpected %d %s", rec.Code, rec.Body)
	}
}
