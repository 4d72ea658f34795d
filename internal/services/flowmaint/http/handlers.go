// Package http provides the flowmaint ops endpoints
package http

import (
	"context"
	"net/http"
	"time"

	perr "flowkeeper/internal/platform/errors"
	phttp "flowkeeper/internal/platform/net/http"
	"flowkeeper/internal/platform/net/http/bind"
	"flowkeeper/internal/services/flowmaint/domain"
)

// Deps are the handler dependencies
type Deps struct {
	Sweeper domain.SweepPort
	Reports domain.ReportPort
	Cutoff  domain.CutoffPort

	// Ready checks backing stores; nil means always ready
	Ready func(context.Context) error

	Location  *time.Location
	StartedAt time.Time
}

type handlers struct {
	deps Deps
	now  func() time.Time
}

// Register mounts the ops routes
func Register(r phttp.Router, d Deps) {
	if d.Location == nil {
		d.Location = time.Local
	}
	h := &handlers{deps: d, now: time.Now}

	r.Get("/healthz", h.health)
	r.Get("/readyz", phttp.Call(h.ready))
	r.Route("/v1", func(v1 phttp.Router) {
		v1.Get("/sweeps/last", phttp.Call(h.lastSweep))
		v1.Post("/sweeps", h.sweep)
		v1.Get("/cutoff", phttp.Call(h.cutoff))
	})
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Started string `json:"started"`
	Now     string `json:"now"`
}

// SweepBody requests a sweep
type SweepBody struct {
	Maintenance bool   `json:"maintenance"`
	Reason      string `json:"reason" validate:"omitempty,max=200"`
}

// CutoffResponse reports the retention boundary for a day
type CutoffResponse struct {
	Date          string `json:"date"`
	Cutoff        string `json:"cutoff"`
	RetentionDays int    `json:"retention_days"`
	Granularity   string `json:"granularity"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	phttp.Respond(w, r, http.StatusOK, HealthResponse{
		OK:      true,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     h.now().UTC().Format(time.RFC3339),
	})
}

func (h *handlers) ready(r *http.Request) (any, error) {
	if h.deps.Ready == nil {
		return map[string]string{"status": "ok"}, nil
	}
	if err := h.deps.Ready(r.Context()); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "store not ready")
	}
	return map[string]string{"status": "ok"}, nil
}

func (h *handlers) lastSweep(*http.Request) (any, error) {
	rep, ok := h.deps.Reports.LastReport()
	if !ok {
		return nil, perr.Newf(perr.ErrorCodeNotFound, "no sweep has finished yet (status %s)", rep.Status)
	}
	return rep, nil
}

func (h *handlers) sweep(w http.ResponseWriter, r *http.Request) {
	body, err := bind.ParseJSON[SweepBody](r)
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	// the sweep outlives a client that hangs up
	rep, err := h.deps.Sweeper.Sweep(context.WithoutCancel(r.Context()), domain.SweepRequest{Force: body.Maintenance})
	if err != nil {
		phttp.RespondError(w, r, err)
		return
	}
	phttp.Respond(w, r, http.StatusOK, rep)
}

func (h *handlers) cutoff(r *http.Request) (any, error) {
	day := h.now().In(h.deps.Location)
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := time.ParseInLocation(time.DateOnly, s, h.deps.Location)
		if err != nil {
			return nil, perr.InvalidArgf("date must be YYYY-MM-DD: %q", s)
		}
		day = d
	}
	k, p, err := h.deps.Cutoff.CutoffAt(r.Context(), day)
	if err != nil {
		return nil, err
	}
	return CutoffResponse{
		Date:          day.Format(time.DateOnly),
		Cutoff:        k.String(),
		RetentionDays: p.RetentionDays,
		Granularity:   p.Granularity.String(),
	}, nil
}
