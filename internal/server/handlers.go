package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/dashboard"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/history"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/orchestrator"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/reference"
)

// HistoryResponse is the metered load of one zone, or of every zone
type HistoryResponse struct {
	Zone      string               `json:"zone,omitempty"`
	DateRange *dashboard.DateRange `json:"date_range,omitempty"`
	Rows      []models.HourlyLoad  `json:"rows"`
}

// ForecastResponse is one raw orchestrated table
type ForecastResponse struct {
	Run    models.ForecastRun     `json:"run"`
	Cached bool                   `json:"cached"`
	Points []models.ForecastPoint `json:"points"`
}

func (s *Server) apiHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	checks := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		err := check(ctx)
		cancel()
		if err != nil {
			s.logger.Warnw("health check failed", "check", name, "error", err)
			checks[name] = err.Error()
			status = "degraded"
			continue
		}
		checks[name] = "ok"
	}
	if status != "ok" {
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, map[string]interface{}{
		"status":       status,
		"checks":       checks,
		"zones":        len(s.pipeline.Zones().Codes()),
		"history_rows": s.pipeline.History().Len(),
	})
}

func (s *Server) apiZones(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.pipeline.Zones().Zones())
}

func (s *Server) apiHistory(w http.ResponseWriter, r *http.Request) {
	zone := r.URL.Query().Get("zone")
	resp := HistoryResponse{Zone: zone}
	if zone == "" {
		resp.Rows = s.pipeline.History().Snapshot()
	} else {
		if !s.pipeline.Zones().Has(zone) {
			render.Render(w, r, errRender(fmt.Errorf("%w: unknown zone %q", errInvalidRequest, zone)))
			return
		}
		resp.Rows = s.pipeline.History().Zone(zone)
	}
	if first, last, ok := history.Range(resp.Rows); ok {
		resp.DateRange = &dashboard.DateRange{
			Min: first.Format(backend.DateLayout),
			Max: last.AddDate(0, 0, 1).Format(backend.DateLayout),
		}
	}
	if resp.Rows == nil {
		resp.Rows = []models.HourlyLoad{}
	}
	render.JSON(w, r, resp)
}

func (s *Server) apiView(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		render.Render(w, r, errRender(err))
		return
	}
	s.renderView(w, r, q)
}

// apiViewUpload renders a view conditioned on an uploaded metered load CSV,
// sent either as the raw body or as the "file" field of a multipart form.
func (s *Server) apiViewUpload(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		render.Render(w, r, errRender(err))
		return
	}

	if s.http.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.http.MaxUploadBytes)
	}
	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		f, _, err := r.FormFile("file")
		if err != nil {
			render.Render(w, r, errRender(uploadError(err)))
			return
		}
		defer f.Close()
		body = f
	}

	rows, err := reference.LoadHistory(body, s.pipeline.Zones().Has)
	if err != nil {
		render.Render(w, r, errRender(uploadError(err)))
		return
	}
	if len(rows) == 0 {
		render.Render(w, r, errRender(fmt.Errorf("%w: upload holds no rows for known zones", errInvalidRequest)))
		return
	}
	q.History = rows
	s.renderView(w, r, q)
}

// uploadError keeps a body size violation distinguishable from a malformed file
func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: upload exceeds %d bytes", errUploadTooLarge, tooLarge.Limit)
	}
	return fmt.Errorf("%w: %v", errInvalidRequest, err)
}

func (s *Server) renderView(w http.ResponseWriter, r *http.Request, q dashboard.Query) {
	v, err := s.pipeline.Render(r.Context(), q)
	if err != nil {
		s.logger.Warnw("view failed", "backend", q.Backend, "zones", q.Zones, "error", err)
		render.Render(w, r, errRender(err))
		return
	}
	render.JSON(w, r, v)
}

func (s *Server) apiForecast(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		render.Render(w, r, errRender(err))
		return
	}
	req := orchestrator.Request{
		Backend: q.Backend,
		Zones:   s.pipeline.SelectedZones(q.Zones),
		Date:    q.Date,
		History: s.pipeline.History().Snapshot(),
	}
	if req.Date.IsZero() {
		req.Date = startOfDay(time.Now())
	}

	entry, cached, err := s.pipeline.Forecast(r.Context(), req)
	if err != nil {
		render.Render(w, r, errRender(err))
		return
	}
	points := entry.Points
	if points == nil {
		points = []models.ForecastPoint{}
	}
	render.JSON(w, r, ForecastResponse{Run: entry.Run, Cached: cached, Points: points})
}

func (s *Server) apiRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			render.Render(w, r, errRender(fmt.Errorf("%w: limit %q", errInvalidRequest, v)))
			return
		}
		limit = n
	}
	runs, err := s.runs.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Errorw("failed to list forecast runs", "error", err)
		render.Render(w, r, errRender(err))
		return
	}
	if runs == nil {
		runs = []models.ForecastRun{}
	}
	render.JSON(w, r, runs)
}

// parseQuery reads backend, zones, date and hour from the URL
func (s *Server) parseQuery(r *http.Request) (dashboard.Query, error) {
	v := r.URL.Query()
	q := dashboard.Query{
		Backend: v.Get("backend"),
		Hour:    s.dashboard.DefaultHour,
	}
	if q.Backend == "" {
		q.Backend = s.dashboard.DefaultBackend
	}
	for _, z := range strings.Split(v.Get("zones"), ",") {
		if z = strings.TrimSpace(z); z != "" {
			q.Zones = append(q.Zones, z)
		}
	}
	if d := v.Get("date"); d != "" {
		t, err := time.Parse(backend.DateLayout, d)
		if err != nil {
			return q, fmt.Errorf("%w: date %q", errInvalidRequest, d)
		}
		q.Date = t
	}
	if h := v.Get("hour"); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil {
			return q, fmt.Errorf("%w: hour %q", errInvalidRequest, h)
		}
		q.Hour = n
	}
	return q, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
