package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/backend"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/dashboard"
	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/orchestrator"
)

// errInvalidRequest marks malformed query parameters or uploads
var errInvalidRequest = errors.New("invalid request")

// errUploadTooLarge marks uploads cut off by the body size limit
var errUploadTooLarge = errors.New("upload too large")

// ErrResponse is the JSON body of every failed request
type ErrResponse struct {
	Err            error  `json:"-"`
	HTTPStatusCode int    `json:"-"`
	ErrorText      string `json:"error"`
}

func (e *ErrResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

// statusOf maps domain errors onto HTTP status codes
func statusOf(err error) int {
	var zoneErr *orchestrator.ZoneError
	switch {
	case errors.Is(err, backend.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, dashboard.ErrInvalidHour),
		errors.Is(err, dashboard.ErrDateOutOfRange),
		errors.Is(err, orchestrator.ErrNoZones):
		return http.StatusBadRequest
	case errors.Is(err, dashboard.ErrNoHistory):
		return http.StatusNotFound
	case errors.As(err, &zoneErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errRender(err error) render.Renderer {
	status := statusOf(err)
	text := err.Error()
	if status == http.StatusInternalServerError {
		text = http.StatusText(status)
	}
	return &ErrResponse{Err: err, HTTPStatusCode: status, ErrorText: text}
}
