package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// NeuralProphetName is the dashboard name of the neural time-series backend.
const NeuralProphetName = "neuralprophet"

// NeuralProphet is a history-conditioned neural time-series model server.
//
// POST {base}/predict with {"zone": ..., "history": [{"ds","zone","mw"}, ...]}
// answers rows carrying "ds" and "y".
type NeuralProphet struct {
	c client
}

// NewNeuralProphet creates a client for the model server at baseURL.
func NewNeuralProphet(baseURL string, hc *http.Client) *NeuralProphet {
	return &NeuralProphet{c: newClient(baseURL, hc)}
}

func (n *NeuralProphet) Name() string               { return NeuralProphetName }
func (n *NeuralProphet) Conditioning() Conditioning { return ConditionedOnHistory }

type npRequest struct {
	Zone    string              `json:"zone"`
	History []models.HourlyLoad `json:"history"`
}

// Predict forecasts the hours following the shared history for zone.
func (n *NeuralProphet) Predict(ctx context.Context, zone string, in Input) ([]models.ForecastPoint, error) {
	if len(in.History) == 0 {
		return nil, fmt.Errorf("neuralprophet: metered load history required")
	}
	rows, err := n.c.post(ctx, "/predict", npRequest{Zone: zone, History: in.History})
	if err != nil {
		return nil, fmt.Errorf("neuralprophet: %w", err)
	}
	points, err := decode(rows, zone, "y", "mw")
	if err != nil {
		return nil, fmt.Errorf("neuralprophet: %w", err)
	}
	return points, nil
}
