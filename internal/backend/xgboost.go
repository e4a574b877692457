package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kanna-karuppasamy/smart-grid-load-forecast/internal/models"
)

// XGBoostName is the dashboard name of the gradient-boosted tree backend.
const XGBoostName = "XGBoost"

// XGBoost is a date-conditioned gradient-boosted tree model server.
//
// GET {base}/predict?zone=AEP&date=2022-11-08 answers rows carrying "date",
// "hour", "mw" and the weather columns used as model features.
type XGBoost struct {
	c client
}

// NewXGBoost creates a client for the model server at baseURL.
func NewXGBoost(baseURL string, hc *http.Client) *XGBoost {
	return &XGBoost{c: newClient(baseURL, hc)}
}

func (x *XGBoost) Name() string               { return XGBoostName }
func (x *XGBoost) Conditioning() Conditioning { return ConditionedOnDate }

// Predict forecasts the 24 hours of in.Date for zone.
func (x *XGBoost) Predict(ctx context.Context, zone string, in Input) ([]models.ForecastPoint, error) {
	if in.Date.IsZero() {
		return nil, fmt.Errorf("xgboost: target date required")
	}
	q := url.Values{}
	q.Set("zone", zone)
	q.Set("date", in.DateString())

	rows, err := x.c.get(ctx, "/predict", q)
	if err != nil {
		return nil, fmt.Errorf("xgboost: %w", err)
	}
	points, err := decode(rows, zone, "mw")
	if err != nil {
		return nil, fmt.Errorf("xgboost: %w", err)
	}
	return points, nil
}
