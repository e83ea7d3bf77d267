// Package predictor estimates extinguish time and escalation risk for a fire.
//
// The engine treats the model as an opaque collaborator. Baseline is a
// closed-form stand-in; Client calls an external model service and falls
// back to Baseline when the service is unavailable.
package predictor

import (
	"context"
	"math"
)

// Estimate is a prediction for the current incident.
type Estimate struct {
	Time float64 `json:"time"` // extinguish time, in ticks
	Risk bool    `json:"risk"` // escalation risk
}

// Steps returns the estimated time truncated to whole ticks.
func (e Estimate) Steps() int {
	return int(e.Time)
}

// Predictor estimates extinguish time from fire area, crew count and
// intensity rank (1–5).
type Predictor interface {
	Predict(ctx context.Context, area, units, intensity int) (Estimate, error)
}

// Baseline thresholds.
const (
	baselineTimeFactor = 0.5
	baselineUnitOffset = 0.5
	baselineMinTime    = 1
	baselineRiskRatio  = 1.2
)

// Baseline is the noise-free form of the synthetic training data: time grows
// with area and intensity and falls with crew count; risk is flagged when
// the crews are thin for the fire.
type Baseline struct{}

// Predict implements Predictor.
func (Baseline) Predict(_ context.Context, area, units, intensity int) (Estimate, error) {
	t := float64(area*intensity) * baselineTimeFactor / (float64(units) + baselineUnitOffset)
	t = math.Max(baselineMinTime, t)

	risk := false
	if units > 0 {
		risk = float64(area*intensity)/float64(units*100) > baselineRiskRatio
	} else {
		risk = area*intensity > 0
	}
	return Estimate{Time: t, Risk: risk}, nil
}
