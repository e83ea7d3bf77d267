// Package report scores how well the crews contained a fire.
//
// The actual fire-area curve is compared with an ideal curve: the real curve
// up to its peak, then a straight decay to zero over the predicted extinguish
// time. Efficiency is the ratio of the two areas under the curves.
package report

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/talgya/fire-tactics/internal/predictor"
)

// ErrNoHistory is returned when there are no ticks to analyze.
var ErrNoHistory = errors.New("report: no history")

// idealTail is how many ticks past the predicted time the ideal curve may run
// before it is cut off.
const idealTail = 5

// Report is the effectiveness analysis of one run.
type Report struct {
	Ticks      int `json:"ticks"`
	PeakArea   int `json:"peak_area"`
	TimeToPeak int `json:"time_to_peak"` // index of the first peak
	FinalArea  int `json:"final_area"`
	AUC        int `json:"auc"` // total damage: sum of fire area per tick

	Units     int                `json:"units"`
	Intensity int                `json:"intensity"`
	Estimate  predictor.Estimate `json:"estimate"`

	Ideal      []float64 `json:"ideal"`
	IdealAUC   float64   `json:"ideal_auc"`
	Efficiency float64   `json:"efficiency"` // percent, at most 100
}

// PredictedSteps is the estimated extinguish time in whole ticks.
func (r Report) PredictedSteps() int {
	return r.Estimate.Steps()
}

// Risk reports the predictor's escalation flag.
func (r Report) Risk() bool {
	return r.Estimate.Risk
}

// Analyze builds a Report from a fire-area history. units of 0 is treated
// as a single crew.
func Analyze(ctx context.Context, history []int, units, intensity int, p predictor.Predictor) (Report, error) {
	if len(history) == 0 {
		return Report{}, ErrNoHistory
	}
	if units <= 0 {
		units = 1
	}
	if p == nil {
		p = predictor.Baseline{}
	}

	r := Report{
		Ticks:     len(history),
		FinalArea: history[len(history)-1],
		Units:     units,
		Intensity: intensity,
	}
	for i, a := range history {
		if a > r.PeakArea {
			r.PeakArea = a
			r.TimeToPeak = i
		}
		r.AUC += a
	}

	est, err := p.Predict(ctx, r.PeakArea, units, intensity)
	if err != nil {
		return Report{}, fmt.Errorf("predict: %w", err)
	}
	r.Estimate = est

	r.Ideal = IdealCurve(history[:r.TimeToPeak+1], r.PeakArea, est.Steps())
	for _, v := range r.Ideal {
		r.IdealAUC += v
	}

	r.Efficiency = 100
	if r.AUC > 0 {
		r.Efficiency = min(100, r.IdealAUC/float64(r.AUC)*100)
	}
	return r, nil
}

// IdealCurve extends the rising part of a curve with a linear decay from peak
// to zero over steps ticks. The decay stops at zero or after steps+5 points.
func IdealCurve(rising []int, peak, steps int) []float64 {
	out := make([]float64, 0, len(rising)+steps+idealTail)
	for _, v := range rising {
		out = append(out, float64(v))
	}
	if steps <= 0 {
		return out
	}

	decay := float64(peak) / float64(steps)
	val := float64(peak)
	for i := 0; i < steps+idealTail; i++ {
		val -= decay
		if val < 0 {
			val = 0
		}
		out = append(out, val)
		if val == 0 {
			break
		}
	}
	return out
}

// String renders the report as a short human-readable summary.
func (r Report) String() string {
	risk := "low"
	if r.Risk() {
		risk = "HIGH"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Tactical efficiency: %s%%\n", humanize.FtoaWithDigits(r.Efficiency, 1))
	fmt.Fprintf(&b, "Escalation risk:     %s\n", risk)
	fmt.Fprintf(&b, "Ticks recorded:      %s\n", humanize.Comma(int64(r.Ticks)))
	fmt.Fprintf(&b, "Peak fire area:      %s cells at tick %d\n", humanize.Comma(int64(r.PeakArea)), r.TimeToPeak)
	fmt.Fprintf(&b, "Predicted extinguish: %d ticks (%d crews, intensity %d)\n", r.PredictedSteps(), r.Units, r.Intensity)
	fmt.Fprintf(&b, "Total damage (AUC):  %s\n", humanize.Comma(int64(r.AUC)))
	return b.String()
}
