package algorithms

import (
	"math"

	"sensor-window-service/internal/models"
)

// ModelConfig holds the offset model's fit thresholds.
// If values are zero, sensible defaults are applied.
type ModelConfig struct {
	// MinSamples is the minimum series length for a valid model.
	MinSamples int
	// MaxResidualStdDevUs rejects a model whose residual scatter exceeds it.
	MaxResidualStdDevUs float64
}

// OffsetModel maps device time to corrected time. The fit prefers a linear
// model (slope = clock drift rate, intercept = base offset) when it beats a
// constant-offset estimate on the same series; with too few points or too
// much scatter the model is marked invalid and Predict degrades to the
// identity. Predict is always safe to call; Valid is only a reporting
// signal for whether the correction can be trusted.
type OffsetModel struct {
	Valid       bool
	InterceptUs float64 // offset at the reference time
	Slope       float64 // drift, microseconds of offset per microsecond of device time
	ScoreUs     float64 // residual standard deviation of the chosen fit
	SampleCount int
	RefTimeUs   float64 // first packet start of the fitted series
}

// FitOffsetModel fits an offset model to a device's sample series.
// It never fails: insufficient or degenerate data produces an invalid
// model whose Predict is the identity. Fitting is deterministic; fitting
// twice on the same series yields identical parameters.
func FitOffsetModel(series models.TimeSyncSeries, config ModelConfig) *OffsetModel {
	// Apply default values
	if config.MinSamples == 0 {
		config.MinSamples = models.DefaultMinTimesyncSamples
	}
	if config.MaxResidualStdDevUs == 0 {
		config.MaxResidualStdDevUs = models.DefaultMaxResidualStdDevUs
	}

	model := &OffsetModel{SampleCount: len(series), ScoreUs: math.NaN()}
	if len(series) == 0 {
		return model
	}

	model.RefTimeUs = series[0].PacketStartUs

	// Constant estimate: the mean offset, scored by the offset scatter.
	offsets := make([]float64, len(series))
	for i, s := range series {
		offsets[i] = s.OffsetUs
	}
	meanOffset, constScore := meanStdDev(offsets)
	model.InterceptUs = meanOffset
	model.ScoreUs = constScore

	// Drift estimate: least-squares line over (device time, offset),
	// relative to the reference time to keep the normal equations stable.
	if slope, intercept, ok := linearFit(series, model.RefTimeUs); ok {
		residScore := residualStdDev(series, model.RefTimeUs, slope, intercept)
		if residScore < constScore {
			model.Slope = slope
			model.InterceptUs = intercept
			model.ScoreUs = residScore
		}
	}

	model.Valid = len(series) >= config.MinSamples &&
		model.ScoreUs <= config.MaxResidualStdDevUs
	return model
}

// Predict returns the corrected time for a device timestamp: t plus the
// modeled offset when the model is valid, t unchanged otherwise. The
// invalid branch is an explicit no-op so that a NaN correction can never
// leak into assembled data.
func (m *OffsetModel) Predict(deviceTimeUs float64) float64 {
	if !m.Valid {
		return deviceTimeUs
	}
	return deviceTimeUs + m.InterceptUs + m.Slope*(deviceTimeUs-m.RefTimeUs)
}

// Invert maps a corrected time back to the device timestamp that Predict
// would have produced it from. For an invalid model it is the identity.
func (m *OffsetModel) Invert(correctedUs float64) float64 {
	if !m.Valid {
		return correctedUs
	}
	// corrected = t*(1+slope) + intercept - slope*ref
	return (correctedUs - m.InterceptUs + m.Slope*m.RefTimeUs) / (1 + m.Slope)
}

// Summary returns the reportable shape of the model.
func (m *OffsetModel) Summary() models.OffsetModelSummary {
	return models.OffsetModelSummary{
		Valid:       m.Valid,
		InterceptUs: m.InterceptUs,
		Slope:       m.Slope,
		ScoreUs:     models.NullableFloat(m.ScoreUs),
		SampleCount: m.SampleCount,
	}
}

// linearFit computes the least-squares slope and intercept of offset
// against device time relative to refTimeUs. It reports false when the
// series is too short or all packets share one start time, which would
// make the denominator degenerate.
func linearFit(series models.TimeSyncSeries, refTimeUs float64) (slope, intercept float64, ok bool) {
	if len(series) < 2 {
		return 0, 0, false
	}

	n := float64(len(series))
	var sumX, sumY, sumXY, sumX2 float64
	for _, s := range series {
		x := s.PacketStartUs - refTimeUs
		y := s.OffsetUs
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, 0, false
	}

	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept, true
}

// residualStdDev scores a linear fit by the standard deviation of its
// residuals over the series.
func residualStdDev(series models.TimeSyncSeries, refTimeUs, slope, intercept float64) float64 {
	var sumSq float64
	for _, s := range series {
		predicted := intercept + slope*(s.PacketStartUs-refTimeUs)
		r := s.OffsetUs - predicted
		sumSq += r * r
	}
	return math.Sqrt(sumSq / float64(len(series)))
}
