package algorithms

import (
	"math"
	"sort"

	"sensor-window-service/internal/models"
)

// AggregateSeries computes summary statistics over a device's sample
// series. An empty series yields NaN statistics rather than a panic or an
// error: downstream the model is simply marked invalid. The raw series
// itself stays available to the model fit; aggregation never consumes it.
func AggregateSeries(series models.TimeSyncSeries) models.SyncStats {
	stats := models.SyncStats{Count: len(series)}
	if len(series) == 0 {
		nan := models.NullableFloat(math.NaN())
		stats.MeanLatencyUs = nan
		stats.MedianLatencyUs = nan
		stats.LatencyStdDevUs = nan
		stats.MeanOffsetUs = nan
		stats.MedianOffsetUs = nan
		stats.OffsetStdDevUs = nan
		return stats
	}

	latencies := make([]float64, len(series))
	offsets := make([]float64, len(series))
	for i, s := range series {
		latencies[i] = s.LatencyUs
		offsets[i] = s.OffsetUs
	}

	latMean, latStdDev := meanStdDev(latencies)
	offMean, offStdDev := meanStdDev(offsets)
	stats.MeanLatencyUs = models.NullableFloat(latMean)
	stats.LatencyStdDevUs = models.NullableFloat(latStdDev)
	stats.MedianLatencyUs = models.NullableFloat(median(latencies))
	stats.MeanOffsetUs = models.NullableFloat(offMean)
	stats.OffsetStdDevUs = models.NullableFloat(offStdDev)
	stats.MedianOffsetUs = models.NullableFloat(median(offsets))
	return stats
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}

	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	varianceSum := 0.0
	for _, v := range values {
		diff := v - mean
		varianceSum += diff * diff
	}
	variance := varianceSum / float64(len(values))
	stdDev = math.Sqrt(variance)

	return mean, stdDev
}

// median returns the middle value, averaging the two central values for
// even-length input. The input slice is not modified.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
