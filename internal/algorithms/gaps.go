package algorithms

import (
	"fmt"

	"sensor-window-service/internal/models"
)

// DetectGaps walks consecutive timestamp pairs and marks every interval
// that exceeds tolerance times the nominal sample interval. Timestamps are
// expected already corrected and ascending. With fewer than two samples no
// gap detection is possible and no gaps are returned; that is not an error.
func DetectGaps(timestampsUs []float64, nominalIntervalUs, toleranceMultiplier float64) []models.Gap {
	if len(timestampsUs) < 2 || nominalIntervalUs <= 0 {
		return nil
	}
	if toleranceMultiplier <= 0 {
		toleranceMultiplier = models.DefaultGapToleranceMultiplier
	}

	threshold := toleranceMultiplier * nominalIntervalUs
	var gaps []models.Gap
	for i := 1; i < len(timestampsUs); i++ {
		if timestampsUs[i]-timestampsUs[i-1] > threshold {
			gaps = append(gaps, models.Gap{
				StartUs: timestampsUs[i-1],
				EndUs:   timestampsUs[i],
			})
		}
	}
	return gaps
}

// ConfigChange describes a sensor configuration discontinuity between two
// consecutive packets of one device.
type ConfigChange struct {
	Sensor string
	Reason string
}

// DetectConfigChange compares the sensor configurations of two consecutive
// packets. A change in sample rate, sensor kind, or a sensor's
// disappearance or reappearance is a harder boundary than a timing gap:
// the caller must start a new device segment rather than fill across it.
// A nil return means the configurations match.
func DetectConfigChange(prev, next *models.DecodedPacket) *ConfigChange {
	prevSensors := make(map[string]*models.SensorChannel, len(prev.Sensors))
	for i := range prev.Sensors {
		prevSensors[prev.Sensors[i].Name] = &prev.Sensors[i]
	}

	for i := range next.Sensors {
		s := &next.Sensors[i]
		p, ok := prevSensors[s.Name]
		if !ok {
			return &ConfigChange{Sensor: s.Name, Reason: "sensor appeared"}
		}
		if p.Kind != s.Kind {
			return &ConfigChange{
				Sensor: s.Name,
				Reason: fmt.Sprintf("kind changed from %s to %s", p.Kind, s.Kind),
			}
		}
		if p.SampleRateHz != s.SampleRateHz {
			return &ConfigChange{
				Sensor: s.Name,
				Reason: fmt.Sprintf("sample rate changed from %g to %g Hz", p.SampleRateHz, s.SampleRateHz),
			}
		}
		delete(prevSensors, s.Name)
	}

	for name := range prevSensors {
		return &ConfigChange{Sensor: name, Reason: "sensor disappeared"}
	}
	return nil
}

// IntervalStats returns the mean and standard deviation of the deltas
// between consecutive timestamps. With fewer than two samples both are 0.
func IntervalStats(timestampsUs []float64) (meanUs, stdDevUs float64) {
	if len(timestampsUs) < 2 {
		return 0, 0
	}
	deltas := make([]float64, 0, len(timestampsUs)-1)
	for i := 1; i < len(timestampsUs); i++ {
		deltas = append(deltas, timestampsUs[i]-timestampsUs[i-1])
	}
	return meanStdDev(deltas)
}

// MedianInterval returns the median delta between consecutive timestamps,
// or 0 with fewer than two samples. Unlike the mean, the median is not
// inflated by the gaps themselves, so it is the safe nominal-interval
// substitute for sensors that declare no sample rate.
func MedianInterval(timestampsUs []float64) float64 {
	if len(timestampsUs) < 2 {
		return 0
	}
	deltas := make([]float64, 0, len(timestampsUs)-1)
	for i := 1; i < len(timestampsUs); i++ {
		deltas = append(deltas, timestampsUs[i]-timestampsUs[i-1])
	}
	return median(deltas)
}
