package assembler

import (
	"fmt"
	"math"

	"sensor-window-service/internal/algorithms"
	"sensor-window-service/internal/models"
)

// assembleDevice turns one device group into its segments. A configuration
// change between consecutive packets splits the group: each run gets its
// own offset model and its own streams. Failures are recorded in the
// returned report; an empty segment list means the device is omitted from
// the window, which never aborts the other devices.
func (a *Assembler) assembleDevice(key string, packets []*models.DecodedPacket) ([]models.DeviceSegment, *models.AssemblyReport) {
	report := &models.AssemblyReport{}

	runs := splitByConfig(packets)
	if len(runs) > 1 {
		for _, run := range runs[1:] {
			change := algorithms.DetectConfigChange(run.prevTail, run.packets[0])
			msg := "sensor configuration changed"
			if change != nil {
				msg = fmt.Sprintf("sensor %q: %s", change.Sensor, change.Reason)
			}
			report.Add(key, models.StageSegment, msg)
		}
	}

	segments := make([]models.DeviceSegment, 0, len(runs))
	for i, run := range runs {
		segment, ok := a.buildSegment(key, i, run.packets, report)
		if !ok {
			continue
		}
		segments = append(segments, segment)
	}
	return segments, report
}

// packetRun is a maximal run of packets sharing one sensor configuration.
type packetRun struct {
	packets  []*models.DecodedPacket
	prevTail *models.DecodedPacket // last packet of the preceding run, nil for the first
}

// splitByConfig cuts a time-sorted group at every configuration change.
func splitByConfig(packets []*models.DecodedPacket) []packetRun {
	if len(packets) == 0 {
		return nil
	}

	runs := []packetRun{{packets: packets[:1]}}
	for i := 1; i < len(packets); i++ {
		prev := packets[i-1]
		if algorithms.DetectConfigChange(prev, packets[i]) != nil {
			runs = append(runs, packetRun{prevTail: prev})
		}
		last := len(runs) - 1
		runs[last].packets = append(runs[last].packets, packets[i])
	}
	return runs
}

// buildSegment runs the full pipeline for one configuration run: time-sync
// reduction, model fit, stream correction, gap filling and truncation.
func (a *Assembler) buildSegment(key string, index int, packets []*models.DecodedPacket, report *models.AssemblyReport) (models.DeviceSegment, bool) {
	series := reduceTimeSync(packets)
	stats := algorithms.AggregateSeries(series)

	model := algorithms.FitOffsetModel(series, algorithms.ModelConfig{
		MinSamples:          a.req.MinTimesyncSamples,
		MaxResidualStdDevUs: a.req.MaxResidualStdDevUs,
	})
	if !model.Valid {
		// Data-quality condition, not an error: the device's data is still
		// assembled, uncorrected, and the model summary carries Valid=false.
		if model.SampleCount < a.req.MinTimesyncSamples {
			report.Add(key, models.StageTimeSync, fmt.Sprintf(
				"only %d timesync samples, %d required; clock correction disabled",
				model.SampleCount, a.req.MinTimesyncSamples))
		} else {
			report.Add(key, models.StageTimeSync, fmt.Sprintf(
				"offset fit residual %.0fus exceeds bound %.0fus; clock correction disabled",
				model.ScoreUs, a.req.MaxResidualStdDevUs))
		}
	}

	segment := models.DeviceSegment{
		SegmentID: fmt.Sprintf("%s#%d", key, index),
		DeviceKey: key,
		DeviceID:  packets[0].DeviceID,
		Model:     model.Summary(),
		Sync:      stats,
	}

	// The run shares one sensor configuration, so the first packet's
	// channel list names every stream of the segment.
	for si := range packets[0].Sensors {
		stream, ok := a.buildStream(key, packets, packets[0].Sensors[si].Name, model, report)
		if !ok {
			continue
		}
		segment.Streams = append(segment.Streams, stream)
	}
	if len(segment.Streams) == 0 {
		report.Add(key, models.StageAssembly, "no sensor stream survived assembly")
		return models.DeviceSegment{}, false
	}

	segment.StartUs, segment.EndUs = segmentBounds(segment.Streams)
	return segment, true
}

// reduceTimeSync reduces every packet's exchange payload to at most one
// sample and returns the time-ordered series.
func reduceTimeSync(packets []*models.DecodedPacket) models.TimeSyncSeries {
	var series models.TimeSyncSeries
	for _, p := range packets {
		arity := algorithms.DetectExchangeArity(len(p.TimeSync))
		exchanges := algorithms.ExtractExchanges(p.TimeSync, arity)
		if sample, ok := algorithms.BestSample(exchanges, p.PacketStartUs); ok {
			series = append(series, sample)
		}
	}
	series.Sort()
	return series
}

// segmentBounds returns the earliest and latest timestamps across streams.
func segmentBounds(streams []models.SensorStream) (startUs, endUs float64) {
	startUs = math.Inf(1)
	endUs = math.Inf(-1)
	for _, s := range streams {
		if len(s.Timestamps) == 0 {
			continue
		}
		if s.Timestamps[0] < startUs {
			startUs = s.Timestamps[0]
		}
		if last := s.Timestamps[len(s.Timestamps)-1]; last > endUs {
			endUs = last
		}
	}
	if math.IsInf(startUs, 1) {
		return 0, 0
	}
	return startUs, endUs
}
