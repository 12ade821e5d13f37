package assembler

import (
	"fmt"
	"math"

	"sensor-window-service/internal/algorithms"
	"sensor-window-service/internal/models"
)

// buildStream assembles one sensor's stream across a configuration run:
// concatenate the per-packet payloads, correct timestamps through the
// offset model, fill timing gaps with NaN placeholders, then truncate and
// pad to the requested range. Column buffers (timestamps, values, quality,
// unaltered timestamps) stay parallel throughout.
func (a *Assembler) buildStream(key string, packets []*models.DecodedPacket, name string, model *algorithms.OffsetModel, report *models.AssemblyReport) (models.SensorStream, bool) {
	channel := findChannel(packets[0], name)
	if channel == nil {
		return models.SensorStream{}, false
	}

	stream := models.SensorStream{
		Name:          name,
		Kind:          channel.Kind,
		NominalRateHz: channel.SampleRateHz,
	}

	// Concatenate raw payloads in packet order.
	for _, p := range packets {
		c := findChannel(p, name)
		if c == nil {
			continue
		}
		ts := c.SampleTimestamps(p.PacketStartUs)
		stream.UnalteredTimestamps = append(stream.UnalteredTimestamps, ts...)
		stream.Values = append(stream.Values, c.Values...)
	}
	if len(stream.Values) == 0 {
		return models.SensorStream{}, false
	}

	// Correct every timestamp through the model. An invalid model predicts
	// the identity, so the uncorrected (pass-through) case falls out here.
	applied := a.req.CorrectionEnabled() && model.Valid
	stream.Timestamps = make([]float64, len(stream.UnalteredTimestamps))
	for i, t := range stream.UnalteredTimestamps {
		if applied {
			stream.Timestamps[i] = model.Predict(t)
		} else {
			stream.Timestamps[i] = t
		}
	}
	stream.Altered = applied

	stream.Quality = make([]models.SampleQuality, len(stream.Values))
	for i := range stream.Quality {
		stream.Quality[i] = models.QualityMeasured
	}

	a.fillGaps(&stream, report, key)
	a.truncate(&stream, report, key)

	// Interval statistics describe the assembled series, so they are
	// computed after filling and truncation, not on the raw timeline.
	stream.MeanIntervalUs, stream.IntervalStdDevUs = algorithms.IntervalStats(stream.Timestamps)
	return stream, true
}

// fillGaps detects timing gaps on the corrected timeline and fills each
// with NaN placeholder samples at the stream's mean interval, so consumers
// see a continuous, evenly-indexable series. Configuration boundaries never
// reach here; they were split into separate segments upstream.
func (a *Assembler) fillGaps(stream *models.SensorStream, report *models.AssemblyReport, key string) {
	nominal := nominalInterval(stream)
	if nominal <= 0 {
		return
	}

	gaps := algorithms.DetectGaps(stream.Timestamps, nominal, a.req.GapToleranceMultiplier)
	if len(gaps) == 0 {
		return
	}

	step := nominal

	n := len(stream.Timestamps)
	ts := make([]float64, 0, n)
	values := make(models.FloatColumn, 0, n)
	quality := make([]models.SampleQuality, 0, n)
	unaltered := make(models.FloatColumn, 0, n)

	gapIdx := 0
	for i := 0; i < n; i++ {
		if i > 0 && gapIdx < len(gaps) &&
			stream.Timestamps[i-1] == gaps[gapIdx].StartUs &&
			stream.Timestamps[i] == gaps[gapIdx].EndUs {
			count := placeholderCount(gaps[gapIdx].EndUs-gaps[gapIdx].StartUs, step)
			for k := 1; k <= count; k++ {
				ts = append(ts, gaps[gapIdx].StartUs+float64(k)*step)
				values = append(values, math.NaN())
				quality = append(quality, models.QualityFilled)
				unaltered = append(unaltered, math.NaN())
			}
			gaps[gapIdx].Filled = true
			report.GapsFilled++
			gapIdx++
		}
		ts = append(ts, stream.Timestamps[i])
		values = append(values, stream.Values[i])
		quality = append(quality, stream.Quality[i])
		unaltered = append(unaltered, stream.UnalteredTimestamps[i])
	}

	stream.Timestamps = ts
	stream.Values = values
	stream.Quality = quality
	stream.UnalteredTimestamps = unaltered
	stream.Gaps = append(stream.Gaps, gaps...)
	stream.Altered = true
}

// placeholderCount returns how many evenly spaced placeholders fit in a
// gap of the given span without touching either boundary sample.
func placeholderCount(spanUs, stepUs float64) int {
	count := int(math.Round(spanUs/stepUs)) - 1
	if count < 0 {
		return 0
	}
	return count
}

// truncate cuts the stream to the requested window exactly, keeping the
// padding zone tagged QualityPadding so callers can tell requested-range
// data from context. Samples inside the padded range are always retained;
// only when the padded range itself is empty do the two samples nearest
// the window survive instead, so boundary interpolation stays possible.
func (a *Assembler) truncate(stream *models.SensorStream, report *models.AssemblyReport, key string) {
	start := float64(a.req.StartUs)
	end := float64(a.req.EndUs)
	lo := start - float64(a.req.PaddingUs)
	hi := end + float64(a.req.PaddingUs)

	n := len(stream.Timestamps)
	keep := make([]int, 0, n)
	for i, t := range stream.Timestamps {
		if t >= lo && t <= hi {
			keep = append(keep, i)
		}
	}

	if len(keep) == 0 {
		// Even the padded range is empty: fall back to the two samples
		// nearest the window, wherever they sit.
		keep = nearestTwo(stream.Timestamps, start, end)
		report.Add(key, models.StageTruncate, fmt.Sprintf(
			"sensor %q: window removed all samples, retained %d nearest", stream.Name, len(keep)))
	}

	if len(keep) != n {
		stream.Altered = true
	}

	ts := make([]float64, len(keep))
	values := make(models.FloatColumn, len(keep))
	quality := make([]models.SampleQuality, len(keep))
	unaltered := make(models.FloatColumn, len(keep))
	for j, i := range keep {
		ts[j] = stream.Timestamps[i]
		values[j] = stream.Values[i]
		unaltered[j] = stream.UnalteredTimestamps[i]
		q := stream.Quality[i]
		// Retained context outside the requested range is padding, unless
		// it is already a gap placeholder.
		if q == models.QualityMeasured && (ts[j] < start || ts[j] > end) {
			q = models.QualityPadding
		}
		quality[j] = q
	}

	stream.Timestamps = ts
	stream.Values = values
	stream.Quality = quality
	stream.UnalteredTimestamps = unaltered
}

// nearestTwo returns the indices of the up-to-two timestamps closest to
// the interval [start, end], in ascending index order.
func nearestTwo(timestamps []float64, start, end float64) []int {
	type cand struct {
		idx  int
		dist float64
	}
	best := make([]cand, 0, 2)
	for i, t := range timestamps {
		d := 0.0
		switch {
		case t < start:
			d = start - t
		case t > end:
			d = t - end
		}
		c := cand{idx: i, dist: d}
		switch {
		case len(best) < 2:
			best = append(best, c)
		case c.dist < best[0].dist || c.dist < best[1].dist:
			if best[0].dist > best[1].dist {
				best[0] = c
			} else {
				best[1] = c
			}
		}
	}

	idxs := make([]int, 0, len(best))
	for _, c := range best {
		idxs = append(idxs, c.idx)
	}
	if len(idxs) == 2 && idxs[0] > idxs[1] {
		idxs[0], idxs[1] = idxs[1], idxs[0]
	}
	return idxs
}

// nominalInterval picks the spacing gap detection should expect: the
// declared rate when the sensor has one, otherwise the observed median
// delta. The mean would be skewed upward by the very gaps being detected.
func nominalInterval(stream *models.SensorStream) float64 {
	if stream.NominalRateHz > 0 {
		return 1e6 / stream.NominalRateHz
	}
	return algorithms.MedianInterval(stream.Timestamps)
}

func findChannel(p *models.DecodedPacket, name string) *models.SensorChannel {
	for i := range p.Sensors {
		if p.Sensors[i].Name == name {
			return &p.Sensors[i]
		}
	}
	return nil
}
