package models

// Gap marks a discontinuity in a sensor's timestamp series that exceeded
// the tolerance for the nominal interval.
type Gap struct {
	StartUs float64 `json:"start_us"`
	EndUs   float64 `json:"end_us"`
	// Filled is true when placeholder samples were inserted across the gap;
	// false means the gap was a configuration boundary that started a new
	// segment instead.
	Filled bool `json:"filled"`
}

// SensorStream is one sensor's assembled data for one device segment.
// Columns are parallel struct-of-arrays buffers: Timestamps, Values and
// Quality always have equal length. UnalteredTimestamps preserves the
// original (pre-correction) device timestamps for measured samples and is
// never modified after assembly; filled placeholders hold NaN there.
type SensorStream struct {
	Name          string     `json:"name"`
	Kind          SensorKind `json:"kind"`
	NominalRateHz float64    `json:"nominal_rate_hz"`

	Timestamps []float64       `json:"timestamps"` // corrected, microseconds
	Values     FloatColumn     `json:"values"`     // NaN for filled placeholders
	Quality    []SampleQuality `json:"quality"`

	UnalteredTimestamps FloatColumn `json:"unaltered_timestamps"`

	MeanIntervalUs   float64 `json:"mean_interval_us"`
	IntervalStdDevUs float64 `json:"interval_stddev_us"`
	Altered          bool    `json:"altered"` // true once correction or gap-filling modified the stream
	Gaps             []Gap   `json:"gaps,omitempty"`
}

// OffsetModelSummary is the reportable shape of a fitted offset model.
// A model with Valid=false still produced identity (no-op) corrections.
type OffsetModelSummary struct {
	Valid       bool          `json:"valid"`
	InterceptUs float64       `json:"intercept_us"` // base offset at the reference time
	Slope       float64       `json:"slope"`        // clock drift, microseconds per microsecond
	ScoreUs     NullableFloat `json:"score_us"`     // residual scatter of the fit, lower is better
	SampleCount int           `json:"sample_count"`
}

// DeviceSegment is a contiguous run of packets from one device sharing a
// single sensor configuration and a single offset model. A device whose
// configuration changes mid-range contributes multiple segments under the
// same device key.
type DeviceSegment struct {
	SegmentID string             `json:"segment_id"`
	DeviceKey string             `json:"device_key"`
	DeviceID  string             `json:"device_id"`
	StartUs   float64            `json:"start_us"`
	EndUs     float64            `json:"end_us"`
	Model     OffsetModelSummary `json:"model"`
	Sync      SyncStats          `json:"sync"`
	Streams   []SensorStream     `json:"streams"`
}

// DataWindow is the top-level assembly output: the bounded, corrected,
// gap-handled result for a requested time range across devices. Owned by
// the caller once assembly completes.
type DataWindow struct {
	WindowID    string                     `json:"window_id"`
	StartUs     int64                      `json:"start_us"`
	EndUs       int64                      `json:"end_us"`
	PaddingUs   int64                      `json:"padding_us"`
	Devices     map[string][]DeviceSegment `json:"devices"` // device key -> segments
	CreatedAtMs int64                      `json:"created_at_ms"`
}

// SegmentCount returns the total number of segments across all devices.
func (w *DataWindow) SegmentCount() int {
	n := 0
	for _, segs := range w.Devices {
		n += len(segs)
	}
	return n
}

// WindowSummary is the persisted shape of an assembled window.
type WindowSummary struct {
	WindowID     string `json:"window_id"`
	StartUs      int64  `json:"start_us"`
	EndUs        int64  `json:"end_us"`
	PaddingUs    int64  `json:"padding_us"`
	DeviceCount  int    `json:"device_count"`
	SegmentCount int    `json:"segment_count"`
	ErrorCount   int    `json:"error_count"`
	CreatedAtMs  int64  `json:"created_at_ms"`
}

// SegmentSummary is the persisted per-segment model summary.
type SegmentSummary struct {
	SegmentID   string  `json:"segment_id"`
	WindowID    string  `json:"window_id"`
	DeviceKey   string  `json:"device_key"`
	DeviceID    string  `json:"device_id"`
	StartUs     float64 `json:"start_us"`
	EndUs       float64 `json:"end_us"`
	ModelValid  bool    `json:"model_valid"`
	InterceptUs float64 `json:"intercept_us"`
	Slope       float64 `json:"slope"`
	ScoreUs     float64 `json:"score_us"`
	SampleCount int     `json:"sample_count"`
	StreamCount int     `json:"stream_count"`
}
