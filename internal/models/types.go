package models

// SensorKind identifies the kind of sensor a channel belongs to.
// The set is closed: unknown kinds are rejected at packet validation.
type SensorKind string

const (
	SensorKindAudio         SensorKind = "AUDIO"
	SensorKindAccelerometer SensorKind = "ACCELEROMETER"
	SensorKindGyroscope     SensorKind = "GYROSCOPE"
	SensorKindMagnetometer  SensorKind = "MAGNETOMETER"
	SensorKindBarometer     SensorKind = "BAROMETER"
	SensorKindLight         SensorKind = "LIGHT"
	SensorKindLocation      SensorKind = "LOCATION"
	SensorKindProximity     SensorKind = "PROXIMITY"
	SensorKindTemperature   SensorKind = "TEMPERATURE"
	SensorKindHumidity      SensorKind = "HUMIDITY"
)

// SensorSchema describes the data channel layout for one sensor kind.
type SensorSchema struct {
	Kind          SensorKind
	Unit          string
	DefaultRateHz float64 // 0 means the sensor reports per-sample timestamps
}

// SchemaFor returns the channel schema for a sensor kind.
// The second return value is false for kinds outside the closed set.
func SchemaFor(kind SensorKind) (SensorSchema, bool) {
	switch kind {
	case SensorKindAudio:
		return SensorSchema{Kind: kind, Unit: "normalized counts", DefaultRateHz: 800}, true
	case SensorKindAccelerometer:
		return SensorSchema{Kind: kind, Unit: "m/s^2", DefaultRateHz: 0}, true
	case SensorKindGyroscope:
		return SensorSchema{Kind: kind, Unit: "rad/s", DefaultRateHz: 0}, true
	case SensorKindMagnetometer:
		return SensorSchema{Kind: kind, Unit: "uT", DefaultRateHz: 0}, true
	case SensorKindBarometer:
		return SensorSchema{Kind: kind, Unit: "kPa", DefaultRateHz: 0}, true
	case SensorKindLight:
		return SensorSchema{Kind: kind, Unit: "lux", DefaultRateHz: 0}, true
	case SensorKindLocation:
		return SensorSchema{Kind: kind, Unit: "degrees", DefaultRateHz: 0}, true
	case SensorKindProximity:
		return SensorSchema{Kind: kind, Unit: "cm", DefaultRateHz: 0}, true
	case SensorKindTemperature:
		return SensorSchema{Kind: kind, Unit: "degC", DefaultRateHz: 0}, true
	case SensorKindHumidity:
		return SensorSchema{Kind: kind, Unit: "%RH", DefaultRateHz: 0}, true
	default:
		return SensorSchema{}, false
	}
}

// SampleQuality marks how a sample entered a stream.
type SampleQuality string

const (
	// QualityMeasured is a sample delivered by the device itself.
	QualityMeasured SampleQuality = "MEASURED"
	// QualityFilled is a NaN placeholder inserted while filling a timing gap.
	QualityFilled SampleQuality = "FILLED"
	// QualityPadding is a real sample retained outside the requested range
	// (the padding zone or the nearest-neighbour truncation fallback).
	QualityPadding SampleQuality = "PADDING"
)

// WindowRequest is the full configuration surface for one assembly run.
// Every knob is explicit here; nothing in the core reads the environment.
type WindowRequest struct {
	StartUs   int64 `json:"start_us" binding:"required"` // window start, microseconds since epoch UTC
	EndUs     int64 `json:"end_us" binding:"required"`   // window end, microseconds since epoch UTC
	PaddingUs int64 `json:"padding_us"`                  // extra context retained outside the bounds

	GapToleranceMultiplier float64 `json:"gap_tolerance_multiplier"` // factor of nominal interval that defines a gap
	MinTimesyncSamples     int     `json:"min_timesync_samples"`     // minimum packets with exchanges for a valid model
	MaxResidualStdDevUs    float64 `json:"max_residual_stddev_us"`   // model rejection bound on residual scatter
	ApplyCorrection        *bool   `json:"apply_correction"`         // nil means true; false disables offset correction
	Workers                int     `json:"workers"`                  // per-device parallelism, 0 means default
}

// Default request parameters. Thresholds for the constant-vs-drift model
// decision are deliberately configuration, not constants baked into the fit.
const (
	DefaultGapToleranceMultiplier = 2.0
	DefaultMinTimesyncSamples     = 3
	DefaultMaxResidualStdDevUs    = 100_000 // 100 ms of scatter rejects the model
	DefaultWorkers                = 4
)

// Normalize fills zero-valued knobs with defaults, mirroring how the
// filter config is defaulted at construction elsewhere in the codebase.
func (r *WindowRequest) Normalize() {
	if r.GapToleranceMultiplier == 0 {
		r.GapToleranceMultiplier = DefaultGapToleranceMultiplier
	}
	if r.MinTimesyncSamples == 0 {
		r.MinTimesyncSamples = DefaultMinTimesyncSamples
	}
	if r.MaxResidualStdDevUs == 0 {
		r.MaxResidualStdDevUs = DefaultMaxResidualStdDevUs
	}
	if r.Workers <= 0 {
		r.Workers = DefaultWorkers
	}
}

// CorrectionEnabled reports whether offset correction should be applied.
func (r *WindowRequest) CorrectionEnabled() bool {
	return r.ApplyCorrection == nil || *r.ApplyCorrection
}

// ErrorStage locates where in the pipeline a recoverable problem occurred.
type ErrorStage string

const (
	StagePacket   ErrorStage = "PACKET"    // structural problem, packet skipped
	StageTimeSync ErrorStage = "TIME_SYNC" // data-quality problem in the sync channel
	StageSegment  ErrorStage = "SEGMENT"   // sensor configuration discontinuity
	StageTruncate ErrorStage = "TRUNCATE"  // truncation removed or replaced data
	StageAssembly ErrorStage = "ASSEMBLY"  // whole-device failure, device omitted
)

// AssemblyError is one recovered problem attributed to a device.
type AssemblyError struct {
	DeviceKey string     `json:"device_key"`
	Stage     ErrorStage `json:"stage"`
	Message   string     `json:"message"`
}

// AssemblyReport accumulates per-device and per-packet issues so callers can
// inspect partial-failure detail without losing the data that was assembled.
type AssemblyReport struct {
	Errors         []AssemblyError `json:"errors"`
	PacketsSkipped int             `json:"packets_skipped"`
	DevicesFailed  int             `json:"devices_failed"`
	GapsFilled     int             `json:"gaps_filled"`
}

// Add records one recovered problem.
func (r *AssemblyReport) Add(deviceKey string, stage ErrorStage, message string) {
	r.Errors = append(r.Errors, AssemblyError{
		DeviceKey: deviceKey,
		Stage:     stage,
		Message:   message,
	})
}

// Merge folds a per-device report into the batch report.
func (r *AssemblyReport) Merge(other *AssemblyReport) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.PacketsSkipped += other.PacketsSkipped
	r.DevicesFailed += other.DevicesFailed
	r.GapsFilled += other.GapsFilled
}

// WebSocket message types for the packet feed

type MessageType string

const (
	MessageTypeConnected MessageType = "CONNECTED"
	MessageTypePacket    MessageType = "PACKET"
	MessageTypePacketAck MessageType = "PACKET_ACK"
	MessageTypeError     MessageType = "ERROR"
)

type WSMessage struct {
	Type MessageType `json:"type"`
}

type ConnectedMessage struct {
	Type       MessageType `json:"type"`
	DeviceID   string      `json:"deviceId"`
	ServerTime int64       `json:"serverTime"` // microseconds since epoch
}

type PacketMessage struct {
	Type   MessageType   `json:"type"`
	Packet DecodedPacket `json:"packet"`
}

type PacketAckMessage struct {
	Type        MessageType `json:"type"`
	DeviceKey   string      `json:"deviceKey"`
	StoredCount int         `json:"storedCount"`
}

type ErrorMessage struct {
	Type    MessageType `json:"type"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}
