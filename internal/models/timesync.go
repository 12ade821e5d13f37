package models

import "sort"

// Exchange is a single round-trip message exchange between a device and the
// synchronization server: device send, server receive, server send, device
// receive. Six-value exchanges additionally carry a machine-time pair taken
// from the device's monotonic clock. All values are microseconds.
type Exchange struct {
	DeviceSend  float64
	ServerRecv  float64
	ServerSend  float64
	DeviceRecv  float64
	MachineSend float64
	MachineRecv float64
	HasMachine  bool
}

// Monotonic reports whether the exchange's timestamps are non-decreasing.
// Exchanges violating this are discarded, not fatal.
func (e *Exchange) Monotonic() bool {
	if e.DeviceSend > e.ServerRecv || e.ServerRecv > e.ServerSend || e.ServerSend > e.DeviceRecv {
		return false
	}
	if e.HasMachine && e.MachineSend > e.MachineRecv {
		return false
	}
	return true
}

// SameCore reports whether two exchanges carry identical round-trip
// timestamps. Devices occasionally repeat a prior exchange verbatim in the
// same packet; duplicates carry no information and are dropped.
func (e *Exchange) SameCore(other *Exchange) bool {
	return e.DeviceSend == other.DeviceSend &&
		e.ServerRecv == other.ServerRecv &&
		e.ServerSend == other.ServerSend &&
		e.DeviceRecv == other.DeviceRecv
}

// TimeSyncSample is one packet's reduced exchange result: the latency and
// offset of the best exchange that packet carried. Derived once per packet
// at analysis time and immutable afterward.
type TimeSyncSample struct {
	LatencyUs     float64 `json:"latency_us"` // non-negative
	OffsetUs      float64 `json:"offset_us"`  // signed, corrected = device + offset
	ExchangeIndex int     `json:"exchange_index"`
	PacketStartUs float64 `json:"packet_start_us"`
}

// TimeSyncSeries is the ordered per-device sample series across packets.
// Invariant: sorted by packet start time.
type TimeSyncSeries []TimeSyncSample

// Sort orders the series by packet start time in place.
func (s TimeSyncSeries) Sort() {
	sort.Slice(s, func(i, j int) bool {
		return s[i].PacketStartUs < s[j].PacketStartUs
	})
}

// SyncStats summarizes a device's sample series. All statistics are NaN
// when the series is empty; an empty series is a data-quality condition,
// never an error.
type SyncStats struct {
	Count           int           `json:"count"`
	MeanLatencyUs   NullableFloat `json:"mean_latency_us"`
	MedianLatencyUs NullableFloat `json:"median_latency_us"`
	LatencyStdDevUs NullableFloat `json:"latency_stddev_us"`
	MeanOffsetUs    NullableFloat `json:"mean_offset_us"`
	MedianOffsetUs  NullableFloat `json:"median_offset_us"`
	OffsetStdDevUs  NullableFloat `json:"offset_stddev_us"`
}
