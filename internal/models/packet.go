package models

import (
	"fmt"
	"sort"
)

// DecodedPacket is one packet record as delivered by the wire codec.
// All timestamps are float64 microseconds since the Unix epoch, UTC.
// The codec, network retrieval and on-disk storage live outside this
// repository; the assembly engine only ever sees this in-memory form.
type DecodedPacket struct {
	DeviceID       string          `json:"deviceId"`
	DeviceUUID     string          `json:"deviceUuid"`
	SessionStartUs float64         `json:"sessionStartUs"` // device app/session boot time
	PacketStartUs  float64         `json:"packetStartUs"`
	Sensors        []SensorChannel `json:"sensors"`
	TimeSync       []float64       `json:"timeSync,omitempty"` // flat exchange payload, possibly empty
}

// SensorChannel is one sensor's raw payload within a packet.
// Either Timestamps carries one entry per value, or SampleRateHz is set and
// timestamps are derived from the packet start time.
type SensorChannel struct {
	Name         string     `json:"name"`
	Kind         SensorKind `json:"kind"`
	SampleRateHz float64    `json:"sampleRateHz,omitempty"`
	Timestamps   []float64  `json:"timestamps,omitempty"`
	Values       []float64  `json:"values"`
}

// DeviceKey identifies one recording session of one device. Packets sharing
// a key are merged into the same window entry; a device that restarts its
// session gets a new key.
func (p *DecodedPacket) DeviceKey() string {
	return fmt.Sprintf("%s:%s:%d", p.DeviceID, p.DeviceUUID, int64(p.SessionStartUs))
}

// Validate checks the structural contract of a decoded packet.
// A failure here means the packet is skipped, never that assembly aborts.
func (p *DecodedPacket) Validate() error {
	if p.DeviceID == "" {
		return fmt.Errorf("packet missing device id")
	}
	if len(p.Sensors) == 0 {
		return fmt.Errorf("packet from %s has no sensor channels", p.DeviceID)
	}
	for _, s := range p.Sensors {
		if s.Name == "" {
			return fmt.Errorf("packet from %s has an unnamed sensor channel", p.DeviceID)
		}
		if _, ok := SchemaFor(s.Kind); !ok {
			return fmt.Errorf("sensor %q has unknown kind %q", s.Name, s.Kind)
		}
		if len(s.Timestamps) > 0 && len(s.Timestamps) != len(s.Values) {
			return fmt.Errorf("sensor %q declares %d timestamps for %d values",
				s.Name, len(s.Timestamps), len(s.Values))
		}
		if len(s.Timestamps) == 0 && s.SampleRateHz <= 0 {
			return fmt.Errorf("sensor %q has neither timestamps nor a sample rate", s.Name)
		}
	}
	return nil
}

// SampleTimestamps returns the channel's timestamps in microseconds,
// deriving them from the packet start and sample rate when the channel
// does not carry per-sample timestamps.
func (s *SensorChannel) SampleTimestamps(packetStartUs float64) []float64 {
	if len(s.Timestamps) > 0 {
		return s.Timestamps
	}
	ts := make([]float64, len(s.Values))
	stepUs := 1e6 / s.SampleRateHz
	for i := range s.Values {
		ts[i] = packetStartUs + float64(i)*stepUs
	}
	return ts
}

// NominalIntervalUs returns the expected spacing between samples in
// microseconds, or 0 when the channel declares no rate.
func (s *SensorChannel) NominalIntervalUs() float64 {
	if s.SampleRateHz <= 0 {
		return 0
	}
	return 1e6 / s.SampleRateHz
}

// SortPacketsByStart orders packets by their start timestamp in place.
// Upstream loaders may deliver results in any order.
func SortPacketsByStart(packets []*DecodedPacket) {
	sort.Slice(packets, func(i, j int) bool {
		return packets[i].PacketStartUs < packets[j].PacketStartUs
	})
}
