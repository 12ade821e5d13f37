package models

import (
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		packet  DecodedPacket
		wantErr bool
	}{
		{
			name: "Valid packet with timestamps",
			packet: DecodedPacket{
				DeviceID: "phone-1",
				Sensors: []SensorChannel{
					{Name: "pressure", Kind: SensorKindBarometer, Timestamps: []float64{0, 10}, Values: []float64{1, 2}},
				},
			},
			wantErr: false,
		},
		{
			name: "Valid packet with rate instead of timestamps",
			packet: DecodedPacket{
				DeviceID: "phone-1",
				Sensors: []SensorChannel{
					{Name: "mic", Kind: SensorKindAudio, SampleRateHz: 800, Values: []float64{1, 2, 3}},
				},
			},
			wantErr: false,
		},
		{
			name:    "Missing device id",
			packet:  DecodedPacket{Sensors: []SensorChannel{{Name: "pressure", Kind: SensorKindBarometer, SampleRateHz: 1, Values: []float64{1}}}},
			wantErr: true,
		},
		{
			name:    "No sensor channels",
			packet:  DecodedPacket{DeviceID: "phone-1"},
			wantErr: true,
		},
		{
			name: "Unknown sensor kind",
			packet: DecodedPacket{
				DeviceID: "phone-1",
				Sensors:  []SensorChannel{{Name: "x", Kind: "SONAR", SampleRateHz: 1, Values: []float64{1}}},
			},
			wantErr: true,
		},
		{
			name: "Timestamp and value length mismatch",
			packet: DecodedPacket{
				DeviceID: "phone-1",
				Sensors:  []SensorChannel{{Name: "pressure", Kind: SensorKindBarometer, Timestamps: []float64{0}, Values: []float64{1, 2}}},
			},
			wantErr: true,
		},
		{
			name: "Neither timestamps nor rate",
			packet: DecodedPacket{
				DeviceID: "phone-1",
				Sensors:  []SensorChannel{{Name: "pressure", Kind: SensorKindBarometer, Values: []float64{1, 2}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.packet.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDeviceKey_DistinguishesSessions(t *testing.T) {
	a := DecodedPacket{DeviceID: "phone-1", DeviceUUID: "abc", SessionStartUs: 1000}
	b := DecodedPacket{DeviceID: "phone-1", DeviceUUID: "abc", SessionStartUs: 2000}

	if a.DeviceKey() == b.DeviceKey() {
		t.Error("A session restart must produce a new device key")
	}
	if a.DeviceKey() != "phone-1:abc:1000" {
		t.Errorf("Unexpected key format: %s", a.DeviceKey())
	}
}

func TestSampleTimestamps_DerivedFromRate(t *testing.T) {
	// 100 Hz means 10000 μs between samples.
	c := SensorChannel{Name: "mic", Kind: SensorKindAudio, SampleRateHz: 100, Values: []float64{1, 2, 3}}

	ts := c.SampleTimestamps(50000)
	expected := []float64{50000, 60000, 70000}
	if len(ts) != len(expected) {
		t.Fatalf("Expected %d timestamps, got %d", len(expected), len(ts))
	}
	for i := range expected {
		if ts[i] != expected[i] {
			t.Errorf("Timestamp %d = %g, expected %g", i, ts[i], expected[i])
		}
	}
}

func TestSampleTimestamps_PrefersExplicit(t *testing.T) {
	c := SensorChannel{
		Name: "pressure", Kind: SensorKindBarometer,
		SampleRateHz: 100,
		Timestamps:   []float64{5, 6},
		Values:       []float64{1, 2},
	}

	ts := c.SampleTimestamps(0)
	if ts[0] != 5 || ts[1] != 6 {
		t.Errorf("Explicit timestamps must win over the rate, got %v", ts)
	}
}
