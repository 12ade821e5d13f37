package assembler

import (
	"context"
	"math"
	"math/rand"
	"reflect"
	"testing"

	"sensor-window-service/internal/models"
)

// testPacket builds a packet with one barometer channel carrying explicit
// timestamps and values, plus an optional time-sync payload.
func testPacket(deviceID string, startUs float64, timestamps, values, timeSync []float64) *models.DecodedPacket {
	return &models.DecodedPacket{
		DeviceID:       deviceID,
		DeviceUUID:     deviceID + "-uuid",
		SessionStartUs: 1000,
		PacketStartUs:  startUs,
		Sensors: []models.SensorChannel{
			{
				Name:       "baro",
				Kind:       models.SensorKindBarometer,
				Timestamps: timestamps,
				Values:     values,
			},
		},
		TimeSync: timeSync,
	}
}

// syncPayload builds a clean exchange payload with the given offset and a
// 1000us one-way latency. The large latency keeps the exchange monotonic
// even though the server stamps sit `offset` ahead of the device clock.
func syncPayload(deviceSendUs, offsetUs float64) []float64 {
	const latency = 1000.0
	return []float64{
		deviceSendUs,
		deviceSendUs + offsetUs + latency,
		deviceSendUs + offsetUs + latency + 5,
		deviceSendUs + 2*latency + 5,
	}
}

func mustAssembler(t *testing.T, req models.WindowRequest) *Assembler {
	t.Helper()
	a, err := New(req)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestNew_RejectsInvertedWindow(t *testing.T) {
	_, err := New(models.WindowRequest{StartUs: 200, EndUs: 100})
	if err == nil {
		t.Fatal("Expected an error for end < start")
	}
}

func TestAssemble_TruncatesToWindow(t *testing.T) {
	// Samples at [5 15 25 35], window [10, 30]: output is {15, 25}.
	a := mustAssembler(t, models.WindowRequest{StartUs: 10, EndUs: 30})
	packets := []*models.DecodedPacket{
		testPacket("dev", 5, []float64{5, 15, 25, 35}, []float64{1, 2, 3, 4}, nil),
	}

	window, _ := a.Assemble(context.Background(), packets)
	segs := window.Devices[packets[0].DeviceKey()]
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	got := segs[0].Streams[0].Timestamps
	if !reflect.DeepEqual(got, []float64{15, 25}) {
		t.Errorf("Expected timestamps [15 25], got %v", got)
	}
	if !reflect.DeepEqual(segs[0].Streams[0].Values, models.FloatColumn{2, 3}) {
		t.Errorf("Expected values [2 3], got %v", segs[0].Streams[0].Values)
	}
}

func TestAssemble_EmptyTruncationKeepsNearestTwo(t *testing.T) {
	// Window [100, 200] excludes every sample; the two nearest (25, 35)
	// are retained, tagged as padding, instead of an empty stream.
	a := mustAssembler(t, models.WindowRequest{StartUs: 100, EndUs: 200})
	packets := []*models.DecodedPacket{
		testPacket("dev", 5, []float64{5, 15, 25, 35}, []float64{1, 2, 3, 4}, nil),
	}

	window, report := a.Assemble(context.Background(), packets)
	segs := window.Devices[packets[0].DeviceKey()]
	if len(segs) != 1 {
		t.Fatalf("Expected 1 segment, got %d", len(segs))
	}
	stream := segs[0].Streams[0]
	if !reflect.DeepEqual(stream.Timestamps, []float64{25, 35}) {
		t.Errorf("Expected nearest two [25 35], got %v", stream.Timestamps)
	}
	for i, q := range stream.Quality {
		if q != models.QualityPadding {
			t.Errorf("Sample %d should be tagged padding, got %s", i, q)
		}
	}
	found := false
	for _, e := range report.Errors {
		if e.Stage == models.StageTruncate {
			found = true
		}
	}
	if !found {
		t.Error("Expected a truncation entry in the report")
	}
}

func TestAssemble_PaddingOnlySamplesAllRetained(t *testing.T) {
	// Window [100, 200] with padding 80 reaches down to 20: the samples at
	// [25 35 45] sit entirely inside the padding range and every one is
	// retained, not reduced to the nearest two.
	a := mustAssembler(t, models.WindowRequest{StartUs: 100, EndUs: 200, PaddingUs: 80})
	packets := []*models.DecodedPacket{
		testPacket("dev", 25, []float64{25, 35, 45}, []float64{1, 2, 3}, nil),
	}

	window, report := a.Assemble(context.Background(), packets)
	stream := window.Devices[packets[0].DeviceKey()][0].Streams[0]
	if !reflect.DeepEqual(stream.Timestamps, []float64{25, 35, 45}) {
		t.Errorf("Expected all padding-range samples retained, got %v", stream.Timestamps)
	}
	for i, q := range stream.Quality {
		if q != models.QualityPadding {
			t.Errorf("Sample %d should be tagged padding, got %s", i, q)
		}
	}
	for _, e := range report.Errors {
		if e.Stage == models.StageTruncate {
			t.Error("Padding-range samples must not trigger the truncation fallback")
		}
	}
}

func TestAssemble_PaddingTagged(t *testing.T) {
	// Window [10, 30] with padding 10 keeps [0, 40]; the samples at 5 and
	// 35 are context, tagged padding.
	a := mustAssembler(t, models.WindowRequest{StartUs: 10, EndUs: 30, PaddingUs: 10})
	packets := []*models.DecodedPacket{
		testPacket("dev", 5, []float64{5, 15, 25, 35}, []float64{1, 2, 3, 4}, nil),
	}

	window, _ := a.Assemble(context.Background(), packets)
	stream := window.Devices[packets[0].DeviceKey()][0].Streams[0]

	if len(stream.Timestamps) != 4 {
		t.Fatalf("Expected all 4 samples retained, got %d", len(stream.Timestamps))
	}
	expected := []models.SampleQuality{
		models.QualityPadding, models.QualityMeasured,
		models.QualityMeasured, models.QualityPadding,
	}
	if !reflect.DeepEqual(stream.Quality, expected) {
		t.Errorf("Expected quality %v, got %v", expected, stream.Quality)
	}
}

func TestAssemble_GapFilledWithPlaceholders(t *testing.T) {
	// Interval 1us with a jump from 2 to 10: seven placeholders fill the
	// gap so the series stays evenly indexable.
	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 20})
	p := testPacket("dev", 0, []float64{0, 1, 2, 10, 11}, []float64{1, 1, 1, 1, 1}, nil)
	p.Sensors[0].SampleRateHz = 1e6 // 1 sample per microsecond

	window, report := a.Assemble(context.Background(), []*models.DecodedPacket{p})
	stream := window.Devices[p.DeviceKey()][0].Streams[0]

	if len(stream.Timestamps) != 12 {
		t.Fatalf("Expected 12 samples after filling, got %d: %v", len(stream.Timestamps), stream.Timestamps)
	}
	if len(stream.Gaps) != 1 || !stream.Gaps[0].Filled {
		t.Fatalf("Expected one filled gap, got %+v", stream.Gaps)
	}
	if report.GapsFilled != 1 {
		t.Errorf("Expected 1 filled gap in report, got %d", report.GapsFilled)
	}
	// Placeholders are NaN-valued and tagged FILLED.
	filled := 0
	for i, q := range stream.Quality {
		if q == models.QualityFilled {
			filled++
			if !math.IsNaN(stream.Values[i]) {
				t.Errorf("Filled sample %d should be NaN, got %g", i, stream.Values[i])
			}
			if !math.IsNaN(stream.UnalteredTimestamps[i]) {
				t.Errorf("Filled sample %d has no original timestamp, got %g", i, stream.UnalteredTimestamps[i])
			}
		}
	}
	if filled != 7 {
		t.Errorf("Expected 7 placeholders, got %d", filled)
	}
	if !stream.Altered {
		t.Error("Gap filling must set the altered flag")
	}
}

func TestAssemble_RatelessGapsDetectedByMedianInterval(t *testing.T) {
	// A sensor with no declared rate at [0 1 2 7 8 13]: the deltas are
	// [1 1 5 1 5], so the mean interval (2.6, threshold 5.2) would mask
	// both jumps, while the median (1, threshold 2) catches them.
	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 13})
	p := testPacket("dev", 0, []float64{0, 1, 2, 7, 8, 13}, []float64{1, 1, 1, 1, 1, 1}, nil)

	window, report := a.Assemble(context.Background(), []*models.DecodedPacket{p})
	stream := window.Devices[p.DeviceKey()][0].Streams[0]

	if report.GapsFilled != 2 {
		t.Fatalf("Expected 2 filled gaps, got %d: %+v", report.GapsFilled, stream.Gaps)
	}
	// Four placeholders per gap: [0..13] becomes a continuous series.
	if len(stream.Timestamps) != 14 {
		t.Fatalf("Expected 14 samples after filling, got %d: %v", len(stream.Timestamps), stream.Timestamps)
	}
	// Interval statistics describe the filled series, not the gappy input.
	if stream.MeanIntervalUs != 1 {
		t.Errorf("Expected mean interval 1 over the assembled series, got %g", stream.MeanIntervalUs)
	}
}

func TestAssemble_AppliesOffsetCorrection(t *testing.T) {
	// Three packets whose exchanges all report a constant +500us offset.
	const offset = 500.0
	packets := []*models.DecodedPacket{
		testPacket("dev", 0, []float64{0, 100}, []float64{1, 2}, syncPayload(0, offset)),
		testPacket("dev", 1000, []float64{1000, 1100}, []float64{3, 4}, syncPayload(1000, offset)),
		testPacket("dev", 2000, []float64{2000, 2100}, []float64{5, 6}, syncPayload(2000, offset)),
	}
	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 10000})

	window, _ := a.Assemble(context.Background(), packets)
	seg := window.Devices[packets[0].DeviceKey()][0]

	if !seg.Model.Valid {
		t.Fatalf("Expected valid model: %+v", seg.Model)
	}
	stream := seg.Streams[0]
	// Corrected timestamps shift by the offset; originals survive untouched.
	if stream.Timestamps[0] != 0+offset {
		t.Errorf("Expected corrected first timestamp %g, got %g", offset, stream.Timestamps[0])
	}
	if stream.UnalteredTimestamps[0] != 0 {
		t.Errorf("Unaltered timestamp modified: got %g", stream.UnalteredTimestamps[0])
	}
	if !stream.Altered {
		t.Error("Correction must set the altered flag")
	}
}

func TestAssemble_PassThroughMode(t *testing.T) {
	off := false
	packets := []*models.DecodedPacket{
		testPacket("dev", 0, []float64{0, 100}, []float64{1, 2}, syncPayload(0, 500)),
		testPacket("dev", 1000, []float64{1000, 1100}, []float64{3, 4}, syncPayload(1000, 500)),
		testPacket("dev", 2000, []float64{2000, 2100}, []float64{5, 6}, syncPayload(2000, 500)),
	}
	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 10000, ApplyCorrection: &off})

	window, _ := a.Assemble(context.Background(), packets)
	stream := window.Devices[packets[0].DeviceKey()][0].Streams[0]

	if stream.Timestamps[0] != 0 {
		t.Errorf("Pass-through mode must not shift timestamps, got %g", stream.Timestamps[0])
	}
}

func TestAssemble_NoTimeSyncYieldsInvalidModelPassThrough(t *testing.T) {
	// No exchanges anywhere: the model is invalid, data passes through
	// uncorrected, and assembly still succeeds.
	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 1000})
	packets := []*models.DecodedPacket{
		testPacket("dev", 0, []float64{0, 100, 200}, []float64{1, 2, 3}, nil),
	}

	window, report := a.Assemble(context.Background(), packets)
	seg := window.Devices[packets[0].DeviceKey()][0]

	if seg.Model.Valid {
		t.Error("Expected invalid model without timesync data")
	}
	if seg.Streams[0].Timestamps[0] != 0 {
		t.Errorf("Invalid model must not shift timestamps, got %g", seg.Streams[0].Timestamps[0])
	}
	found := false
	for _, e := range report.Errors {
		if e.Stage == models.StageTimeSync {
			found = true
		}
	}
	if !found {
		t.Error("Expected a timesync entry in the report")
	}
}

func TestAssemble_ConfigChangeSplitsSegments(t *testing.T) {
	// The barometer's rate flips between packets: two segments, not a fill.
	p1 := testPacket("dev", 0, nil, []float64{1, 2}, nil)
	p1.Sensors[0].Timestamps = nil
	p1.Sensors[0].SampleRateHz = 10
	p2 := testPacket("dev", 1e6, nil, []float64{3, 4}, nil)
	p2.Sensors[0].Timestamps = nil
	p2.Sensors[0].SampleRateHz = 20

	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 2e6})
	window, report := a.Assemble(context.Background(), []*models.DecodedPacket{p1, p2})

	segs := window.Devices[p1.DeviceKey()]
	if len(segs) != 2 {
		t.Fatalf("Expected 2 segments after a rate change, got %d", len(segs))
	}
	found := false
	for _, e := range report.Errors {
		if e.Stage == models.StageSegment {
			found = true
		}
	}
	if !found {
		t.Error("Expected a segment-boundary entry in the report")
	}
}

func TestAssemble_OrderIndependent(t *testing.T) {
	build := func() []*models.DecodedPacket {
		return []*models.DecodedPacket{
			testPacket("a", 0, []float64{0}, []float64{1}, syncPayload(0, 100)),
			testPacket("a", 1000, []float64{1000}, []float64{2}, syncPayload(1000, 100)),
			testPacket("a", 2000, []float64{2000}, []float64{3}, syncPayload(2000, 100)),
			testPacket("b", 500, []float64{500, 510}, []float64{7, 8}, syncPayload(500, 50)),
		}
	}

	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 10000})
	first, _ := a.Assemble(context.Background(), build())

	shuffled := build()
	rand.New(rand.NewSource(42)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	second, _ := a.Assemble(context.Background(), shuffled)

	if !reflect.DeepEqual(first.Devices, second.Devices) {
		t.Error("Shuffled input produced a different window")
	}
}

func TestAssemble_BadDeviceDoesNotAbortOthers(t *testing.T) {
	good := testPacket("good", 0, []float64{0, 10}, []float64{1, 2}, nil)
	bad := &models.DecodedPacket{
		// missing device id: structural error, skipped
		PacketStartUs: 0,
		Sensors:       []models.SensorChannel{{Name: "x", Kind: models.SensorKindLight, SampleRateHz: 1}},
	}

	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 100})
	window, report := a.Assemble(context.Background(), []*models.DecodedPacket{bad, good})

	if len(window.Devices) != 1 {
		t.Fatalf("Expected the healthy device assembled, got %d devices", len(window.Devices))
	}
	if report.PacketsSkipped != 1 {
		t.Errorf("Expected 1 skipped packet, got %d", report.PacketsSkipped)
	}
}

func TestAssemble_CancelledContextDropsWholeDevices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := mustAssembler(t, models.WindowRequest{StartUs: 0, EndUs: 100})
	window, _ := a.Assemble(ctx, []*models.DecodedPacket{
		testPacket("dev", 0, []float64{0, 10}, []float64{1, 2}, nil),
	})

	// Nothing half-assembled: a device either appears whole or not at all.
	for key, segs := range window.Devices {
		if len(segs) == 0 {
			t.Errorf("Device %s emitted with zero segments", key)
		}
	}
}
