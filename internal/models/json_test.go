package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestNullableFloat_RoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		value    NullableFloat
		expected string
	}{
		{name: "Finite value", value: 1.5, expected: "1.5"},
		{name: "NaN becomes null", value: NullableFloat(math.NaN()), expected: "null"},
		{name: "Infinity becomes null", value: NullableFloat(math.Inf(1)), expected: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.value)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(data) != tt.expected {
				t.Errorf("Marshal = %s, expected %s", data, tt.expected)
			}

			var back NullableFloat
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if tt.value.IsNaN() {
				if !back.IsNaN() {
					t.Errorf("Expected NaN after round trip, got %g", float64(back))
				}
			} else if back != tt.value {
				t.Errorf("Round trip changed %g to %g", float64(tt.value), float64(back))
			}
		})
	}
}

func TestFloatColumn_NaNEntriesSerializeAsNull(t *testing.T) {
	col := FloatColumn{1, math.NaN(), 3}

	data, err := json.Marshal(col)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[1,null,3]" {
		t.Errorf("Marshal = %s, expected [1,null,3]", data)
	}

	var back FloatColumn
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back) != 3 || back[0] != 1 || !math.IsNaN(back[1]) || back[2] != 3 {
		t.Errorf("Unexpected round trip result: %v", back)
	}
}

func TestFloatColumn_Empty(t *testing.T) {
	data, err := json.Marshal(FloatColumn{})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Empty column must serialize as [], got %s", data)
	}
}
