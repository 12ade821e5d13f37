package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// NaN is the placeholder value for filled samples and undefined statistics.
// encoding/json refuses NaN, so the types below map it to JSON null both
// ways; inside the engine NaN stays a plain float64.

// NullableFloat is a float64 that serializes NaN as null.
type NullableFloat float64

func (f NullableFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *NullableFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = NullableFloat(math.NaN())
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = NullableFloat(v)
	return nil
}

// IsNaN reports whether the value is undefined.
func (f NullableFloat) IsNaN() bool {
	return math.IsNaN(float64(f))
}

// FloatColumn is a column buffer whose NaN entries serialize as null.
type FloatColumn []float64

func (c FloatColumn) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
		} else {
			buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (c *FloatColumn) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	col := make(FloatColumn, len(raw))
	for i, v := range raw {
		if v == nil {
			col[i] = math.NaN()
		} else {
			col[i] = *v
		}
	}
	*c = col
	return nil
}
