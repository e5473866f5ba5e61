package query

import (
	"errors"
	"math"
	"strconv"
)

// ErrBadRequest marks client-side validation failures the HTTP layer
// maps to 400.
var ErrBadRequest = errors.New("bad request")

// Float marshals NaN as JSON null, the wire convention for missing data.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(f)) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'f', -1, 64), nil
}

// Floats marshals a series with NaN cells as nulls.
type Floats []float64

func (fs Floats) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, len(fs)*8+2)
	buf = append(buf, '[')
	for i, f := range fs {
		if i > 0 {
			buf = append(buf, ',')
		}
		if math.IsNaN(f) {
			buf = append(buf, "null"...)
		} else {
			buf = strconv.AppendFloat(buf, f, 'f', -1, 64)
		}
	}
	return append(buf, ']'), nil
}
