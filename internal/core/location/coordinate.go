package location

import (
	"fmt"
	"math"
	"strings"

	"github.com/rwcarlsen/goexif/tiff"
)

// GeoCoordinate is one axis of a position in degrees, minutes and seconds
// with its hemisphere reference (N, S, E or W).
type GeoCoordinate struct {
	Degrees float64
	Minutes float64
	Seconds float64
	Ref     string
}

// Convert returns c as signed decimal degrees rounded to six places.
// Southern and western references negate the value; any other reference,
// including an unrecognised one, leaves it positive.
func Convert(c GeoCoordinate) (float64, error) {
	for _, v := range [...]float64{c.Degrees, c.Minutes, c.Seconds} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non-finite component %v", ErrConversionFailure, v)
		}
	}

	d := c.Degrees + c.Minutes/60 + c.Seconds/3600
	switch normalizeRef(c.Ref) {
	case "S", "W":
		d = -d
	}
	d = math.Round(d*1e6) / 1e6
	if d == 0 {
		// no negative zero
		return 0, nil
	}
	return d, nil
}

func normalizeRef(ref string) string {
	return strings.ToUpper(strings.TrimSpace(strings.TrimRight(ref, "\x00")))
}

func parseCoordinate(value, ref *tiff.Tag) (GeoCoordinate, error) {
	if value.Count != 3 {
		return GeoCoordinate{}, fmt.Errorf("%w: want 3 components, got %d", ErrConversionFailure, value.Count)
	}

	var parts [3]float64
	for i := range parts {
		num, den, err := value.Rat2(i)
		if err != nil {
			return GeoCoordinate{}, fmt.Errorf("%w: component %d: %v", ErrConversionFailure, i, err)
		}
		if den == 0 {
			return GeoCoordinate{}, fmt.Errorf("%w: component %d has zero denominator", ErrConversionFailure, i)
		}
		parts[i] = float64(num) / float64(den)
	}

	r, err := ref.StringVal()
	if err != nil {
		return GeoCoordinate{}, fmt.Errorf("%w: reference: %v", ErrConversionFailure, err)
	}

	return GeoCoordinate{
		Degrees: parts[0],
		Minutes: parts[1],
		Seconds: parts[2],
		Ref:     r,
	}, nil
}
