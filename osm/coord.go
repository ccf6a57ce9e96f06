package osm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coordinate range invariants (§3).
const (
	LatMin = -90.0
	LatMax = 90.0
	LonMin = -180.0
	LonMax = 180.0

	// MaxGeohashLat is the upper clamp applied to a latitude before
	// geohash encoding, to work around a library edge case at the pole.
	MaxGeohashLat = 89.999999999999992
)

// scaleDigits returns floor(log10(scale)), the number of fractional
// digits a decoded coordinate string is padded to.
func scaleDigits(scale int64) int {
	if scale <= 1 {
		return 0
	}
	return int(math.Floor(math.Log10(float64(scale))))
}

// EncodeCoordinate converts a latitude or longitude value into the
// fixed-point integer representation value * scale. value may be a
// string (e.g. "12.3456789"), whose fractional digits beyond
// floor(log10(scale)) are truncated, or a float64, whose fractional part
// is rounded.
func EncodeCoordinate(value interface{}, scale int64) (int64, error) {
	switch v := value.(type) {
	case string:
		return encodeCoordinateString(v, scale)
	case float64:
		return encodeCoordinateFloat(v, scale)
	case int64:
		return v * scale, nil
	case int:
		return int64(v) * scale, nil
	default:
		return 0, fmt.Errorf("osm: cannot encode coordinate of type %T", value)
	}
}

func encodeCoordinateString(s string, scale int64) (int64, error) {
	digits := scaleDigits(scale)

	neg := false
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}

	if len(fracPart) > digits {
		fracPart = fracPart[:digits]
	} else {
		fracPart = fracPart + strings.Repeat("0", digits-len(fracPart))
	}

	combined := intPart + fracPart
	if combined == "" {
		combined = "0"
	}

	n, err := strconv.ParseInt(combined, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("osm: cannot encode coordinate %q: %v", s, err)
	}
	if neg {
		n = -n
	}
	return n, nil
}

func encodeCoordinateFloat(v float64, scale int64) (int64, error) {
	neg := v < 0
	if neg {
		v = -v
	}
	intPart := math.Floor(v)
	fracPart := v - intPart

	n := int64(intPart)*scale + int64(math.Round(fracPart*float64(scale)))
	if neg {
		n = -n
	}
	return n, nil
}

// DecodeCoordinate converts a fixed-point integer back to its canonical
// "<int>.<frac>" string representation, with frac zero-padded to
// floor(log10(scale)) digits.
func DecodeCoordinate(encoded int64, scale int64) string {
	digits := scaleDigits(scale)

	neg := encoded < 0
	if neg {
		encoded = -encoded
	}

	intPart := encoded / scale
	fracPart := encoded % scale

	out := fmt.Sprintf("%d.%0*d", intPart, digits, fracPart)
	if neg {
		out = "-" + out
	}
	return out
}

// DecodeCoordinateFloat is the float64 counterpart of DecodeCoordinate
// (encoded / scale), for callers that need a number rather than a
// canonical string, such as the bbox filter in §4.9 step 2.
func DecodeCoordinateFloat(encoded int64, scale int64) float64 {
	return float64(encoded) / float64(scale)
}

// ValidateLat reports whether lat falls within [LatMin, LatMax].
func ValidateLat(lat float64) error {
	if lat < LatMin || lat > LatMax {
		return BadRequestf("latitude %v out of range [%v, %v]", lat, LatMin, LatMax)
	}
	return nil
}

// ValidateLon reports whether lon falls within [LonMin, LonMax].
func ValidateLon(lon float64) error {
	if lon < LonMin || lon > LonMax {
		return BadRequestf("longitude %v out of range [%v, %v]", lon, LonMin, LonMax)
	}
	return nil
}

// ClampGeohashLat clamps lat to MaxGeohashLat before geohash encoding, to
// work around a library edge case at the pole.
func ClampGeohashLat(lat float64) float64 {
	if lat > MaxGeohashLat {
		return MaxGeohashLat
	}
	return lat
}
