package osm

import "testing"

func TestEncodeDecodeCoordinateRoundTrip(t *testing.T) {
	cases := []struct {
		in    string
		scale int64
		want  int64
	}{
		{"12.3456789", 10000000, 123456789},
		{"-1.0000000", 10000000, -10000000},
		{"0", 10000000, 0},
		{"45.5", 10000000, 455000000},
	}

	for _, c := range cases {
		got, err := EncodeCoordinate(c.in, c.scale)
		if err != nil {
			t.Fatalf("EncodeCoordinate(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("EncodeCoordinate(%q) = %d, want %d", c.in, got, c.want)
		}
		back, err := EncodeCoordinate(DecodeCoordinate(got, c.scale), c.scale)
		if err != nil || back != got {
			t.Errorf("EncodeCoordinate(DecodeCoordinate(%d)) = %d, %v; want %d", got, back, err, got)
		}
	}
}

func TestDecodeCoordinatePadding(t *testing.T) {
	got := DecodeCoordinate(123456789, 10000000)
	want := "12.3456789"
	if got != want {
		t.Errorf("DecodeCoordinate = %q, want %q", got, want)
	}

	got = DecodeCoordinate(10, 10000000)
	want = "0.0000010"
	if got != want {
		t.Errorf("DecodeCoordinate = %q, want %q", got, want)
	}
}

func TestDecodeCoordinateNegative(t *testing.T) {
	got := DecodeCoordinate(-10000000, 10000000)
	want := "-1.0000000"
	if got != want {
		t.Errorf("DecodeCoordinate = %q, want %q", got, want)
	}
}

func TestClampGeohashLat(t *testing.T) {
	if ClampGeohashLat(90.0) != MaxGeohashLat {
		t.Errorf("ClampGeohashLat(90.0) = %v, want %v", ClampGeohashLat(90.0), MaxGeohashLat)
	}
	if ClampGeohashLat(10.0) != 10.0 {
		t.Errorf("ClampGeohashLat(10.0) should be a no-op below the clamp")
	}
}

func TestValidateLatLon(t *testing.T) {
	if err := ValidateLat(90.1); err == nil {
		t.Error("expected error for lat > 90")
	}
	if err := ValidateLon(-180.1); err == nil {
		t.Error("expected error for lon < -180")
	}
	if err := ValidateLat(12.34); err != nil {
		t.Errorf("unexpected error for valid lat: %v", err)
	}
}
