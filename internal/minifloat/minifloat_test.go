package minifloat

import (
	"testing"
	"time"
)

func TestEncodeDecodeSubnormal(t *testing.T) {
	for q := Quarters(0); q < implicitBit; q++ {
		v := Encode(q)
		if got := Decode(v); got != q {
			t.Errorf("Encode/Decode(%d) = %d, want %d", q, got, q)
		}
	}
}

func TestEncodeMonotonic(t *testing.T) {
	prev := Quarters(0)
	for q := Quarters(0); q < 1_000_000; q += 37 {
		v := Encode(q)
		got := Decode(v)
		if got < prev {
			t.Fatalf("Decode(Encode(%d)) = %d, went backwards from %d", q, got, prev)
		}
		prev = got
	}
}

func TestMaxExceedsOneDay(t *testing.T) {
	oneDay := Quarters(24 * 60 * 60 * 4)
	if Max() <= oneDay {
		t.Errorf("Max() = %d quarters, want > one day (%d quarters)", Max(), oneDay)
	}
}

func TestResolutionQuarterSecond(t *testing.T) {
	if Decode(Encode(1)) != 1 {
		t.Errorf("minimum resolution lost: Decode(Encode(1)) = %d, want 1", Decode(Encode(1)))
	}
}

func TestFromToDuration(t *testing.T) {
	cases := []time.Duration{
		250 * time.Millisecond,
		5 * time.Second,
		90 * time.Second,
		2 * time.Hour,
	}
	for _, d := range cases {
		v := FromDuration(d)
		got := ToDuration(v)
		if got > d || d-got >= 2*time.Second+d/8 {
			t.Errorf("FromDuration/ToDuration(%v) = %v, too far off", d, got)
		}
	}
}

func TestEncodeSaturates(t *testing.T) {
	v := Encode(Max() * 100)
	if v != 0xFF {
		t.Errorf("Encode(huge) = %#x, want saturation at 0xff", v)
	}
}
