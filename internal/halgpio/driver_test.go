//go:build !tinygo

package halgpio

import "testing"

func TestPinArrayDriveAndSample(t *testing.T) {
	pins := NewHostPins()
	a, err := NewPinArray(pins, []WirePin{0, 1, 2})
	if err != nil {
		t.Fatalf("NewPinArray: %v", err)
	}

	if v, _ := a.Sample(); v != 0 {
		t.Fatalf("expected idle bus to read 0, got %#x", v)
	}

	if err := a.Drive(0x5); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	v, err := a.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if v != 0x5 {
		t.Fatalf("expected 0x5 after drive, got %#x", v)
	}

	if err := a.Drive(0); err != nil {
		t.Fatalf("Drive(0): %v", err)
	}
	if v, _ := a.Sample(); v != 0 {
		t.Fatalf("expected release to read 0, got %#x", v)
	}
}

func TestMustDriverPanicsWithoutRegistration(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustDriver to panic when unset")
		}
	}()
	driver = nil
	MustDriver()
}
