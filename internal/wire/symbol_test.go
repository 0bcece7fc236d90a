package wire

import "testing"

func TestNextStateNeverIdleOrUnchanged(t *testing.T) {
	for n := 2; n <= 4; n++ {
		p, err := ParamsFor(n)
		if err != nil {
			t.Fatal(err)
		}
		for s := uint32(0); s <= p.M; s++ {
			for v := uint32(1); v <= p.M; v++ {
				next := NextState(s, v)
				if next == s {
					t.Errorf("N=%d: NextState(%d,%d) = %d, unchanged", n, s, v, next)
				}
				if next == 0 {
					t.Errorf("N=%d: NextState(%d,%d) = 0, idle", n, s, v)
				}
			}
		}
	}
}

func TestSymbolRoundTrip(t *testing.T) {
	for n := 2; n <= 4; n++ {
		p, _ := ParamsFor(n)
		for s := uint32(0); s <= p.M; s++ {
			for v := uint32(1); v <= p.M; v++ {
				next := NextState(s, v)
				got, err := DecodeSymbol(s, next)
				if err != nil {
					t.Fatalf("N=%d: DecodeSymbol(%d,%d) error: %v", n, s, next, err)
				}
				if got != v {
					t.Errorf("N=%d: DecodeSymbol(NextState(%d,%d)) = %d, want %d", n, s, v, got, v)
				}
			}
		}
	}
}

func TestDecodeSymbolIdleError(t *testing.T) {
	if _, err := DecodeSymbol(2, 2); err != ErrIdleSymbol {
		t.Errorf("DecodeSymbol(2,2) error = %v, want ErrIdleSymbol", err)
	}
}
