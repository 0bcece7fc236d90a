package wire

import "errors"

// ErrResidueOverflow is a programming-error panic condition per spec.md
// §4.1: "Residue too large (> M^R symbols): fatal encode bug (assert)."
// It is returned, not panicked, so callers can choose how to fail; the
// handler treats it as an encode-time bug and never lets it reach the
// wire.
var ErrResidueOverflow = errors.New("wire: residue value exceeds M^R")

// ErrBadChunkValue is the decode-time CRC-class error that
// DecodeResidueCount returns for a chunk value that is neither data
// (below DataMax) nor residue (ResidueBase and up): the values in
// [DataMax, ResidueBase), which a correct sender never produces. For
// N=2 that is 2048..2159.
var ErrBadChunkValue = errors.New("wire: decoded chunk value outside data/residue ranges")

// EncodeChunk renders v (0 <= v < p.ChunkSpace()) as p.X wire symbols,
// most-significant symbol first, each in [1, p.M]. This is the single
// encoding used for ordinary data chunks, leftover-bit chunks, CRC
// chunks, and residue/terminator chunks alike: the residue/terminator
// shape falls directly out of picking v in [p.ResidueBase(), p.ChunkSpace()).
func EncodeChunk(v uint32, p Params) []uint8 {
	symbols := make([]uint8, p.X)
	val := uint64(v)
	m := uint64(p.M)
	for i := p.X - 1; i >= 0; i-- {
		digit := val % m
		symbols[i] = uint8(digit + 1)
		val /= m
	}
	return symbols
}

// DecodeChunk recovers the integer value encoded by symbols, the inverse
// of EncodeChunk.
func DecodeChunk(symbols []uint8, p Params) (uint32, error) {
	if len(symbols) != p.X {
		return 0, errors.New("wire: wrong symbol count for chunk")
	}
	m := uint64(p.M)
	var v uint64
	for _, s := range symbols {
		if s < 1 || uint64(s) > m {
			return 0, errors.New("wire: symbol out of range")
		}
		v = v*m + uint64(s-1)
	}
	return uint32(v), nil
}

// IsData reports whether v falls in the complete-chunk (ordinary data)
// range, spec.md §4.1's predicate v < 2^B.
func (p Params) IsData(v uint32) bool {
	return v < p.DataMax()
}

// IsResidue reports whether v falls in the residue/terminator range.
func (p Params) IsResidue(v uint32) bool {
	return v >= p.ResidueBase() && uint64(v) < p.ChunkSpace()
}

// IsTerminator reports whether the leading X-R symbols of a partially or
// fully received chunk already match the terminator marker (repeated
// maximum symbol value M), letting a receiver recognize a residue chunk
// before all X symbols have arrived, as spec.md §4.1 requires ("Receivers
// detect the terminator and decode accordingly").
func (p Params) IsTerminator(symbols []uint8) bool {
	lead := p.X - p.R
	if len(symbols) < lead {
		return false
	}
	for i := 0; i < lead; i++ {
		if symbols[i] != uint8(p.M) {
			return false
		}
	}
	return true
}

// EncodeResidueCount builds the residue/terminator chunk value carrying a
// leftover-bit count in [0, B). The count is the only payload of this
// chunk (see DESIGN.md "Open question decisions"); the leftover bits
// themselves and the CRC each travel in their own ordinary chunk
// immediately afterward.
func (p Params) EncodeResidueCount(bitCount int) (uint32, error) {
	if bitCount < 0 || uint32(bitCount) >= p.ResidueSpace() {
		return 0, ErrResidueOverflow
	}
	return p.ResidueBase() + uint32(bitCount), nil
}

// DecodeResidueCount inverts EncodeResidueCount.
func (p Params) DecodeResidueCount(v uint32) (int, error) {
	if !p.IsResidue(v) {
		return 0, ErrBadChunkValue
	}
	return int(v - p.ResidueBase()), nil
}
