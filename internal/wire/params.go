// Package wire implements the self-timed multi-level wire signalling
// layer: per-wire-count codec tables, chunk encode/decode, symbol
// transitions, and the 11-bit wire CRC. It has no dependency beyond the
// standard library, so it builds for tinygo targets the same way the
// handler core does. EncodeChunk, EncodeFrame and AppendBits allocate
// or grow slices as they go.
package wire

import "fmt"

// Params holds the codec constants for a given wire count, as defined in
// spec.md §3 "Chunk": (N, B, X, R) in {(2,11,7,3), (3,14,5,2), (4,11,3,1)}.
type Params struct {
	N int    // number of data wires, 2..4
	M uint32 // max wire value, 2^N - 1
	B uint   // data bits per chunk
	X int    // symbols per chunk
	R int    // trailing-residue symbol count
}

var table = map[int]Params{
	2: {N: 2, M: 3, B: 11, X: 7, R: 3},
	3: {N: 3, M: 7, B: 14, X: 5, R: 2},
	4: {N: 4, M: 15, B: 11, X: 3, R: 1},
}

// ParamsFor returns the codec parameters for an N-wire bus.
func ParamsFor(n int) (Params, error) {
	p, ok := table[n]
	if !ok {
		return Params{}, fmt.Errorf("wire: unsupported wire count %d (want 2..4)", n)
	}
	return p, nil
}

// DataMax is the exclusive upper bound of a complete data chunk's value:
// spec.md §4.1's complete-chunk predicate is v < DataMax.
func (p Params) DataMax() uint32 {
	return 1 << p.B
}

// ChunkSpace is the total number of distinct values encodable across the
// chunk's X symbols, M^X.
func (p Params) ChunkSpace() uint64 {
	return ipow(uint64(p.M), p.X)
}

// ResidueBase is the first value reserved for the residue/terminator
// chunk: M^X - M^R. Every value in [ResidueBase, ChunkSpace) decodes with
// its leading X-R symbols forced to the terminator value M (see
// EncodeChunk), which is how a receiver recognizes a residue chunk before
// it has read every symbol.
func (p Params) ResidueBase() uint32 {
	return uint32(p.ChunkSpace() - ipow(uint64(p.M), p.R))
}

// ResidueSpace is the number of distinct residue payload values
// available, M^R.
func (p Params) ResidueSpace() uint32 {
	return uint32(ipow(uint64(p.M), p.R))
}

func ipow(base uint64, exp int) uint64 {
	r := uint64(1)
	for i := 0; i < exp; i++ {
		r *= base
	}
	return r
}
