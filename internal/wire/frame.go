package wire

import "fmt"

// EncodeFrame renders bitLen bits of data (MSB-first) as the full wire
// symbol sequence for one message body: zero or more full data chunks,
// a residue/terminator chunk carrying the leftover bit count, an
// optional leftover-bits chunk, and a trailing CRC chunk. It does not
// include the priority-acquire symbol, which belongs to the handler's
// acquisition phase, not the codec.
func EncodeFrame(data []byte, bitLen int, p Params) []uint8 {
	table := NewCRCTable(p.N)
	crc := InitialCRC
	var symbols []uint8

	bitPos := 0
	for bitLen-bitPos >= int(p.B) {
		v := ExtractBits(data, bitPos, int(p.B))
		bitPos += int(p.B)
		sym := EncodeChunk(v, p)
		crc = accumulate(table, crc, sym, p.N)
		symbols = append(symbols, sym...)
	}

	remaining := bitLen - bitPos
	rv, err := p.EncodeResidueCount(remaining)
	if err != nil {
		panic(fmt.Sprintf("wire: %v (remaining=%d)", err, remaining))
	}
	symbols = append(symbols, EncodeChunk(rv, p)...)

	if remaining > 0 {
		v := ExtractBits(data, bitPos, remaining) << (p.B - uint(remaining))
		sym := EncodeChunk(v, p)
		crc = accumulate(table, crc, sym, p.N)
		symbols = append(symbols, sym...)
	}

	symbols = append(symbols, EncodeChunk(uint32(crc), p)...)
	return symbols
}

func accumulate(table CRCTable, crc uint16, symbols []uint8, nWires int) uint16 {
	for _, s := range symbols {
		crc = UpdateCRC(table, crc, s, nWires)
	}
	return crc
}

// DecodeFrame inverts EncodeFrame, returning the decoded bit string (as
// bytes, MSB-first, bitLen significant bits) after validating the
// trailing CRC. A CRC mismatch is reported as a plain "wire: crc
// mismatch" error that does not wrap ErrBadChunkValue; a residue chunk
// value outside the valid ranges returns ErrBadChunkValue itself.
func DecodeFrame(symbols []uint8, p Params) (data []byte, bitLen int, err error) {
	table := NewCRCTable(p.N)
	crc := InitialCRC
	pos := 0

	for {
		if pos+p.X > len(symbols) {
			return nil, 0, fmt.Errorf("wire: truncated frame at symbol %d", pos)
		}
		chunk := symbols[pos : pos+p.X]
		v, derr := DecodeChunk(chunk, p)
		if derr != nil {
			return nil, 0, derr
		}
		pos += p.X

		if p.IsData(v) {
			crc = accumulate(table, crc, chunk, p.N)
			AppendBits(&data, &bitLen, v, int(p.B))
			continue
		}

		count, rerr := p.DecodeResidueCount(v)
		if rerr != nil {
			return nil, 0, rerr
		}

		if count > 0 {
			if pos+p.X > len(symbols) {
				return nil, 0, fmt.Errorf("wire: truncated frame (missing leftover chunk)")
			}
			leftoverSymbols := symbols[pos : pos+p.X]
			lv, lerr := DecodeChunk(leftoverSymbols, p)
			if lerr != nil {
				return nil, 0, lerr
			}
			pos += p.X
			crc = accumulate(table, crc, leftoverSymbols, p.N)
			AppendBits(&data, &bitLen, lv>>(p.B-uint(count)), count)
		}

		if pos+p.X > len(symbols) {
			return nil, 0, fmt.Errorf("wire: truncated frame (missing CRC chunk)")
		}
		crcSymbols := symbols[pos : pos+p.X]
		crcVal, cerr := DecodeChunk(crcSymbols, p)
		if cerr != nil {
			return nil, 0, cerr
		}
		pos += p.X

		if uint16(crcVal) != crc {
			return nil, 0, fmt.Errorf("wire: crc mismatch: got %#x want %#x", crcVal, crc)
		}
		return data, bitLen, nil
	}
}
