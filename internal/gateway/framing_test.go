package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	raw := EncodeFrame(5, data)

	var rx Receiver
	frames := rx.Feed(raw)
	require.Len(t, frames, 1)
	require.Equal(t, uint8(5), frames[0].Priority)
	require.Equal(t, data, frames[0].Data)
}

func TestLargePayloadTwoByteLength(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i)
	}
	raw := EncodeFrame(1, data)

	var rx Receiver
	frames := rx.Feed(raw)
	require.Len(t, frames, 1)
	require.Equal(t, data, frames[0].Data)
}

func TestResyncSkipsGarbagePrefix(t *testing.T) {
	good := EncodeFrame(2, []byte{0xAA, 0xBB})
	garbage := append([]byte{0xFF, 0xFE, 0xFD}, good...)

	var rx Receiver
	frames := rx.Feed(garbage)
	require.Len(t, frames, 1)
	require.Equal(t, []byte{0xAA, 0xBB}, frames[0].Data)
}

func TestCorruptedCRCIsDropped(t *testing.T) {
	good := EncodeFrame(2, []byte{0xAA, 0xBB})
	good[len(good)-1] ^= 0xFF // flip CRC low byte

	var rx Receiver
	frames := rx.Feed(good)
	require.Len(t, frames, 0)
}

func TestFeedAcrossMultipleCalls(t *testing.T) {
	raw := EncodeFrame(3, []byte{0x01, 0x02, 0x03})

	var rx Receiver
	frames := rx.Feed(raw[:2])
	require.Len(t, frames, 0)
	frames = rx.Feed(raw[2:])
	require.Len(t, frames, 1)
	require.Equal(t, []byte{0x01, 0x02, 0x03}, frames[0].Data)
}
