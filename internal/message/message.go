// Package message implements the Message object that spec.md §6 treats
// as an external collaborator: an appendable/extractable bit queue with
// header length accounting, source/destination/code fields, and a
// priority field. The handler (internal/bus) only ever calls the methods
// declared here.
package message

import "moatbus/internal/wire"

// Result is the final disposition of a message after its ack half-cycle
// concludes, spec.md §3 "Lifecycle".
type Result int

const (
	// Pending means the message has not yet been dispositioned.
	Pending Result = iota
	// Success means the message was acked.
	Success
	// Missing means no ack/nack arrived within the ack window.
	Missing
	// Error means the receiver nacked (CRC mismatch on its end).
	Error
	// Fatal means a repeated fatal-class failure; the caller must drop
	// the message.
	Fatal
)

func (r Result) String() string {
	switch r {
	case Pending:
		return "Pending"
	case Success:
		return "Success"
	case Missing:
		return "Missing"
	case Error:
		return "Error"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Message is the concrete object the handler sends, receives, queues and
// delivers. Header fields are plain, already-validated values; building
// them from raw bytes is the integrator's job, as spec.md §6 specifies.
type Message struct {
	Priority    int
	Source      uint8
	Destination uint8
	Code        uint8

	data   []byte
	bitLen int

	Result Result
}

// New creates an empty outgoing message with the given header fields.
func New(priority int, source, destination, code uint8) *Message {
	return &Message{Priority: priority, Source: source, Destination: destination, Code: code}
}

// NewFromBytes creates an outgoing message whose body is exactly the
// given bytes.
func NewFromBytes(priority int, source, destination, code uint8, body []byte) *Message {
	m := New(priority, source, destination, code)
	for _, b := range body {
		m.AppendBits(uint32(b), 8)
	}
	return m
}

// AppendBits appends the low n bits of v (n <= 32) to the message body.
func (m *Message) AppendBits(v uint32, n int) {
	wire.AppendBits(&m.data, &m.bitLen, v, n)
}

// ExtractBits reads n bits starting at bitPos without consuming them.
func (m *Message) ExtractBits(bitPos, n int) uint32 {
	return wire.ExtractBits(m.data, bitPos, n)
}

// Len returns the body length in bits.
func (m *Message) Len() int {
	return m.bitLen
}

// Bytes returns the body as a byte slice, MSB-first, padded with zero
// bits in the final byte if Len() is not a multiple of 8.
func (m *Message) Bytes() []byte {
	return m.data
}

// Reset clears the body, keeping header fields, so a Message can be
// reused for the next receive.
func (m *Message) Reset() {
	m.data = m.data[:0]
	m.bitLen = 0
}

// headerBytes is the fixed header width spec.md §6.2 assigns to
// priority/code-class, source, and destination.
const headerBytes = 3

// RenderHeader renders the priority/code-class/source/destination
// header spec.md §6.2 describes, for prepending to the body before
// handing the combined bits to the wire codec.
func (m *Message) RenderHeader() []byte {
	return []byte{
		uint8(m.Priority&0x7)<<5 | m.Code&0x1F,
		m.Source,
		m.Destination,
	}
}

// SetBits replaces the body with exactly bitLen bits from raw,
// used by the bus handler to install a decoded frame body without an
// intermediate byte-aligned copy.
func (m *Message) SetBits(raw []byte, bitLen int) {
	m.data = raw
	m.bitLen = bitLen
}

// ParseHeader decodes the fixed 3-byte header spec.md §6.2 defines,
// returning false if raw is shorter than the header.
func ParseHeader(raw []byte) (priority int, source, destination, code uint8, ok bool) {
	if len(raw) < headerBytes {
		return 0, 0, 0, 0, false
	}
	priority = int(raw[0] >> 5)
	code = raw[0] & 0x1F
	source = raw[1]
	destination = raw[2]
	return priority, source, destination, code, true
}

// HeaderBits is the bit width of the rendered header.
const HeaderBits = headerBytes * 8
