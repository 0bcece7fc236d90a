package flashupdate

import "encoding/binary"

// BuildUpload splits a firmware image into a Begin message, one Data
// message per chunkSize-byte chunk, and a trailing Commit message
// carrying crc32, ready to be handed one at a time to a bus.Handler's
// Send as each prior message's ack is observed.
func BuildUpload(data []byte, chunkSize int, crc32 uint32) []Message {
	out := make([]Message, 0, 2+(len(data)+chunkSize-1)/chunkSize)

	begin := make([]byte, 4)
	binary.BigEndian.PutUint32(begin, uint32(len(data)))
	out = append(out, Message{Subtype: SubtypeBegin, Payload: begin})

	seq := uint16(0)
	for off := 0; off < len(data); off += chunkSize {
		end := off + chunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, Message{Subtype: SubtypeData, Sequence: seq, Payload: data[off:end]})
		seq++
	}

	commit := make([]byte, 4)
	binary.BigEndian.PutUint32(commit, crc32)
	out = append(out, Message{Subtype: SubtypeCommit, Payload: commit})
	return out
}
