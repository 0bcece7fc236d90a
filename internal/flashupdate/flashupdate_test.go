package flashupdate

import (
	"bytes"
	"testing"
)

type memWriter struct {
	began    uint32
	data     []byte
	committed uint32
	aborted  bool
}

func (w *memWriter) Begin(totalSize uint32) error {
	w.began = totalSize
	w.data = make([]byte, 0, totalSize)
	return nil
}

func (w *memWriter) WriteAt(seq uint16, data []byte) error {
	w.data = append(w.data, data...)
	return nil
}

func (w *memWriter) Commit(crc32 uint32) error {
	w.committed = crc32
	return nil
}

func (w *memWriter) Abort() {
	w.aborted = true
}

func TestFullUploadSequence(t *testing.T) {
	image := bytes.Repeat([]byte{0xAB}, 37)
	msgs := BuildUpload(image, 16, 0xDEADBEEF)

	var writer *memWriter
	m := NewManager(func() Writer {
		writer = &memWriter{}
		return writer
	})

	for _, msg := range msgs {
		if err := m.Dispatch(0x05, msg.Encode()); err != nil {
			t.Fatalf("Dispatch(%v): %v", msg.Subtype, err)
		}
	}

	if writer.began != uint32(len(image)) {
		t.Fatalf("expected Begin(%d), got %d", len(image), writer.began)
	}
	if !bytes.Equal(writer.data, image) {
		t.Fatalf("reassembled image mismatch")
	}
	if writer.committed != 0xDEADBEEF {
		t.Fatalf("expected commit crc 0xDEADBEEF, got %#x", writer.committed)
	}
}

func TestDataBeforeBeginRejected(t *testing.T) {
	m := NewManager(func() Writer { return &memWriter{} })
	msg := Message{Subtype: SubtypeData, Sequence: 0, Payload: []byte{1, 2, 3}}
	if err := m.Dispatch(0x05, msg.Encode()); err == nil {
		t.Fatalf("expected error for Data with no open session")
	}
}

func TestOutOfOrderChunkRejected(t *testing.T) {
	m := NewManager(func() Writer { return &memWriter{} })
	begin := Message{Subtype: SubtypeBegin, Payload: make([]byte, 4)}
	if err := m.Dispatch(0x05, begin.Encode()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	bad := Message{Subtype: SubtypeData, Sequence: 1, Payload: []byte{1}}
	if err := m.Dispatch(0x05, bad.Encode()); err == nil {
		t.Fatalf("expected out-of-order rejection")
	}
}

func TestAbortClosesSessionWithoutCommit(t *testing.T) {
	var writer *memWriter
	m := NewManager(func() Writer {
		writer = &memWriter{}
		return writer
	})
	begin := Message{Subtype: SubtypeBegin, Payload: make([]byte, 4)}
	if err := m.Dispatch(0x05, begin.Encode()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	abort := Message{Subtype: SubtypeAbort}
	if err := m.Dispatch(0x05, abort.Encode()); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if !writer.aborted {
		t.Fatalf("expected writer to be aborted")
	}

	commit := Message{Subtype: SubtypeCommit, Payload: make([]byte, 4)}
	if err := m.Dispatch(0x05, commit.Encode()); err == nil {
		t.Fatalf("expected Commit after Abort to fail (no open session)")
	}
}
