package main

import (
	"fmt"
	"hash/crc32"
	"os"

	"github.com/charmbracelet/log"
)

// fileWriter is the host-side flashupdate.Writer: it stages an
// in-progress update in a temp file and only replaces path once Commit
// confirms the image's CRC32 matches what was received.
type fileWriter struct {
	path string
	log  *log.Logger

	f    *os.File
	hash uint32
}

func newFileWriter(path string, logger *log.Logger) *fileWriter {
	return &fileWriter{path: path, log: logger}
}

func (w *fileWriter) Begin(totalSize uint32) error {
	f, err := os.CreateTemp("", "moatbus-update-*.bin")
	if err != nil {
		return fmt.Errorf("flashwriter: create temp file: %w", err)
	}
	w.f = f
	w.log.Info("flash update started", "size", totalSize, "temp", f.Name())
	return nil
}

func (w *fileWriter) WriteAt(seq uint16, data []byte) error {
	if _, err := w.f.Write(data); err != nil {
		return fmt.Errorf("flashwriter: write chunk %d: %w", seq, err)
	}
	w.hash = crc32.Update(w.hash, crc32.IEEETable, data)
	return nil
}

func (w *fileWriter) Commit(wantCRC uint32) error {
	defer w.f.Close()
	if w.hash != wantCRC {
		os.Remove(w.f.Name())
		return fmt.Errorf("flashwriter: crc mismatch: got %#x want %#x", w.hash, wantCRC)
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		return fmt.Errorf("flashwriter: install %s: %w", w.path, err)
	}
	w.log.Info("flash update committed", "path", w.path)
	return nil
}

func (w *fileWriter) Abort() {
	if w.f != nil {
		w.f.Close()
		os.Remove(w.f.Name())
	}
	w.log.Warn("flash update aborted")
}
