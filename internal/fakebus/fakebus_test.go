package fakebus

import (
	"path/filepath"
	"testing"
	"time"
)

func TestTwoClientsCombineOnWire(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "moatbus.sock")

	srv, err := Listen(sock)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	a, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial a: %v", err)
	}
	defer a.Close()
	b, err := Dial(sock)
	if err != nil {
		t.Fatalf("Dial b: %v", err)
	}
	defer b.Close()

	if err := a.Drive(0x1); err != nil {
		t.Fatalf("a.Drive: %v", err)
	}
	if err := b.Drive(0x4); err != nil {
		t.Fatalf("b.Drive: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		va, _ := a.Sample()
		vb, _ := b.Sample()
		if va == 0x5 && vb == 0x5 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("combined state not observed: a=%#x b=%#x", va, vb)
		}
		time.Sleep(time.Millisecond)
	}
}
