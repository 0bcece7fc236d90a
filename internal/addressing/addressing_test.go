package addressing

import (
	"testing"

	"moatbus/internal/message"
)

type fakeSender struct {
	sent []*message.Message
}

func (f *fakeSender) Send(msg *message.Message) {
	f.sent = append(f.sent, msg)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	want := Message{Subtype: SubtypePropose, MAC: [MACLen]byte{1, 2, 3, 4, 5, 6}, Address: 9}
	got, err := Decode(want.Encode())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestAssignerAllocatesLowestFree(t *testing.T) {
	a := NewAssigner(4)
	mac1 := [MACLen]byte{1}
	mac2 := [MACLen]byte{2}

	addr1, err := a.Propose(mac1)
	if err != nil || addr1 != 1 {
		t.Fatalf("Propose(mac1) = %d, %v", addr1, err)
	}
	addr2, err := a.Propose(mac2)
	if err != nil || addr2 != 2 {
		t.Fatalf("Propose(mac2) = %d, %v", addr2, err)
	}

	// Re-proposing an already-known MAC returns the same address.
	again, err := a.Propose(mac1)
	if err != nil || again != addr1 {
		t.Fatalf("re-Propose(mac1) = %d, %v", again, err)
	}

	a.Release(mac1)
	if _, ok := a.Lookup(mac1); ok {
		t.Fatalf("expected mac1 to be released")
	}
	addr3, err := a.Propose([MACLen]byte{3})
	if err != nil || addr3 != 1 {
		t.Fatalf("expected released address 1 to be reused, got %d, %v", addr3, err)
	}
}

func TestAssignerExhaustion(t *testing.T) {
	a := NewAssigner(1)
	if _, err := a.Propose([MACLen]byte{1}); err != nil {
		t.Fatalf("first Propose: %v", err)
	}
	if _, err := a.Propose([MACLen]byte{2}); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}

func TestControllerAnswersAnnounceWithPropose(t *testing.T) {
	sender := &fakeSender{}
	assigner := NewAssigner(8)
	c := NewController(sender, 0x01, assigner)

	mac := [MACLen]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	announce := Message{Subtype: SubtypeAnnounce, MAC: mac}
	if err := c.Dispatch(announce.Encode()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sender.sent))
	}
	reply, err := Decode(sender.sent[0].Bytes())
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Subtype != SubtypePropose || reply.MAC != mac || reply.Address != 1 {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestRegistryUnknownSubtype(t *testing.T) {
	r := NewRegistry()
	m := Message{Subtype: Subtype(0xFE)}
	if err := r.Dispatch(m.Encode()); err == nil {
		t.Fatalf("expected dispatch error for unregistered subtype")
	}
}
