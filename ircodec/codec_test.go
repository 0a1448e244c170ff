package ircodec

import "testing"

// fakeLink is an in-memory FaceLink used only by this package's tests. A
// more complete in-process adapter (with loss injection and cross-tile
// wiring) lives in the meshsim package.
type fakeLink struct {
	inbox []byte
	sent  []byte
	busy  bool
}

func (f *fakeLink) ReadByte() (byte, bool, error) {
	if len(f.inbox) == 0 {
		return 0, false, nil
	}
	b := f.inbox[0]
	f.inbox = f.inbox[1:]
	return b, true, nil
}

func (f *fakeLink) WriteByte(b byte) error {
	f.sent = append(f.sent, b)
	return nil
}

func (f *fakeLink) Busy() bool { return f.busy }

func newTestCodec() (*Codec, *fakeLink) {
	link := &fakeLink{}
	var links [FaceCount]FaceLink
	links[0] = link
	return NewCodec(links), link
}

func TestPollDepositsReadyPacket(t *testing.T) {
	c, link := newTestCodec()
	link.inbox = EncodePull(3)

	if err := c.Poll(0); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if !c.IsReady(0) {
		t.Fatal("expected packet ready on face 0")
	}

	pkt, err := Decode(c.Buffer(0))
	if err != nil {
		t.Fatalf("Decode(Buffer): %v", err)
	}
	if pkt.Kind != KindPull || pkt.Pull.Page != 3 {
		t.Errorf("got %+v, want Pull.Page=3", pkt)
	}

	c.MarkConsumed(0)
	if c.IsReady(0) {
		t.Error("expected ready flag cleared after MarkConsumed")
	}
}

func TestPollDropsMalformedFrame(t *testing.T) {
	c, link := newTestCodec()
	raw := EncodePull(3)
	raw[len(raw)-1] ^= 0xFF // corrupt checksum
	link.inbox = raw

	if err := c.Poll(0); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if c.IsReady(0) {
		t.Error("malformed frame must not be deposited as ready")
	}
	if c.MalformedCount(0) != 1 {
		t.Errorf("MalformedCount = %d, want 1", c.MalformedCount(0))
	}
}

func TestPollOverwritesUnconsumedPacket(t *testing.T) {
	c, link := newTestCodec()
	link.inbox = EncodePull(1)
	if err := c.Poll(0); err != nil {
		t.Fatal(err)
	}

	link.inbox = EncodePull(2)
	if err := c.Poll(0); err != nil {
		t.Fatal(err)
	}

	pkt, err := Decode(c.Buffer(0))
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Pull.Page != 2 {
		t.Errorf("expected drop-oldest overwrite to page 2, got %d", pkt.Pull.Page)
	}
}

func TestSendPacketHappyPath(t *testing.T) {
	c, link := newTestCodec()
	raw := EncodeSeed(1, 1)

	if err := c.SendPacket(0, raw); err != nil {
		t.Fatalf("SendPacket: %v", err)
	}
	if string(link.sent) != string(raw) {
		t.Errorf("sent %v, want %v", link.sent, raw)
	}
}

func TestSendBeginFailsWhenBusy(t *testing.T) {
	c, link := newTestCodec()
	link.busy = true

	if c.SendBegin(0) {
		t.Error("expected SendBegin to fail when link reports busy")
	}

	if err := c.SendPacket(0, EncodePull(0)); err != ErrTransmitterBusy {
		t.Errorf("SendPacket error = %v, want ErrTransmitterBusy", err)
	}
}

func TestSendBeginFailsWhenAlreadySending(t *testing.T) {
	c, _ := newTestCodec()

	if !c.SendBegin(0) {
		t.Fatal("first SendBegin should succeed")
	}
	if c.SendBegin(0) {
		t.Error("second SendBegin before SendComplete should fail")
	}
	c.SendComplete(0)
	if !c.SendBegin(0) {
		t.Error("SendBegin should succeed again after SendComplete")
	}
}
