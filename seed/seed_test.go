package seed

import (
	"testing"

	"github.com/Move38/Blinks-SDK/download"
	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/tickset"
)

type fakeLink struct {
	sent []byte
	busy bool
}

func (f *fakeLink) ReadByte() (byte, bool, error) { return 0, false, nil }
func (f *fakeLink) WriteByte(b byte) error         { f.sent = append(f.sent, b); return nil }
func (f *fakeLink) Busy() bool                     { return f.busy }

type fakeImage struct {
	desc download.Descriptor
}

func (f *fakeImage) Descriptor() download.Descriptor { return f.desc }

func newTestMachine(desc download.Descriptor) (*Machine, *fakeLink, *tickset.Scheduler) {
	slot := flashsvc.NewSlot(flashsvc.MaxPages)
	svc := flashsvc.NewService(slot)

	link := &fakeLink{}
	var links [ircodec.FaceCount]ircodec.FaceLink
	links[2] = link
	codec := ircodec.NewCodec(links)

	sched := tickset.NewScheduler(tickset.DefaultTickInterval)

	m := New(svc, codec, sched, &fakeImage{desc: desc})
	return m, link, sched
}

func TestSeedSourceLockedInSetsStaggeredStart(t *testing.T) {
	m, _, _ := newTestMachine(download.Descriptor{})
	m.SeedSourceLockedIn(0)
	if m.NextSeedFace() != StaggeredFaceOrder[0] {
		t.Errorf("NextSeedFace = %d, want %d", m.NextSeedFace(), StaggeredFaceOrder[0])
	}
}

func TestMaybeEmitSeedGatedOnNextPage(t *testing.T) {
	m, link, sched := newTestMachine(download.Descriptor{NextPage: 0})
	sched.NextSeed.Reset(0)

	if err := m.MaybeEmitSeed(); err != nil {
		t.Fatal(err)
	}
	if len(link.sent) != 0 {
		t.Error("must never advertise capacity we don't have (next_page == 0)")
	}
}

func TestMaybeEmitSeedSendsWhenDue(t *testing.T) {
	m, link, sched := newTestMachine(download.Descriptor{NextPage: 1, TotalPages: 2, ImageChecksum: 0x0181})
	sched.NextSeed.Reset(0)
	m.nextSeedFace = 2

	if err := m.MaybeEmitSeed(); err != nil {
		t.Fatal(err)
	}

	pkt, err := ircodec.Decode(link.sent)
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Kind != ircodec.KindSeed || pkt.Seed.TotalPages != 2 || pkt.Seed.ImageChecksum != 0x0181 {
		t.Errorf("unexpected SEED sent: %+v", pkt)
	}
	if sched.NextSeed.IsZero() {
		t.Error("expected next-seed countdown to be rearmed after sending")
	}
}

func TestMaybeEmitSeedNotDueYet(t *testing.T) {
	m, link, sched := newTestMachine(download.Descriptor{NextPage: 1, TotalPages: 2})
	sched.NextSeed.Reset(10)

	if err := m.MaybeEmitSeed(); err != nil {
		t.Fatal(err)
	}
	if len(link.sent) != 0 {
		t.Error("must not emit before the countdown expires")
	}
}

func TestHandlePullSendsPushForAvailablePage(t *testing.T) {
	slot := flashsvc.NewSlot(flashsvc.MaxPages)
	svc := flashsvc.NewService(slot)
	var buf [flashsvc.PageSize]byte
	for i := range buf {
		buf[i] = 0x9
	}
	if err := svc.BurnPage(0, &buf); err != nil {
		t.Fatal(err)
	}

	link := &fakeLink{}
	var links [ircodec.FaceCount]ircodec.FaceLink
	links[2] = link
	codec := ircodec.NewCodec(links)
	sched := tickset.NewScheduler(tickset.DefaultTickInterval)
	img := &fakeImage{desc: download.Descriptor{NextPage: 1, TotalPages: 2}}
	m := New(svc, codec, sched, img)

	if err := m.HandlePull(2, ircodec.Pull{Page: 0}); err != nil {
		t.Fatal(err)
	}

	pkt, err := ircodec.Decode(link.sent)
	if err != nil {
		t.Fatal(err)
	}
	if pkt.Kind != ircodec.KindPush || pkt.Push.Page != 0 || pkt.Push.Data != buf {
		t.Errorf("unexpected PUSH sent: %+v", pkt)
	}
	if !sched.NextSeed.IsZero() {
		t.Error("expected TriggerNextSeedNow to have fired")
	}
}

func TestHandlePullForUnavailablePageIsNoOp(t *testing.T) {
	m, link, sched := newTestMachine(download.Descriptor{NextPage: 2, TotalPages: 3})
	sched.NextSeed.Reset(50)

	if err := m.HandlePull(2, ircodec.Pull{Page: 3}); err != nil {
		t.Fatal(err)
	}
	if len(link.sent) != 0 {
		t.Error("PULL for a page we don't have yet must get no response")
	}
	if sched.NextSeed.Value() != 50 {
		t.Error("no state change expected when the PULL can't be serviced")
	}
}
