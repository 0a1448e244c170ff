package supervisor

import (
	"testing"

	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/pixel"
)

func newTestSupervisor(opts ...Option) (*Supervisor, *pixel.SimulatedDisplay) {
	slot := flashsvc.NewSlot(flashsvc.MaxPages)
	flash := flashsvc.NewService(slot)
	var links [ircodec.FaceCount]ircodec.FaceLink
	codec := ircodec.NewCodec(links)
	display := pixel.NewSimulatedDisplay()
	return New(flash, codec, display, opts...), display
}

func TestNewWiresDownloadAndSeedTogether(t *testing.T) {
	s, _ := newTestSupervisor()

	if err := s.Download().HandleSeed(0, ircodec.Seed{TotalPages: 1, ImageChecksum: 0x80}); err != nil {
		t.Fatal(err)
	}

	// If the rotation wiring is correct, locking onto face 0 sets the seed
	// machine's rotation start to StaggeredFaceOrder[0] == 2.
	if s.Seed().NextSeedFace() != 2 {
		t.Errorf("NextSeedFace() = %d, want 2", s.Seed().NextSeedFace())
	}
}

func TestEnterSeedOnlyModeCopiesBuiltinAndComputesChecksum(t *testing.T) {
	s, display := newTestSupervisor()

	builtinBytes := make([]byte, flashsvc.PageSize)
	for i := range builtinBytes {
		builtinBytes[i] = 0x05
	}
	builtin := flashsvc.NewSlotFromBytes(builtinBytes)

	if err := s.EnterSeedOnlyMode(builtin); err != nil {
		t.Fatal(err)
	}

	d := s.Download().Descriptor()
	if !d.Done() {
		t.Fatalf("seed-only descriptor should already be Done, got %+v", d)
	}

	want, err := s.flash.WholeImageChecksum(flashsvc.MaxPages)
	if err != nil {
		t.Fatal(err)
	}
	if d.ImageChecksum != want {
		t.Errorf("ImageChecksum = %#x, want %#x", d.ImageChecksum, want)
	}

	for _, c := range display.Faces {
		if c != pixel.Blue {
			t.Errorf("expected all faces Blue entering seed-only mode, got %v", c)
		}
	}
}

func TestFinishFailsOnQuiescenceIncomplete(t *testing.T) {
	s, display := newTestSupervisor()
	s.EnterDownloadMode()

	result := s.finish()
	if result.Success {
		t.Error("expected failure: no source was ever locked in")
	}
	for _, c := range display.Faces {
		if c != pixel.Red {
			t.Errorf("expected all faces Red on failed quiescence, got %v", c)
		}
	}
}

func TestWithSourceFaceRestrictionPropagatesToDownloadMachine(t *testing.T) {
	s, _ := newTestSupervisor(WithSourceFaceRestriction(true))

	if err := s.Download().HandleSeed(1, ircodec.Seed{TotalPages: 2, ImageChecksum: 1}); err != nil {
		t.Fatal(err)
	}

	var data [flashsvc.PageSize]byte
	if err := s.Download().HandlePush(4, ircodec.Push{Data: data, Page: 0}); err != nil {
		t.Fatal(err)
	}

	if s.Download().Descriptor().NextPage != 0 {
		t.Error("expected PUSH from non-source face to be rejected when restriction is on")
	}
}
