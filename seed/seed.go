// Package seed implements the Seed/Serve State Machine: periodic SEED
// emission on a staggered face sequence, and PULL servicing (§4.5 of the
// core spec).
package seed

import (
	"fmt"

	"github.com/Move38/Blinks-SDK/download"
	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/tickset"
)

// StaggeredFaceOrder is the fixed permutation of face indices that maps
// each face to the face the next SEED goes out on. Starting from face 0 the
// rotation visits 0, 2, 4, 1, 3, 5 and back to 0; every step except the
// wraparound from 5 to 0 skips at least one face. This is the mechanism by
// which the propagation wavefront fans out rather than re-hitting the same
// neighbor.
var StaggeredFaceOrder = [ircodec.FaceCount]int{2, 3, 4, 5, 1, 0}

// ImageSource is the collaborator this machine reads image state from.
// Implemented by download.Machine.
type ImageSource interface {
	Descriptor() download.Descriptor
}

// Machine is the Seed/Serve State Machine. One Machine serves one tile for
// one bootloader run.
type Machine struct {
	flash     *flashsvc.Service
	codec     *ircodec.Codec
	scheduler *tickset.Scheduler
	image     ImageSource

	nextSeedFace int
}

// New builds a Seed/Serve State Machine. image is typically the same
// download.Machine wired up for this tile's run.
func New(flash *flashsvc.Service, codec *ircodec.Codec, scheduler *tickset.Scheduler, image ImageSource) *Machine {
	return &Machine{
		flash:     flash,
		codec:     codec,
		scheduler: scheduler,
		image:     image,
	}
}

// SeedSourceLockedIn implements download.SeedRotation: when we lock onto a
// source on face f, start our own seeding rotation as far from that source
// as the staggered table places it, so we don't immediately re-advertise
// back at our source before fanning out to others.
func (m *Machine) SeedSourceLockedIn(sourceFace int) {
	m.nextSeedFace = StaggeredFaceOrder[sourceFace]
}

// NextSeedFace returns the face the next periodic SEED will go out on.
func (m *Machine) NextSeedFace() int {
	return m.nextSeedFace
}

// MaybeEmitSeed emits a SEED on the current staggered face if the
// scheduler's next-seed countdown has expired and we have something to
// share (next_page > 0). We gate on that so we never advertise capacity we
// don't have. It is a no-op, not an error, if the countdown hasn't expired
// yet or we hold nothing.
func (m *Machine) MaybeEmitSeed() error {
	if !m.scheduler.NextSeed.IsZero() {
		return nil
	}

	desc := m.image.Descriptor()
	if desc.NextPage == 0 {
		return nil
	}

	face := m.nextSeedFace
	m.nextSeedFace = StaggeredFaceOrder[face]
	m.scheduler.ResetNextSeed()

	raw := ircodec.EncodeSeed(desc.TotalPages, desc.ImageChecksum)
	if err := m.codec.SendPacket(face, raw); err != nil {
		// Busy transmitter is recoverable: we'll try again on the next
		// periodic opportunity.
		return nil
	}
	return nil
}

// HandlePull processes an inbound PULL packet on face f, asking for page p.
func (m *Machine) HandlePull(f int, pull ircodec.Pull) error {
	desc := m.image.Descriptor()

	if uint8(pull.Page) >= desc.NextPage {
		// We don't have that page (yet). No response, no state change.
		return nil
	}

	data, err := m.flash.ReadPage(int(pull.Page))
	if err != nil {
		return fmt.Errorf("seed: read page %d: %w", pull.Page, err)
	}

	raw := ircodec.EncodePush(data, pull.Page)
	if err := m.codec.SendPacket(f, raw); err != nil {
		// Transmitter busy: abandon this push, the puller will retry on
		// the next SEED re-invitation.
		return nil
	}

	// Prime the pipeline: the puller shouldn't have to wait for our next
	// periodic SEED to find out it can ask for the following page, and as
	// long as someone is pulling from us we are not done yet.
	m.scheduler.TriggerNextSeedNow()
	m.scheduler.ResetUntilDone()

	return nil
}
