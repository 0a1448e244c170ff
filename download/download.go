// Package download implements the Download State Machine: the per-tile
// image descriptor, and the transitions driven by inbound SEED and PUSH
// packets (§4.4 of the core spec). Packet framing, length validation, and
// per-packet checksums are already handled by ircodec before a Packet ever
// reaches this package.
package download

import (
	"fmt"

	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/tickset"
)

// NoFace is the sentinel source_face value for a tile that is the root of
// propagation (holds the source of truth itself), equivalent to the
// original's SOURCE_FACE_NONE = FACE_COUNT.
const NoFace = -1

// Descriptor is the image descriptor: the per-tile state that decides what
// we still need and what we've committed to verifying against.
type Descriptor struct {
	TotalPages    uint8
	NextPage      uint8
	SourceFace    int
	ImageChecksum uint16
}

// Done reports whether the receive role has finished: next_page has
// advanced past total_pages.
func (d Descriptor) Done() bool {
	return d.NextPage > d.TotalPages
}

// HaveSource reports whether a source is locked in (total_pages > 0).
func (d Descriptor) HaveSource() bool {
	return d.TotalPages > 0
}

// SeedRotation is the collaborator notified when a new source locks in, so
// the Seed/Serve machine can start its staggered rotation as far from the
// source as possible. Implemented by seed.Machine.
type SeedRotation interface {
	SeedSourceLockedIn(sourceFace int)
}

// Stats counts discards, for observability only; none of these change
// control flow.
type Stats struct {
	OutOfOrderPush int
	WrongFacePush  int
}

// Machine is the Download State Machine. One Machine serves one tile for
// one bootloader run.
type Machine struct {
	desc      Descriptor
	flash     *flashsvc.Service
	codec     *ircodec.Codec
	scheduler *tickset.Scheduler
	rotation  SeedRotation

	restrictSourceFace bool

	Stats Stats
}

// New builds a Download State Machine around its collaborators. rotation
// may be nil if the caller doesn't care about staggered fan-out (e.g. a
// minimal test harness).
func New(flash *flashsvc.Service, codec *ircodec.Codec, scheduler *tickset.Scheduler, rotation SeedRotation) *Machine {
	return &Machine{
		desc:      Descriptor{SourceFace: NoFace},
		flash:     flash,
		codec:     codec,
		scheduler: scheduler,
		rotation:  rotation,
	}
}

// SetRotation wires the Seed/Serve collaborator in after construction, for
// callers (supervisor.New) that must build the download Machine before the
// seed Machine exists to pass as its SeedRotation.
func (m *Machine) SetRotation(rotation SeedRotation) {
	m.rotation = rotation
}

// RestrictToSourceFace opts into rejecting PUSH packets that arrive on any
// face other than the locked-in source face. Off by default, matching the
// original's behavior and its stated rationale: the per-page and
// whole-image checksums are the real integrity gate, so two neighbors
// advertising the same image_checksum are interchangeable sources.
func (m *Machine) RestrictToSourceFace(restrict bool) {
	m.restrictSourceFace = restrict
}

// Descriptor returns a copy of the current image descriptor.
func (m *Machine) Descriptor() Descriptor {
	return m.desc
}

// SeedOnlyInit sets up the descriptor for seed-only mode: the tile already
// holds (after CopyInto) a complete image and has nothing left to receive.
func (m *Machine) SeedOnlyInit(totalPages uint8, imageChecksum uint16) {
	m.desc = Descriptor{
		TotalPages:    totalPages,
		NextPage:      totalPages + 1,
		SourceFace:    NoFace,
		ImageChecksum: imageChecksum,
	}
}

// HandleSeed processes an inbound SEED packet on face f.
func (m *Machine) HandleSeed(f int, seed ircodec.Seed) error {
	if m.desc.Done() {
		// We are already fully received; ignore re-invitations.
		return nil
	}

	if !m.desc.HaveSource() {
		// First SEED we've heard: lock in this face as our source.
		m.desc.TotalPages = seed.TotalPages
		m.desc.ImageChecksum = seed.ImageChecksum
		m.desc.SourceFace = f
		m.desc.NextPage = 0

		if m.rotation != nil {
			m.rotation.SeedSourceLockedIn(f)
		}
	}

	// Either a fresh lock-in or a re-invitation from our existing source:
	// ask for the page we still need.
	return m.sendPull(f, m.desc.NextPage)
}

func (m *Machine) sendPull(f int, page uint8) error {
	raw := ircodec.EncodePull(page)
	if err := m.codec.SendPacket(f, raw); err != nil {
		// Transmitter busy is a recoverable, absorbed condition: we'll get
		// another chance on the next SEED re-invitation.
		return nil
	}
	return nil
}

// HandlePush processes an inbound PUSH packet on face f.
func (m *Machine) HandlePush(f int, push ircodec.Push) error {
	if m.restrictSourceFace && m.desc.SourceFace != NoFace && f != m.desc.SourceFace {
		m.Stats.WrongFacePush++
		return nil
	}

	if uint8(push.Page) != m.desc.NextPage {
		m.Stats.OutOfOrderPush++
		return nil
	}

	if err := m.flash.BurnPage(int(push.Page), &push.Data); err != nil {
		return fmt.Errorf("download: burn page %d: %w", push.Page, err)
	}

	m.desc.NextPage++

	if m.desc.NextPage == m.desc.TotalPages {
		// Mark receive-complete: next_page now strictly greater than
		// total_pages, the sentinel the rest of the system checks for.
		m.desc.NextPage++
	} else if m.scheduler != nil {
		// Still downloading, but we just made forward progress: don't
		// time out as long as PUSHes keep arriving. A seed re-invitation
		// should already be queued up to trigger our next PULL.
		m.scheduler.ResetUntilDone()
	}

	return nil
}
