// Package flashsvc models the tile's scoped, atomic page-burn primitive.
//
// The real hardware executes this under `cli()`/`sei()` around the
// erase+commit window because flash reads are undefined while that window
// is open; on a host process there is no such window, but BurnPage keeps
// the fill, erase, and commit stages in that order (there is no separate
// re-enable-reads stage to model in memory) so that a future
// hardware-backed Service can slot in without the rest of the core
// changing.
package flashsvc

import (
	"errors"
	"fmt"
	"sync"
)

// PageSize is fixed by hardware: 128 bytes per flash page.
const PageSize = 128

// MaxPages is 0x3800 / 128, the size of the active game slot in pages.
const MaxPages = 0x3800 / PageSize

// ErrPageOutOfRange is returned when a page index falls outside a slot.
var ErrPageOutOfRange = errors.New("flashsvc: page index out of range")

// Slot is one addressable flash region (active or built-in game area)
// modeled as an array of bytes indexed by page and offset, per the
// "no raw pointer arithmetic" design note. Nothing outside this package
// touches the underlying byte slice directly.
type Slot struct {
	mu   sync.Mutex
	data []byte
	size int // capacity in pages
}

// NewSlot allocates a slot holding up to sizePages pages, initialized to the
// flash erased value (0xFF), matching what a real erased AVR page reads as.
func NewSlot(sizePages int) *Slot {
	data := make([]byte, sizePages*PageSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &Slot{data: data, size: sizePages}
}

// NewSlotFromBytes wraps existing contents (e.g. loaded from an Intel HEX
// image) as a slot. The slice is padded to a whole number of pages with
// 0xFF.
func NewSlotFromBytes(b []byte) *Slot {
	pages := (len(b) + PageSize - 1) / PageSize
	s := NewSlot(pages)
	copy(s.data, b)
	return s
}

// WriteByte sets a single byte at a flat offset into the slot, for loading
// a sparse image (e.g. from Intel HEX segments) that doesn't arrive as
// whole pages.
func (s *Slot) WriteByte(offset int, b byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 || offset >= len(s.data) {
		return fmt.Errorf("%w: offset %d, slot has %d bytes", ErrPageOutOfRange, offset, len(s.data))
	}
	s.data[offset] = b
	return nil
}

func (s *Slot) pageOffset(page int) (int, error) {
	if page < 0 || page >= s.size {
		return 0, fmt.Errorf("%w: page %d, slot has %d pages", ErrPageOutOfRange, page, s.size)
	}
	return page * PageSize, nil
}

// Service is the Flash Service collaborator named in the core spec:
// BurnPage and PageChecksum, plus the WholeImageChecksum helper the
// supervisor uses as its final integrity gate.
type Service struct {
	slot *Slot
}

// NewService binds a Flash Service to one slot. Each tile run uses one
// Service bound to the active slot.
func NewService(slot *Slot) *Service {
	return &Service{slot: slot}
}

// BurnPage performs, in order: fill the hardware word buffer with the 128
// bytes of buf, then (under the slot's lock, standing in for the original's
// disabled-interrupts window) erase and commit the page. The fill step does
// not hold the lock so that, on real hardware, the IR ISR can keep receiving
// on other faces during the bulk of the burn; only the erase+commit window
// is serialized, matching the original's stated interrupt-disable rationale.
func (s *Service) BurnPage(page int, buf *[PageSize]byte) error {
	offset, err := s.slot.pageOffset(page)
	if err != nil {
		return err
	}

	filled := make([]byte, PageSize)
	copy(filled, buf[:])

	s.slot.mu.Lock()
	defer s.slot.mu.Unlock()

	// erase
	for i := 0; i < PageSize; i++ {
		s.slot.data[offset+i] = 0xFF
	}
	// commit
	copy(s.slot.data[offset:offset+PageSize], filled)

	return nil
}

// PageChecksum returns the unsigned 16-bit wrap-around sum of all 128 bytes
// of page i plus i itself. The page index fold is part of the whole-image
// checksum contract.
func (s *Service) PageChecksum(page int) (uint16, error) {
	offset, err := s.slot.pageOffset(page)
	if err != nil {
		return 0, err
	}

	s.slot.mu.Lock()
	defer s.slot.mu.Unlock()

	var sum uint16
	for i := 0; i < PageSize; i++ {
		sum += uint16(s.slot.data[offset+i])
	}
	sum += uint16(page)

	return sum, nil
}

// WholeImageChecksum sums PageChecksum over [0, totalPages). Used by the
// supervisor as the final handoff integrity gate and by seed-only mode to
// compute the value it will advertise in SEED packets.
func (s *Service) WholeImageChecksum(totalPages int) (uint16, error) {
	var sum uint16
	for i := 0; i < totalPages; i++ {
		c, err := s.PageChecksum(i)
		if err != nil {
			return 0, err
		}
		sum += c
	}
	return sum, nil
}

// CopyInto burns every page of src into dst, page by page, using dst's own
// Service. This is the seed-only "copy built-in game to active" step the
// original left unimplemented (see DESIGN.md Open Question).
func (dst *Service) CopyInto(src *Slot) error {
	pages := src.size
	if pages > dst.slot.size {
		pages = dst.slot.size
	}

	src.mu.Lock()
	defer src.mu.Unlock()

	var buf [PageSize]byte
	for page := 0; page < pages; page++ {
		offset := page * PageSize
		copy(buf[:], src.data[offset:offset+PageSize])
		if err := dst.BurnPage(page, &buf); err != nil {
			return err
		}
	}
	return nil
}

// ReadPage returns a copy of one page's bytes, used by the seed/serve
// machine to assemble a PUSH payload.
func (s *Service) ReadPage(page int) ([PageSize]byte, error) {
	var out [PageSize]byte
	offset, err := s.slot.pageOffset(page)
	if err != nil {
		return out, err
	}

	s.slot.mu.Lock()
	defer s.slot.mu.Unlock()

	copy(out[:], s.slot.data[offset:offset+PageSize])
	return out, nil
}
