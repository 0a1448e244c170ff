// Package firmwareimage loads a built firmware image from an Intel HEX
// file into a flashsvc.Slot, for seed-only mode's builtin-image source.
package firmwareimage

import (
	"fmt"
	"io"
	"os"

	"github.com/marcinbor85/gohex"

	"github.com/Move38/Blinks-SDK/flashsvc"
)

// LoadHexFile reads an Intel HEX file and renders it into a Slot sized for
// the active slot, filling any unaddressed byte with 0xFF the same way the
// flash itself reads as erased.
func LoadHexFile(path string) (*flashsvc.Slot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("firmwareimage: open %s: %w", path, err)
	}
	defer f.Close()

	return LoadHex(f)
}

// LoadHex is LoadHexFile's reader-based counterpart, for embedding an image
// or loading one from a non-file source.
func LoadHex(r io.Reader) (*flashsvc.Slot, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("firmwareimage: parse intel hex: %w", err)
	}

	slot := flashsvc.NewSlot(flashsvc.MaxPages)
	size := flashsvc.MaxPages * flashsvc.PageSize

	for _, seg := range mem.GetDataSegments() {
		addr := int(seg.Address)
		for i, b := range seg.Data {
			offset := addr + i
			if offset < 0 || offset >= size {
				continue
			}
			if err := slot.WriteByte(offset, b); err != nil {
				return nil, fmt.Errorf("firmwareimage: write offset %d: %w", offset, err)
			}
		}
	}

	return slot, nil
}
