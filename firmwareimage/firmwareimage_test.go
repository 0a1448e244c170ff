package firmwareimage

import (
	"strings"
	"testing"

	"github.com/Move38/Blinks-SDK/flashsvc"
)

// A minimal two-byte Intel HEX image at address 0, followed by EOF record.
const tinyHex = ":02000000AABB99\n:00000001FF\n"

func TestLoadHexPlacesDataAtAddress(t *testing.T) {
	slot, err := LoadHex(strings.NewReader(tinyHex))
	if err != nil {
		t.Fatal(err)
	}

	svc := flashsvc.NewService(slot)
	page, err := svc.ReadPage(0)
	if err != nil {
		t.Fatal(err)
	}
	if page[0] != 0xAA || page[1] != 0xBB {
		t.Errorf("page[0:2] = %02x %02x, want AA BB", page[0], page[1])
	}
	for i := 2; i < len(page); i++ {
		if page[i] != 0xFF {
			t.Fatalf("byte %d = %02x, want erased 0xFF", i, page[i])
		}
	}
}
