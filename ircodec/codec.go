package ircodec

import (
	"errors"
	"fmt"
)

// ErrTransmitterBusy is returned by SendPacket when SendBegin cannot acquire
// a face's transmitter: a send is already in flight on it, or the link
// itself reports busy (e.g. it is currently receiving). The caller abandons this transmission; it isn't
// retried until the next periodic opportunity.
var ErrTransmitterBusy = errors.New("ircodec: transmitter busy")

// ErrNotSending is returned by SendByte/SendComplete called without a
// preceding successful SendBegin.
var ErrNotSending = errors.New("ircodec: send called without SendBegin")

func expectedLen(header byte) int {
	switch header {
	case HeaderSeed:
		return SeedLen
	case HeaderPull:
		return PullLen
	case HeaderPush:
		return PushLen
	default:
		return 0
	}
}

type faceRx struct {
	buf       []byte
	ready     bool
	readyBuf  [PushLen]byte
	readyLen  int
	malformed int
}

// Codec drives the per-face packet framing/checksum state machine on top of
// FaceLink byte transports. One Codec instance serves all six faces of a
// tile.
type Codec struct {
	links      [FaceCount]FaceLink
	rx         [FaceCount]faceRx
	txInFlight [FaceCount]bool
}

// NewCodec binds a Codec to six FaceLinks, indexed by face number.
func NewCodec(links [FaceCount]FaceLink) *Codec {
	return &Codec{links: links}
}

// SetLink (re)binds face f to a FaceLink after construction, for callers
// that assemble a tile's faces one neighbor connection at a time (e.g. the
// mesh simulator).
func (c *Codec) SetLink(f int, link FaceLink) {
	c.links[f] = link
}

// Poll reads the bytes currently available on face f through the per-face
// framer until one complete, valid packet has been deposited or no bytes
// remain; bytes after that packet stay in the link for the next Poll. This
// is the software analogue of the original's periodic ISR hook; callers
// typically invoke it once per face per supervisor pass. Codec has no
// internal locking, so Poll and the consuming calls (IsReady, Buffer,
// MarkConsumed) must run on the same goroutine.
//
// If a Poll deposits a packet while the previous one has not yet been
// consumed via MarkConsumed, it overwrites the previous slot: the protocol
// tolerates packet loss, so there is no queueing here.
func (c *Codec) Poll(f int) error {
	link := c.links[f]
	if link == nil {
		return nil
	}

	rx := &c.rx[f]

	for {
		b, ok, err := link.ReadByte()
		if err != nil {
			return fmt.Errorf("ircodec: face %d: %w", f, err)
		}
		if !ok {
			return nil
		}

		rx.buf = append(rx.buf, b)

		want := expectedLen(rx.buf[0])
		if want == 0 {
			// Unknown header byte: not a valid start of frame. Drop it
			// and keep scanning for a recognizable header.
			rx.malformed++
			rx.buf = rx.buf[:0]
			continue
		}

		if len(rx.buf) < want {
			continue
		}

		if _, err := Decode(rx.buf); err != nil {
			rx.malformed++
		} else {
			rx.readyLen = copy(rx.readyBuf[:], rx.buf)
			rx.ready = true
			rx.buf = rx.buf[:0]
			return nil
		}
		rx.buf = rx.buf[:0]
	}
}

// IsReady reports whether face f has a fully received, checksum-valid
// packet waiting to be consumed.
func (c *Codec) IsReady(f int) bool {
	return c.rx[f].ready
}

// Len returns the wire length of the ready packet on face f.
func (c *Codec) Len(f int) int {
	return c.rx[f].readyLen
}

// Buffer returns the raw wire bytes of the ready packet on face f. The
// returned slice is only valid until the next MarkConsumed/Poll call.
func (c *Codec) Buffer(f int) []byte {
	return c.rx[f].readyBuf[:c.rx[f].readyLen]
}

// MarkConsumed clears the ready flag on face f, allowing the next packet to
// be deposited.
func (c *Codec) MarkConsumed(f int) {
	c.rx[f].ready = false
}

// MalformedCount returns the running count of discarded input on face f:
// each byte dropped because it is not a known header byte, plus each
// full-length frame that failed Decode (e.g. a bad checksum). Ambient
// observability only; it never changes control flow.
func (c *Codec) MalformedCount(f int) int {
	return c.rx[f].malformed
}

// SendBegin acquires face f's transmitter. It fails if a send is already in
// flight on this face, or if the underlying FaceLink reports busy.
func (c *Codec) SendBegin(f int) bool {
	if c.txInFlight[f] {
		return false
	}
	if c.links[f] != nil && c.links[f].Busy() {
		return false
	}
	c.txInFlight[f] = true
	return true
}

// SendByte transmits one byte on face f. Valid only between a successful
// SendBegin and a SendComplete.
func (c *Codec) SendByte(f int, b byte) error {
	if !c.txInFlight[f] {
		return ErrNotSending
	}
	if c.links[f] == nil {
		return nil
	}
	return c.links[f].WriteByte(b)
}

// SendComplete releases face f's transmitter.
func (c *Codec) SendComplete(f int) {
	c.txInFlight[f] = false
}

// SendPacket is a convenience wrapping SendBegin/SendByte*/SendComplete
// around a fully encoded packet (as produced by EncodeSeed/EncodePull/
// EncodePush). It returns ErrTransmitterBusy without sending any bytes if
// the transmitter could not be acquired.
func (c *Codec) SendPacket(f int, raw []byte) error {
	if !c.SendBegin(f) {
		return ErrTransmitterBusy
	}
	defer c.SendComplete(f)

	for _, b := range raw {
		if err := c.SendByte(f, b); err != nil {
			return err
		}
	}
	return nil
}
