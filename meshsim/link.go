// Package meshsim wires multiple supervisor.Supervisor instances together
// in-process, standing in for the IR phototransistor/LED pairs with a
// lossy byte channel per directed face-to-face connection. It exists to
// run the core's end-to-end scenarios without hardware.
package meshsim

import (
	"math/rand"
)

// ChannelLink is an in-process ircodec.FaceLink backed by a buffered byte
// channel in each direction, with optional random byte/packet loss for
// exercising the protocol's retry behavior.
type ChannelLink struct {
	out     chan<- byte
	in      <-chan byte
	lossPct int // 0-100, chance a written byte is silently dropped
	rng     *rand.Rand
}

// NewChannelPair builds two ChannelLinks, each one's outbound feeding the
// other's inbound, simulating one bidirectional face-to-face IR link.
func NewChannelPair(bufSize int, lossPct int, rng *rand.Rand) (a, b *ChannelLink) {
	ab := make(chan byte, bufSize)
	ba := make(chan byte, bufSize)
	a = &ChannelLink{out: ab, in: ba, lossPct: lossPct, rng: rng}
	b = &ChannelLink{out: ba, in: ab, lossPct: lossPct, rng: rng}
	return a, b
}

func (l *ChannelLink) ReadByte() (byte, bool, error) {
	select {
	case b := <-l.in:
		return b, true, nil
	default:
		return 0, false, nil
	}
}

func (l *ChannelLink) WriteByte(b byte) error {
	if l.lossPct > 0 && l.rng != nil && l.rng.Intn(100) < l.lossPct {
		// Simulate a dropped byte: the codec's framing/checksum layer is
		// the thing under test here, so we just don't deliver it.
		return nil
	}

	select {
	case l.out <- b:
	default:
		// Receiver hasn't drained fast enough; drop rather than block,
		// matching a lossy IR channel rather than a reliable pipe.
	}
	return nil
}

// Busy always reports false: the channel accepts a byte immediately or
// drops it, there is no in-flight state to report.
func (l *ChannelLink) Busy() bool {
	return false
}
