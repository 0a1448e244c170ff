package meshsim

import (
	"context"
	"math/rand"

	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/pixel"
	"github.com/Move38/Blinks-SDK/supervisor"
)

// Tile bundles one simulated tile's Supervisor with the collaborators its
// test harness wants direct access to.
type Tile struct {
	Name       string
	Supervisor *supervisor.Supervisor
	Flash      *flashsvc.Service
	Display    *pixel.SimulatedDisplay
}

// Connect wires face faceA of tile a to face faceB of tile b with a
// lossless (or lossPct-lossy) bidirectional channel link. Call this before
// either tile's codec has started polling.
func Connect(a *Tile, faceA int, b *Tile, faceB int, lossPct int, rng *rand.Rand) {
	linkA, linkB := NewChannelPair(ircodec.PushLen*4, lossPct, rng)
	a.Supervisor.Codec().SetLink(faceA, linkA)
	b.Supervisor.Codec().SetLink(faceB, linkB)
}

// NewTile builds one simulated tile with a fresh active slot and a
// disconnected codec (every face nil until Connect wires it up).
func NewTile(name string, opts ...supervisor.Option) *Tile {
	slot := flashsvc.NewSlot(flashsvc.MaxPages)
	flash := flashsvc.NewService(slot)

	var links [ircodec.FaceCount]ircodec.FaceLink
	codec := ircodec.NewCodec(links)

	display := pixel.NewSimulatedDisplay()

	sup := supervisor.New(flash, codec, display, opts...)

	return &Tile{Name: name, Supervisor: sup, Flash: flash, Display: display}
}

// RunPasses drives every tile's Supervisor for up to maxPasses single
// passes, or until ctx is canceled, stopping early once every tile's
// download machine reports Done(). It's a synchronous stand-in for each
// tile's independent Run loop, useful for deterministic scenario tests
// that don't want goroutine scheduling nondeterminism.
func RunPasses(ctx context.Context, tiles []*Tile, maxPasses int) {
	for i := 0; i < maxPasses; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		allDone := true
		for _, t := range tiles {
			t.Supervisor.Pass()
			if !t.Supervisor.Download().Descriptor().Done() {
				allDone = false
			}
		}
		if allDone {
			return
		}
	}
}
