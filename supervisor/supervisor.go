// Package supervisor implements the top-level loop that fans into the
// Download and Seed/Serve state machines, owns the done-timeout, and
// reports a handoff result instead of physically jumping into the active
// slot (§4.6 of the core spec).
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Move38/Blinks-SDK/download"
	"github.com/Move38/Blinks-SDK/flashsvc"
	"github.com/Move38/Blinks-SDK/ircodec"
	"github.com/Move38/Blinks-SDK/pixel"
	"github.com/Move38/Blinks-SDK/seed"
	"github.com/Move38/Blinks-SDK/tickset"
)

// ErrQuiescenceIncomplete is the handoff failure for a download that timed
// out before finishing: the supervisor must not jump into a partially
// written active slot.
var ErrQuiescenceIncomplete = errors.New("supervisor: quiescence reached with an incomplete image")

// ErrImageChecksumMismatch is the handoff failure when the recomputed
// whole-image checksum doesn't match the value latched from the first
// accepted SEED. This is the final integrity gate before handoff.
var ErrImageChecksumMismatch = errors.New("supervisor: whole-image checksum mismatch at handoff")

// HandoffResult is returned by Run in place of jumping to the active slot's
// reset vector. A real device's invocation glue (out of this core's scope)
// is expected to act on it.
type HandoffResult struct {
	Success bool
	Reason  error
}

// Progress describes a point-in-time snapshot for ProgressCallback.
type Progress struct {
	Phase      string // "downloading" until the descriptor is Done, then "seeding"
	NextPage   uint8
	TotalPages uint8
}

// ProgressCallback is invoked once per pass of Run's main loop (not by
// Pass). Implementations should return quickly.
type ProgressCallback func(Progress)

// Logger is an optional structured-logging collaborator. It receives the
// end-of-run handoff outcome, pass failures from Run, and a Debug line for
// a packet that fails its re-decode in the main loop. Busy-transmitter
// drops and out-of-order PUSHes are absorbed by the state machines without
// a log line, and none of these recoverable conditions surface in
// HandoffResult.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

// Config holds the supervisor's tunables, set via functional Options.
type Config struct {
	Logger                Logger
	ProgressCallback      ProgressCallback
	TickInterval          time.Duration
	SourceFaceRestriction bool
}

func defaultConfig() Config {
	return Config{
		Logger:       nopLogger{},
		TickInterval: tickset.DefaultTickInterval,
	}
}

// Option configures a Supervisor at construction time.
type Option func(*Config)

// WithLogger attaches a Logger for recoverable-error and lifecycle
// observability.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithProgressCallback attaches a per-pass progress callback.
func WithProgressCallback(cb ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = cb
	}
}

// WithTickInterval overrides the coarse tick period. The next-seed and
// until-done countdowns are always derived from this so that reducing it
// for a faster-than-real-time simulation scales both proportionally rather
// than changing the protocol's relative timing.
func WithTickInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.TickInterval = d
		}
	}
}

// WithSourceFaceRestriction opts the download machine into rejecting PUSH
// packets from any face but the locked-in source (see Open Question
// resolution in DESIGN.md).
func WithSourceFaceRestriction(restrict bool) Option {
	return func(c *Config) {
		c.SourceFaceRestriction = restrict
	}
}

// Supervisor is the per-tile top-level loop. One instance serves one
// bootloader run, and is the single owned bundle for that run's image
// descriptor, countdowns, and seed-rotation pointer (Design Notes §9 —
// no scattered globals).
type Supervisor struct {
	cfg Config

	flash     *flashsvc.Service
	codec     *ircodec.Codec
	scheduler *tickset.Scheduler
	download  *download.Machine
	seed      *seed.Machine
	display   pixel.Display
}

// New wires a Supervisor around a Flash Service, an IR Codec, and a Pixel
// Display for one tile. Call EnterDownloadMode or EnterSeedOnlyMode before
// Run.
func New(flash *flashsvc.Service, codec *ircodec.Codec, display pixel.Display, opts ...Option) *Supervisor {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	scheduler := tickset.NewScheduler(cfg.TickInterval)

	dl := download.New(flash, codec, scheduler, nil)
	dl.RestrictToSourceFace(cfg.SourceFaceRestriction)

	sd := seed.New(flash, codec, scheduler, dl)
	dl.SetRotation(sd)

	if display == nil {
		display = pixel.NewSimulatedDisplay()
	}

	return &Supervisor{
		cfg:       cfg,
		flash:     flash,
		codec:     codec,
		scheduler: scheduler,
		download:  dl,
		seed:      sd,
		display:   display,
	}
}

// EnterDownloadMode arms the supervisor to wait for a SEED from any
// neighbor and download from whoever sends the first one. Equivalent to
// the original's BOOTLOADER_DOWNLOAD_MODE_VECTOR entry.
func (s *Supervisor) EnterDownloadMode() {
	s.scheduler.ResetUntilDone()
	s.display.SetAll(pixel.Orange)
}

// EnterSeedOnlyMode copies builtin into the active slot (resolving the
// original's Open Question — see DESIGN.md), computes the whole-image
// checksum over the now-populated active slot, and marks the download
// descriptor as already complete so the main loop immediately starts
// seeding. Equivalent to the original's BOOTLOADER_SEED_MODE_VECTOR entry.
func (s *Supervisor) EnterSeedOnlyMode(builtin *flashsvc.Slot) error {
	if err := s.flash.CopyInto(builtin); err != nil {
		return fmt.Errorf("supervisor: seed-only copy: %w", err)
	}

	checksum, err := s.flash.WholeImageChecksum(flashsvc.MaxPages)
	if err != nil {
		return fmt.Errorf("supervisor: seed-only checksum: %w", err)
	}

	s.download.SeedOnlyInit(flashsvc.MaxPages, checksum)
	s.scheduler.ResetUntilDone()
	s.display.SetAll(pixel.Blue)

	return nil
}

// Run drains inbound packets, emits SEEDs, and watches the done-timeout
// until quiescence or ctx cancellation. It blocks until one of those
// happens. The scheduler's tick goroutine is started here, on its own
// goroutine, standing in for the original's fine timer ISR; harnesses that
// want deterministic control over the countdowns should call Pass/Tick
// directly instead of Run.
func (s *Supervisor) Run(ctx context.Context) HandoffResult {
	go s.scheduler.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return HandoffResult{Success: false, Reason: ctx.Err()}
		default:
		}

		if err := s.pass(); err != nil {
			s.cfg.Logger.Error("supervisor pass failed", "error", err)
			return HandoffResult{Success: false, Reason: err}
		}

		if s.cfg.ProgressCallback != nil {
			d := s.download.Descriptor()
			phase := "downloading"
			if d.Done() {
				phase = "seeding"
			}
			s.cfg.ProgressCallback(Progress{Phase: phase, NextPage: d.NextPage, TotalPages: d.TotalPages})
		}

		if s.scheduler.UntilDone.IsZero() {
			return s.finish()
		}
	}
}

// Pass runs one drain-and-maybe-seed iteration without checking or acting
// on the until-done timeout. Exported for harnesses (the mesh simulator,
// tests) that want fine-grained, deterministic control over scheduling
// instead of calling Run's blocking loop.
func (s *Supervisor) Pass() error {
	return s.pass()
}

// Codec exposes the underlying IR Codec, mostly so the mesh simulator can
// wire face links in after construction via ircodec.Codec.SetLink.
func (s *Supervisor) Codec() *ircodec.Codec {
	return s.codec
}

// Tick decrements the next-seed and until-done countdowns by one tick.
// Exported for harnesses driving time deterministically instead of letting
// Run's real-time ticker advance it.
func (s *Supervisor) Tick() {
	s.scheduler.Tick()
}

// UntilDoneExpired reports whether the done-timeout has elapsed, for
// harnesses that drive Pass/Tick manually instead of calling Run.
func (s *Supervisor) UntilDoneExpired() bool {
	return s.scheduler.UntilDone.IsZero()
}

// Finish performs the final integrity gate and reports the handoff result,
// for harnesses that drive Pass/Tick manually instead of calling Run.
func (s *Supervisor) Finish() HandoffResult {
	return s.finish()
}

// pass drains every face once, in fixed numeric order, and emits a SEED if
// one is due. Fair enough for this protocol because the real distribution
// mechanism is the SEED/PULL rotation, not fairness of face draining.
func (s *Supervisor) pass() error {
	for f := 0; f < ircodec.FaceCount; f++ {
		if err := s.codec.Poll(f); err != nil {
			return fmt.Errorf("supervisor: poll face %d: %w", f, err)
		}

		if !s.codec.IsReady(f) {
			continue
		}

		raw := append([]byte(nil), s.codec.Buffer(f)...)
		s.codec.MarkConsumed(f)

		pkt, err := ircodec.Decode(raw)
		if err != nil {
			// Already validated by the codec; should not happen, but
			// stay defensive rather than propagate framing internals.
			s.cfg.Logger.Debug("dropped packet that failed late re-decode", "face", f)
			continue
		}

		if err := s.dispatch(f, pkt); err != nil {
			return err
		}
	}

	return s.seed.MaybeEmitSeed()
}

func (s *Supervisor) dispatch(f int, pkt ircodec.Packet) error {
	switch pkt.Kind {
	case ircodec.KindSeed:
		if err := s.download.HandleSeed(f, pkt.Seed); err != nil {
			return fmt.Errorf("supervisor: handle seed face %d: %w", f, err)
		}
		s.paintProgress(f)

	case ircodec.KindPush:
		before := s.download.Descriptor().NextPage
		if err := s.download.HandlePush(f, pkt.Push); err != nil {
			return fmt.Errorf("supervisor: handle push face %d: %w", f, err)
		}
		after := s.download.Descriptor().NextPage
		if after > before {
			if after%2 == 0 {
				s.display.SetFace(f, pixel.DimGreen)
			} else {
				s.display.SetFace(f, pixel.Green)
			}
			if s.download.Descriptor().Done() {
				s.display.SetAll(pixel.Blue)
			}
		} else {
			s.display.SetFace(f, pixel.Orange)
		}

	case ircodec.KindPull:
		if err := s.seed.HandlePull(f, pkt.Pull); err != nil {
			return fmt.Errorf("supervisor: handle pull face %d: %w", f, err)
		}
	}

	return nil
}

func (s *Supervisor) paintProgress(f int) {
	s.display.SetFace(f, pixel.Blue)
}

// finish performs the final integrity gate and reports the handoff result.
func (s *Supervisor) finish() HandoffResult {
	d := s.download.Descriptor()

	if !d.Done() {
		s.cfg.Logger.Error("quiescence reached with incomplete image", "nextPage", d.NextPage, "totalPages", d.TotalPages)
		s.display.SetAll(pixel.Red)
		return HandoffResult{Success: false, Reason: ErrQuiescenceIncomplete}
	}

	recomputed, err := s.flash.WholeImageChecksum(int(d.TotalPages))
	if err != nil {
		s.display.SetAll(pixel.Red)
		return HandoffResult{Success: false, Reason: err}
	}

	if recomputed != d.ImageChecksum {
		s.cfg.Logger.Error("image checksum mismatch at handoff", "want", d.ImageChecksum, "got", recomputed)
		s.display.SetAll(pixel.Red)
		return HandoffResult{Success: false, Reason: ErrImageChecksumMismatch}
	}

	s.cfg.Logger.Info("handoff succeeded", "totalPages", d.TotalPages)
	s.display.PulseSuccess()
	return HandoffResult{Success: true}
}

// Download exposes the underlying Download State Machine, mostly for tests
// and the mesh simulator that want to assert on descriptor state directly.
func (s *Supervisor) Download() *download.Machine {
	return s.download
}

// Seed exposes the underlying Seed/Serve State Machine for the same
// reasons.
func (s *Supervisor) Seed() *seed.Machine {
	return s.seed
}
