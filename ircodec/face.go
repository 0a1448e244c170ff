package ircodec

// FaceLink is the named hardware-facing collaborator for one IR face's raw
// byte transport. It deliberately knows nothing about packets: framing,
// checksums, and the SEED/PULL/PUSH vocabulary all live in this package.
//
// Concrete adapters: hwface.SerialFaceLink drives real hardware over a
// serial-attached IR modem; meshsim provides an in-process channel-backed
// adapter for tests and the mesh simulator.
type FaceLink interface {
	// ReadByte returns the next byte available from this face without
	// blocking. ok is false if nothing is available right now.
	ReadByte() (b byte, ok bool, err error)

	// WriteByte transmits one byte on this face.
	WriteByte(b byte) error

	// Busy reports whether the underlying transport cannot currently
	// accept a new transmission (e.g. it is mid-receive). The Codec's own
	// per-face "already sending" bookkeeping is checked in addition to
	// this.
	Busy() bool
}
