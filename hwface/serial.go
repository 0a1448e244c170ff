// Package hwface adapts a physical IR transceiver to ircodec.FaceLink. One
// face's transceiver is wired to its own serial-like byte stream; on real
// hardware that stream would be a UART bit-banging an IR LED/phototransistor
// pair, exposed here through the same go-serial port abstraction the
// teacher used for its USB link.
package hwface

import (
	"errors"
	"io"

	serial "github.com/albenik/go-serial/v2"
)

// SerialFaceLink implements ircodec.FaceLink over a go-serial port. Reads
// are non-blocking: the port is opened with a short read timeout so
// ReadByte can report "nothing yet" (ok=false) rather than stall the
// caller's poll loop.
type SerialFaceLink struct {
	port *serial.Port
}

// OpenSerialFaceLink opens the named serial device for one face. baud
// should match the IR transceiver's bit rate; a 20ms read timeout keeps
// ReadByte non-blocking for the codec's poll loop.
func OpenSerialFaceLink(portName string, baud int) (*SerialFaceLink, error) {
	port, err := serial.Open(
		portName,
		serial.WithBaudrate(baud),
		serial.WithDataBits(8),
		serial.WithStopBits(serial.OneStopBit),
		serial.WithParity(serial.NoParity),
		serial.WithReadTimeout(20),
	)
	if err != nil {
		return nil, err
	}
	return &SerialFaceLink{port: port}, nil
}

// ReadByte reports the next received byte, if the read timeout produced
// one; ok is false (not an error) when nothing arrived within the timeout.
func (l *SerialFaceLink) ReadByte() (byte, bool, error) {
	buf := make([]byte, 1)
	n, err := l.port.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}

// WriteByte writes a single byte out the face's transceiver.
func (l *SerialFaceLink) WriteByte(b byte) error {
	_, err := l.port.Write([]byte{b})
	return err
}

// Busy always reports false: go-serial's Write is synchronous, so by the
// time WriteByte returns the byte is already on the wire.
func (l *SerialFaceLink) Busy() bool {
	return false
}

// Close releases the underlying port.
func (l *SerialFaceLink) Close() error {
	return l.port.Close()
}
