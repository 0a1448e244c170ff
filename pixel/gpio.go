package pixel

import (
	"fmt"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var hostInitialized atomic.Bool

// FacePins names, per face, the three GPIO pin identifiers (as known to
// periph.io's gpioreg, e.g. "GPIO17") driving that face's red, green, and
// blue LED legs.
type FacePins struct {
	Red, Green, Blue string
}

type facePins struct {
	red, green, blue gpio.PinIO
}

// GPIODisplay drives six faces' RGB LEDs over discrete GPIO pins. Unlike
// the original's timer-PWM-driven analog brightness, this drives each leg
// as an on/off output: Color's coarse palette needs nothing finer.
type GPIODisplay struct {
	faces [FaceCount]facePins
}

// NewGPIODisplay initializes the periph.io host (once per process) and
// resolves every configured pin by name.
func NewGPIODisplay(pins [FaceCount]FacePins) (*GPIODisplay, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("pixel: host init: %w", err)
		}
	}

	d := &GPIODisplay{}
	for i, p := range pins {
		red := gpioreg.ByName(p.Red)
		green := gpioreg.ByName(p.Green)
		blue := gpioreg.ByName(p.Blue)
		if red == nil || green == nil || blue == nil {
			return nil, fmt.Errorf("pixel: face %d: unresolved pin name in %+v", i, p)
		}
		d.faces[i] = facePins{red: red, green: green, blue: blue}
	}
	return d, nil
}

func (d *GPIODisplay) SetFace(face int, c Color) {
	if face < 0 || face >= FaceCount {
		return
	}
	r, g, b := legLevels(c)
	fp := d.faces[face]
	fp.red.Out(r)
	fp.green.Out(g)
	fp.blue.Out(b)
}

func (d *GPIODisplay) SetAll(c Color) {
	for i := range d.faces {
		d.SetFace(i, c)
	}
}

func (d *GPIODisplay) PulseSuccess() {
	d.SetAll(Green)
}

func legLevels(c Color) (r, g, b gpio.Level) {
	switch c {
	case Red:
		return gpio.High, gpio.Low, gpio.Low
	case Green:
		return gpio.Low, gpio.High, gpio.Low
	case DimGreen:
		return gpio.Low, gpio.High, gpio.Low
	case Blue:
		return gpio.Low, gpio.Low, gpio.High
	case Orange:
		return gpio.High, gpio.High, gpio.Low
	case Cyan:
		return gpio.Low, gpio.High, gpio.High
	default:
		return gpio.Low, gpio.Low, gpio.Low
	}
}
