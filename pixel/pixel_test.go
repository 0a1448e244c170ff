package pixel

import "testing"

func TestSetFaceIgnoresOutOfRange(t *testing.T) {
	d := NewSimulatedDisplay()
	d.SetFace(-1, Red)
	d.SetFace(FaceCount, Red)
	for i, c := range d.Faces {
		if c != Off {
			t.Errorf("face %d = %v, want Off", i, c)
		}
	}
}

func TestSetAllAndPulseSuccess(t *testing.T) {
	d := NewSimulatedDisplay()
	d.SetAll(Orange)
	for i, c := range d.Faces {
		if c != Orange {
			t.Errorf("face %d = %v, want Orange", i, c)
		}
	}

	d.PulseSuccess()
	for i, c := range d.Faces {
		if c != Green {
			t.Errorf("face %d after PulseSuccess = %v, want Green", i, c)
		}
	}
	if d.Pulsed != 1 {
		t.Errorf("Pulsed = %d, want 1", d.Pulsed)
	}
}
