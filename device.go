package picker

import "image"

// Waveform identifies a hardware refresh procedure. The numeric values are
// the IT8951 display mode codes.
type Waveform int

const (
	// WaveformInit flashes the panel through its reset sequence; used for
	// clears.
	WaveformInit Waveform = 0
	// WaveformDU is a fast two-level update, used for partial refreshes and
	// the corrective pass of auto mode.
	WaveformDU Waveform = 1
	// WaveformGC16 is the slow 16-level grayscale update with the best
	// image quality.
	WaveformGC16 Waveform = 2
	// WaveformA2 is the fastest update, lowest fidelity; used during bursts
	// of interactive input.
	WaveformA2 Waveform = 6
)

func (w Waveform) String() string {
	switch w {
	case WaveformInit:
		return "INIT"
	case WaveformDU:
		return "DU"
	case WaveformGC16:
		return "GC16"
	case WaveformA2:
		return "A2"
	}
	return "unknown"
}

// Device is an open connection to a display panel. Implementations must
// fall back to a safe default waveform internally when asked for an
// unsupported one, before propagating any error.
//
// A Device is exclusively owned by a DeviceCell; nothing outside a cell
// critical section touches it.
type Device interface {
	// Bounds returns the panel geometry.
	Bounds() image.Rectangle

	// DisplayImage paints frame onto the panel using the given waveform,
	// restricted to region. The frame must match the panel geometry.
	DisplayImage(frame *image.Gray, wf Waveform, region image.Rectangle) error

	// Clear blanks the panel to white.
	Clear() error

	// Close releases the underlying connection.
	Close() error
}
