package picker

import (
	"image"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RefreshMode selects the update policy for a submitted frame.
type RefreshMode int

const (
	// ModeAuto paints the full frame with the high-fidelity waveform, then
	// follows up with a fast corrective pass.
	ModeAuto RefreshMode = iota
	// ModeFull paints the full frame with the high-fidelity waveform only.
	ModeFull
	// ModePartial diffs against the last shown frame and refreshes only
	// the changed rectangle with a fast waveform.
	ModePartial
	// ModeFast always repaints the full frame with the fastest waveform.
	// Used during bursts of interactive input.
	ModeFast
)

func (m RefreshMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeFull:
		return "full"
	case ModePartial:
		return "partial"
	case ModeFast:
		return "fast"
	}
	return "unknown"
}

// Rotation describes how a composed frame is oriented before it reaches
// the panel.
type Rotation int

const (
	RotateNone Rotation = iota
	RotateCW
	RotateCCW
	RotateFlip
)

func (r Rotation) String() string {
	switch r {
	case RotateNone:
		return "none"
	case RotateCW:
		return "cw"
	case RotateCCW:
		return "ccw"
	case RotateFlip:
		return "flip"
	}
	return "unknown"
}

// ParseRotation maps a config string ("CW", "ccw", ...) to a Rotation. An
// unrecognized value is a configuration mistake and is rejected rather than
// silently mapped to no rotation.
func ParseRotation(s string) (Rotation, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return RotateNone, nil
	case "CW":
		return RotateCW, nil
	case "CCW":
		return RotateCCW, nil
	case "FLIP", "180":
		return RotateFlip, nil
	}
	return RotateNone, errors.Errorf("unknown rotation %q", s)
}

// Job is one desired screen state. Jobs are immutable after creation and
// consumed at most once; a newer submission supersedes any unconsumed one.
type Job struct {
	Tag        string
	Frame      *image.Gray
	Rotation   Rotation
	Mode       RefreshMode
	EnqueuedAt time.Time
}
