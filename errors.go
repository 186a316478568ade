package picker

import "github.com/pkg/errors"

// Fault taxonomy for the display pipeline. Dispatch faults are absorbed by
// the worker (frame dropped, cooldown entered); only configuration errors
// at startup propagate to the owner.
var (
	// ErrDispatchTimeout marks a hardware call that exceeded its deadline.
	// The call is abandoned, never cancelled.
	ErrDispatchTimeout = errors.New("display dispatch timed out")

	// ErrLockUnavailable marks a short write-lock acquisition that failed,
	// typically because a reinitialization holds the device lock. The frame
	// is dropped without fault escalation.
	ErrLockUnavailable = errors.New("device lock unavailable")

	// ErrNoDevice means the resource cell holds no live handle.
	ErrNoDevice = errors.New("no live device handle")

	// ErrReinitFailed marks a recovery attempt that could not install a
	// fresh handle; the pipeline stays disabled until its cooldown expires.
	ErrReinitFailed = errors.New("device reinitialization failed")
)
