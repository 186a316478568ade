package picker

// PipelineState enumerates the dispatch pipeline's legal states.
//
//	Uninitialized -> Ready
//	Ready -> Busy -> Ready            (dispatch succeeded)
//	Busy -> Disabled                  (timeout or hardware error)
//	Disabled -> Reinitializing -> Ready
//	Reinitializing -> Disabled        (recovery failed)
//
// Disabled is a lazily-checked gate: the cooldown elapsing does not
// transition the state by itself, the next dispatch attempt re-checks the
// gate and proceeds straight to Busy. A successful reinitialization
// force-clears the gate regardless of the remaining cooldown.
type PipelineState int

const (
	StateUninitialized PipelineState = iota
	StateReady
	StateBusy
	StateDisabled
	StateReinitializing
)

func (s PipelineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateBusy:
		return "busy"
	case StateDisabled:
		return "disabled"
	case StateReinitializing:
		return "reinitializing"
	}
	return "unknown"
}
