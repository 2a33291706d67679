package transceiver

import "errors"

// ErrCallback is the sentinel an application callback may wrap or
// return to signal it could not honor a memory request. The
// transceiver treats it exactly like any other protocol violation:
// drop sync, return to WaitForStart.
var ErrCallback = errors.New("transceiver: callback rejected memory access")

// Callbacks is the pair of application-provided functions through
// which the transceiver reaches node state. Neither may block: a slow
// callback is a bus violation, since the next wire byte must be
// serviced within one bit-time. Shaped as a read_object/
// write_object pair rather than a single tagged action, matching how
// the functions are actually invoked from the phase handlers.
type Callbacks struct {
	// ReadMemory fills dest with len(dest) bytes read from offset. dest
	// is a borrowed view into the transceiver's scratchpad, valid only
	// for the duration of the call.
	ReadMemory func(offset uint16, dest []byte) error

	// WriteMemory writes src to offset. src is a borrowed view into the
	// transceiver's scratchpad, valid only for the duration of the call.
	WriteMemory func(offset uint16, src []byte) error
}
