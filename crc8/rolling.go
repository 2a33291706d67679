// Package crc8 provides the rolling AUTOSAR CRC-8 accumulator the
// sondbus wire format uses to fence every frame. The polynomial math
// itself is treated as an external collaborator and delegated to
// sigurn/crc8's table-driven implementation rather than hand-rolled, the
// way the core transceiver treats the CRC engine as a contract-only
// dependency.
package crc8

import "github.com/sigurn/crc8"

var table = crc8.MakeTable(crc8.CRC8_AUTOSAR)

// Rolling is a CRC-8/AUTOSAR accumulator that can be updated one byte at
// a time and finalized without disturbing the running total. Folding a
// byte into the accumulator and finalizing it are distinct operations:
// finalize applies the XOR-out and is idempotent, but the underlying
// state continues to evolve across subsequent updates, so the same byte
// that was just compared against a finalized boundary value can still be
// folded back in afterwards.
type Rolling struct {
	state uint8
}

// NewRolling returns an accumulator initialized to the AUTOSAR init value.
func NewRolling() *Rolling {
	r := &Rolling{}
	r.Reset()
	return r
}

// Reset re-initializes the accumulator as if newly constructed.
func (r *Rolling) Reset() {
	r.state = crc8.CRC8_AUTOSAR.Init
}

// UpdateSingle folds one byte into the accumulator.
func (r *Rolling) UpdateSingle(b byte) {
	r.state = crc8.Update(r.state, []byte{b}, table)
}

// Update folds a run of bytes into the accumulator in order.
func (r *Rolling) Update(data []byte) {
	for _, b := range data {
		r.UpdateSingle(b)
	}
}

// Finalize returns the AUTOSAR checksum for everything folded in so far,
// without mutating the accumulator. Safe to call repeatedly, and safe to
// keep updating afterwards.
func (r *Rolling) Finalize() byte {
	return r.state ^ crc8.CRC8_AUTOSAR.XorOut
}
