// Package master implements the bus-master side of sondbus: building
// command frames, driving them over a serial.Port, and decoding
// whatever a targeted node sends back.
//
// The split between a pure frame-building Descriptor and an I/O-driving
// Client mirrors a wire-instruction compiler paired with a blocking
// cycle runner: Descriptor.Build plays the compiler's role, and
// Client.cycle plays the runner's. Unlike a simpler single-address,
// ack-every-write design, this package follows the bus's actual wire
// contract: three addressing modes with independent offset/size field
// widths, and writes that complete with no response at all -- only a
// targeted read puts anything back on the wire.
package master

import (
	"sondbus/crc8"
	"sondbus/transceiver"
	"sondbus/wire"
)

type descriptorKind uint8

const (
	kindSync descriptorKind = iota
	kindBroadcastWrite
	kindTargetedWrite
	kindTargetedRead
)

// Descriptor is a fully-specified command, independent of the sequence
// number it will eventually carry (that's assigned at Build time by
// whatever Client is tracking the bus's sequence baseline).
type Descriptor struct {
	kind descriptorKind

	physicalAddress [transceiver.PhysicalAddressSize]byte
	logicalAddress  [transceiver.LogicalAddressSize]byte
	useLogical      bool

	offset     uint16
	wideOffset bool

	writeData []byte

	readSize uint16
	wideSize bool
}

// Sync builds a descriptor for the SYN frame that (re)establishes bus
// synchronization.
func Sync() *Descriptor { return &Descriptor{kind: kindSync} }

// BroadcastWrite builds a descriptor for a write every node on the bus
// accepts.
func BroadcastWrite(offset uint16, data []byte) *Descriptor {
	return &Descriptor{
		kind:       kindBroadcastWrite,
		offset:     offset,
		writeData:  data,
		wideOffset: offset > 0xFF,
		wideSize:   len(data) > 0xFF,
	}
}

// PhysicalWrite targets a single node by its fixed 6-byte address.
func PhysicalWrite(addr [transceiver.PhysicalAddressSize]byte, offset uint16, data []byte) *Descriptor {
	return &Descriptor{
		kind:            kindTargetedWrite,
		physicalAddress: addr,
		offset:          offset,
		writeData:       data,
		wideOffset:      offset > 0xFF,
		wideSize:        len(data) > 0xFF,
	}
}

// LogicalWrite targets a single node by its 2-byte logical address.
func LogicalWrite(addr [transceiver.LogicalAddressSize]byte, offset uint16, data []byte) *Descriptor {
	return &Descriptor{
		kind:           kindTargetedWrite,
		logicalAddress: addr,
		useLogical:     true,
		offset:         offset,
		writeData:      data,
		wideOffset:     offset > 0xFF,
		wideSize:       len(data) > 0xFF,
	}
}

// PhysicalRead targets a single node by its fixed 6-byte address and
// requests size bytes back.
func PhysicalRead(addr [transceiver.PhysicalAddressSize]byte, offset uint16, size uint16) *Descriptor {
	return &Descriptor{
		kind:            kindTargetedRead,
		physicalAddress: addr,
		offset:          offset,
		readSize:        size,
		wideOffset:      offset > 0xFF,
		wideSize:        size > 0xFF,
	}
}

// LogicalRead targets a single node by its 2-byte logical address and
// requests size bytes back.
func LogicalRead(addr [transceiver.LogicalAddressSize]byte, offset uint16, size uint16) *Descriptor {
	return &Descriptor{
		kind:           kindTargetedRead,
		logicalAddress: addr,
		useLogical:     true,
		offset:         offset,
		readSize:       size,
		wideOffset:     offset > 0xFF,
		wideSize:       size > 0xFF,
	}
}

// ExpectsResponse reports whether this command puts anything back on
// the wire. Only targeted reads do.
func (d *Descriptor) ExpectsResponse() bool {
	return d.kind == kindTargetedRead
}

// ResponseLen returns how many payload bytes (not counting the
// trailing CRC) a targeted read's response carries.
func (d *Descriptor) ResponseLen() int {
	if d.kind != kindTargetedRead {
		return 0
	}
	return int(d.readSize)
}

func (d *Descriptor) commandByte(seq uint8) byte {
	base := byte(seq&0b11) << 6
	if d.kind == kindSync {
		return base | transceiver.ManagementSync
	}

	b := base | 1<<5
	if d.wideSize {
		b |= 1 << 4
	}
	if d.wideOffset {
		b |= 1 << 3
	}
	switch d.kind {
	case kindBroadcastWrite:
		b |= byte(transceiver.AddressBroadcast) << 1
	case kindTargetedWrite, kindTargetedRead:
		if d.useLogical {
			b |= byte(transceiver.AddressLogical) << 1
		} else {
			b |= byte(transceiver.AddressPhysical) << 1
		}
	}
	if d.kind == kindBroadcastWrite || d.kind == kindTargetedWrite {
		b |= 1
	}
	return b
}

func appendWide(out *wire.ScratchOutput, v uint16, wide bool) {
	if wide {
		out.Output([]byte{byte(v >> 8), byte(v)})
		return
	}
	out.Output([]byte{byte(v)})
}

func frameCRC(data []byte) byte {
	r := crc8.NewRolling()
	r.Update(data)
	return r.Finalize()
}

// Build renders the full master-to-bus byte sequence for this command
// at the given sequence number, including its (header, for reads)
// trailing CRC. The frame is assembled into a wire.ScratchOutput, a
// fixed-capacity scratch buffer, rather than a growing slice.
func (d *Descriptor) Build(seq uint8) []byte {
	out := wire.NewScratchOutput()
	out.Output([]byte{transceiver.StartByte, d.commandByte(seq)})

	if d.kind == kindSync {
		out.Output(transceiver.SyncMagic[:])
		out.Output([]byte{transceiver.ProtocolVersion})
		out.Output([]byte{frameCRC(out.Result())})
		return out.Result()
	}

	if d.kind == kindTargetedWrite || d.kind == kindTargetedRead {
		if d.useLogical {
			out.Output(d.logicalAddress[:])
		} else {
			out.Output(d.physicalAddress[:])
		}
	}

	appendWide(out, d.offset, d.wideOffset)

	switch d.kind {
	case kindBroadcastWrite, kindTargetedWrite:
		appendWide(out, uint16(len(d.writeData)), d.wideSize)
		out.Output(d.writeData)
		out.Output([]byte{frameCRC(out.Result())})
	case kindTargetedRead:
		appendWide(out, d.readSize, d.wideSize)
		out.Output([]byte{frameCRC(out.Result())})
	}
	return out.Result()
}
