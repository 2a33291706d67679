package transceiver

// AddressMode identifies how a memory command addresses its target
// (bits 2..1 of the command byte).
type AddressMode uint8

const (
	AddressBroadcast AddressMode = 0b00
	AddressPhysical  AddressMode = 0b01
	AddressLogical   AddressMode = 0b10
	AddressReserved  AddressMode = 0b11
)

// Management sub-commands, meaningful in bits 4..0 when bit 5 is clear.
const (
	ManagementNOP  uint8 = 0x00
	ManagementSync uint8 = 0x01
)

// Command is a decoded view of a single sondbus command byte. Decoding
// never mutates anything; Command is a value type over the raw byte,
// with every field extracted on demand rather than cached at construction.
type Command struct {
	raw byte
}

// NewCommand wraps a raw command byte for decoding.
func NewCommand(raw byte) Command { return Command{raw: raw} }

// Raw returns the underlying command byte.
func (c Command) Raw() byte { return c.raw }

// SequenceNumber returns the 2-bit mod-4 sequence field in bits 7..6,
// carried by every command, management or memory.
func (c Command) SequenceNumber() uint8 {
	return (c.raw >> 6) & 0b11
}

// IsMemory reports whether bit 5 selects a memory command (true) or a
// management command (false).
func (c Command) IsMemory() bool {
	return c.raw&(1<<5) != 0
}

// ManagementSubCommand returns bits 4..0. Only meaningful when
// IsMemory() is false.
func (c Command) ManagementSubCommand() uint8 {
	return c.raw & 0b11111
}

// SizeFieldIsLong reports whether the size field is 2 bytes wide
// (true) rather than 1 (false). Only meaningful for memory commands.
func (c Command) SizeFieldIsLong() bool {
	return c.raw&(1<<4) != 0
}

// OffsetFieldIsLong reports whether the offset field is 2 bytes wide
// (true) rather than 1 (false). Only meaningful for memory commands.
func (c Command) OffsetFieldIsLong() bool {
	return c.raw&(1<<3) != 0
}

// AddressMode returns the addressing-mode field, bits 2..1. Only
// meaningful for memory commands.
func (c Command) AddressMode() AddressMode {
	return AddressMode((c.raw >> 1) & 0b11)
}

// IsWrite reports whether the memory command is a write (true) or a
// read (false). Only meaningful for memory commands.
func (c Command) IsWrite() bool {
	return c.raw&1 != 0
}

// AddressLen returns the wire width, in bytes, of this command's
// addressing field: 0 for broadcast, 2 for logical, 6 for physical.
// Callers must have already rejected AddressReserved; it returns -1
// there since the field has no well-defined width.
func (c Command) AddressLen() int {
	switch c.AddressMode() {
	case AddressPhysical:
		return PhysicalAddressSize
	case AddressLogical:
		return LogicalAddressSize
	case AddressBroadcast:
		return 0
	default:
		return -1
	}
}

// OffsetLen returns the wire width, in bytes, of the offset field.
func (c Command) OffsetLen() int {
	if c.OffsetFieldIsLong() {
		return 2
	}
	return 1
}

// SizeLen returns the wire width, in bytes, of the size field.
func (c Command) SizeLen() int {
	if c.SizeFieldIsLong() {
		return 2
	}
	return 1
}
