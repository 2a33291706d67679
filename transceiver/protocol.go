package transceiver

// Wire-level constants shared by every phase of the frame parser.
const (
	// StartByte begins every frame. Any other byte received while
	// hunting for a frame start is ignored.
	StartByte byte = 0x55

	// ProtocolVersion is the only version this transceiver accepts in a
	// Sync frame. A mismatch drops sync.
	ProtocolVersion byte = 0x01
)

// SyncMagic is the 15-byte constant that must follow a SYNC command
// byte, verbatim, for the slave to (re)gain synchronization.
var SyncMagic = [15]byte{
	0x1F, 0x2E, 0x3D, 0x4C, 0x5B, 0x6A, 0x79, 0x88,
	0x97, 0xA6, 0xB5, 0xC4, 0xD3, 0xE2, 0xF1,
}

// Wire sizes of the addressing field per addressing mode.
const (
	PhysicalAddressSize = 6
	LogicalAddressSize  = 2
)
