// Package transceiver implements the sondbus slave-side frame
// automaton: a sans-I/O state machine that consumes one byte at a time
// and, when a frame calls for a reply, produces one byte at a time in
// return. It owns no file descriptor, timer, or goroutine; the caller
// is responsible for feeding it wire bytes and writing out whatever it
// hands back.
//
// The phase layout and the rule that the rolling CRC folds a byte in
// only after using it for a boundary comparison together form a
// jump-table style dispatch over wire phases, generalized here from a
// NOP/SYNC-only skeleton to the full memory-command pipeline.
package transceiver

import "sondbus/crc8"

type phase uint8

const (
	phaseWaitForStart phase = iota
	phaseWaitForCommand
	phaseSync
	phaseMemAddress
	phaseMemOffset
	phaseMemSize
	phaseMemHeaderCRC
	phaseMemRxPayload
	phaseMemTxPayload
	phaseSendCRC
	phaseWaitForCRC
)

func (p phase) String() string {
	switch p {
	case phaseWaitForStart:
		return "WaitForStart"
	case phaseWaitForCommand:
		return "WaitForCommand"
	case phaseSync:
		return "Sync"
	case phaseMemAddress:
		return "MemAddress"
	case phaseMemOffset:
		return "MemOffset"
	case phaseMemSize:
		return "MemSize"
	case phaseMemHeaderCRC:
		return "MemHeaderCRC"
	case phaseMemRxPayload:
		return "MemRxPayload"
	case phaseMemTxPayload:
		return "MemTxPayload"
	case phaseSendCRC:
		return "SendCRC"
	case phaseWaitForCRC:
		return "WaitForCRC"
	default:
		return "Unknown"
	}
}

// consequence is the deferred side effect latched while a frame is
// still being validated, and only applied once its terminal CRC
// matches.
type consequence uint8

const (
	consequenceNone consequence = iota
	consequenceGainSync
	consequenceWriteScratchpad
)

// Transceiver is the per-node frame automaton. Zero value is not
// usable; construct with New.
type Transceiver struct {
	phase phase
	crc   *crc8.Rolling

	currentCommand Command
	inSync         bool
	sequenceNo     uint8
	activityFlag   bool

	pos int

	memAddress  [PhysicalAddressSize]byte
	memOffset   uint16
	memSize     uint16
	targeted    bool
	consequence consequence

	scratchpad []byte

	physicalAddress [PhysicalAddressSize]byte
	logicalAddress  [LogicalAddressSize]byte

	callbacks Callbacks
}

// New constructs a Transceiver. scratchpad is the frame-local working
// buffer; a memory command whose declared size exceeds its capacity is
// rejected as a protocol violation rather than causing an out-of-bounds
// access. physicalAddress is fixed for the node's lifetime; the logical
// address starts zeroed and is expected to be set by the application
// once it has read its own configuration (see SetLogicalAddress).
func New(scratchpad []byte, physicalAddress [PhysicalAddressSize]byte, callbacks Callbacks) *Transceiver {
	return &Transceiver{
		phase:           phaseWaitForStart,
		crc:             crc8.NewRolling(),
		scratchpad:      scratchpad,
		physicalAddress: physicalAddress,
		callbacks:       callbacks,
	}
}

// InSync reports whether the automaton currently honors non-SYNC
// commands. While false, only a well-formed SYNC frame is accepted.
func (t *Transceiver) InSync() bool { return t.inSync }

// SequenceNumber returns the sequence number of the last successfully
// completed frame.
func (t *Transceiver) SequenceNumber() uint8 { return t.sequenceNo }

// PhaseName reports the current phase, for diagnostics only; no
// caller should branch on it.
func (t *Transceiver) PhaseName() string { return t.phase.String() }

// GetActivityFlag reports whether a frame has completed successfully
// since the flag was last cleared.
func (t *Transceiver) GetActivityFlag() bool { return t.activityFlag }

// ClearActivityFlag clears the activity flag and returns its value
// immediately prior to clearing.
func (t *Transceiver) ClearActivityFlag() bool {
	prev := t.activityFlag
	t.activityFlag = false
	return prev
}

// PhysicalAddress returns the node's fixed 6-byte address.
func (t *Transceiver) PhysicalAddress() [PhysicalAddressSize]byte { return t.physicalAddress }

// LogicalAddress returns the node's current 2-byte logical address.
func (t *Transceiver) LogicalAddress() [LogicalAddressSize]byte { return t.logicalAddress }

// SetLogicalAddress updates the node's logical address. This is
// deliberately out of band from the frame automaton: the logical
// address is node configuration, and a write to whatever
// memory offset a node chooses to expose it at is handled like any
// other WriteMemory callback. The application wires the two together,
// typically by calling SetLogicalAddress from inside its own
// WriteMemory callback when it observes a write land on that offset.
func (t *Transceiver) SetLogicalAddress(addr [LogicalAddressSize]byte) {
	t.logicalAddress = addr
}

func (t *Transceiver) toWaitForStart() {
	t.phase = phaseWaitForStart
	t.pos = 0
}

func (t *Transceiver) dropSync() {
	t.inSync = false
	t.toWaitForStart()
}

// Handle advances the automaton by one step. Exactly one of two things
// happens on any wire tick: a byte arrives (rx non-nil) or the caller
// polls for output with rx nil. The return value, when non-nil, is the
// byte to place on the wire next. Some phases consume a byte and
// produce one in the very same call (the first response byte of a
// targeted read immediately follows its header CRC).
func (t *Transceiver) Handle(rx *byte) *byte {
	switch t.phase {
	case phaseWaitForStart:
		return t.handleWaitForStart(rx)
	case phaseWaitForCommand:
		return t.handleWaitForCommand(rx)
	case phaseSync:
		return t.handleSync(rx)
	case phaseMemAddress:
		return t.handleMemAddress(rx)
	case phaseMemOffset:
		return t.handleMemOffset(rx)
	case phaseMemSize:
		return t.handleMemSize(rx)
	case phaseMemHeaderCRC:
		return t.handleMemHeaderCRC(rx)
	case phaseMemRxPayload:
		return t.handleMemRxPayload(rx)
	case phaseMemTxPayload:
		return t.handleMemTxPayload(rx)
	case phaseSendCRC:
		return t.handleSendCRC(rx)
	case phaseWaitForCRC:
		return t.handleWaitForCRC(rx)
	default:
		return nil
	}
}

func (t *Transceiver) handleWaitForStart(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	if *rx != StartByte {
		return nil
	}
	t.crc.Reset()
	t.crc.UpdateSingle(*rx)
	t.phase = phaseWaitForCommand
	t.pos = 0
	return nil
}

func (t *Transceiver) handleWaitForCommand(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	t.crc.UpdateSingle(*rx)
	cmd := NewCommand(*rx)

	if !t.inSync {
		if cmd.IsMemory() || cmd.ManagementSubCommand() != ManagementSync {
			t.toWaitForStart()
			return nil
		}
		t.currentCommand = cmd
		t.phase = phaseSync
		t.pos = 0
		return nil
	}

	if cmd.SequenceNumber() != (t.sequenceNo+1)&0b11 {
		t.dropSync()
		return nil
	}
	t.currentCommand = cmd

	if cmd.IsMemory() {
		if cmd.AddressMode() == AddressReserved {
			t.dropSync()
			return nil
		}
		t.pos = 0
		if cmd.AddressMode() == AddressBroadcast {
			t.targeted = true
			t.phase = phaseMemOffset
		} else {
			t.phase = phaseMemAddress
		}
		return nil
	}

	switch cmd.ManagementSubCommand() {
	case ManagementNOP:
		t.consequence = consequenceNone
		t.phase = phaseWaitForCRC
	case ManagementSync:
		t.phase = phaseSync
		t.pos = 0
	default:
		t.dropSync()
	}
	return nil
}

func (t *Transceiver) handleSync(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	t.crc.UpdateSingle(*rx)

	if t.pos < len(SyncMagic) {
		if *rx != SyncMagic[t.pos] {
			t.dropSync()
			return nil
		}
		t.pos++
		return nil
	}

	if *rx != ProtocolVersion {
		t.dropSync()
		return nil
	}
	t.consequence = consequenceGainSync
	t.phase = phaseWaitForCRC
	return nil
}

func (t *Transceiver) handleMemAddress(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	t.crc.UpdateSingle(*rx)
	t.memAddress[t.pos] = *rx
	t.pos++

	if t.pos < t.currentCommand.AddressLen() {
		return nil
	}

	switch t.currentCommand.AddressMode() {
	case AddressLogical:
		t.targeted = t.memAddress[0] == t.logicalAddress[0] && t.memAddress[1] == t.logicalAddress[1]
	case AddressPhysical:
		t.targeted = t.memAddress == t.physicalAddress
	}
	t.pos = 0
	t.phase = phaseMemOffset
	return nil
}

func (t *Transceiver) handleMemOffset(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	t.crc.UpdateSingle(*rx)

	if t.currentCommand.OffsetLen() == 1 {
		t.memOffset = uint16(*rx)
		t.pos = 0
		t.phase = phaseMemSize
		return nil
	}

	if t.pos == 0 {
		t.memOffset = uint16(*rx) << 8
		t.pos++
		return nil
	}
	t.memOffset |= uint16(*rx)
	t.pos = 0
	t.phase = phaseMemSize
	return nil
}

func (t *Transceiver) handleMemSize(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	t.crc.UpdateSingle(*rx)

	if t.currentCommand.SizeLen() == 1 {
		t.memSize = uint16(*rx)
	} else {
		if t.pos == 0 {
			t.memSize = uint16(*rx) << 8
			t.pos++
			return nil
		}
		t.memSize |= uint16(*rx)
	}

	if int(t.memSize) > len(t.scratchpad) {
		t.dropSync()
		return nil
	}

	t.pos = 0
	if t.currentCommand.IsWrite() {
		if t.memSize == 0 {
			t.consequence = consequenceNone
			t.phase = phaseWaitForCRC
		} else {
			t.phase = phaseMemRxPayload
		}
	} else {
		t.phase = phaseMemHeaderCRC
	}
	return nil
}

func (t *Transceiver) handleMemRxPayload(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	t.crc.UpdateSingle(*rx)
	t.scratchpad[t.pos] = *rx
	t.pos++

	if t.pos < int(t.memSize) {
		return nil
	}

	if t.currentCommand.IsWrite() && t.targeted {
		t.consequence = consequenceWriteScratchpad
	} else {
		t.consequence = consequenceNone
	}
	t.phase = phaseWaitForCRC
	return nil
}

// handleMemHeaderCRC validates the header CRC that fences a read
// command's addressing/offset/size fields from its response. For a
// targeted node this is also where the request is considered
// accepted: the callback runs, and sequencing/activity settle here,
// one phase earlier than the generic WaitForCRC terminal point used by
// every other frame shape. Everything downstream (MemTxPayload,
// SendCRC) only transmits and validates nothing further about the
// request; the one fault they detect is a byte arriving from the wire
// while this node is sending, which drops sync. A
// non-targeted node has no response of its own to produce and falls
// through to the ordinary WaitForCRC path, consuming whatever the
// targeted node sends back.
func (t *Transceiver) handleMemHeaderCRC(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	if *rx != t.crc.Finalize() {
		t.dropSync()
		return nil
	}
	t.crc.UpdateSingle(*rx)

	if !t.targeted {
		t.pos = 0
		if t.memSize == 0 {
			t.phase = phaseWaitForCRC
		} else {
			t.phase = phaseMemRxPayload
		}
		return nil
	}

	if t.callbacks.ReadMemory != nil {
		if err := t.callbacks.ReadMemory(t.memOffset, t.scratchpad[:t.memSize]); err != nil {
			t.dropSync()
			return nil
		}
	}
	t.sequenceNo = t.currentCommand.SequenceNumber()
	t.activityFlag = true

	if t.memSize == 0 {
		b := t.crc.Finalize()
		t.crc.UpdateSingle(b)
		t.toWaitForStart()
		return &b
	}

	b := t.scratchpad[0]
	t.crc.UpdateSingle(b)
	if t.memSize == 1 {
		t.phase = phaseSendCRC
	} else {
		t.pos = 1
		t.phase = phaseMemTxPayload
	}
	return &b
}

func (t *Transceiver) handleMemTxPayload(rx *byte) *byte {
	if rx != nil {
		t.dropSync()
		return nil
	}
	b := t.scratchpad[t.pos]
	t.crc.UpdateSingle(b)
	t.pos++
	if t.pos == int(t.memSize) {
		t.phase = phaseSendCRC
	}
	return &b
}

func (t *Transceiver) handleSendCRC(rx *byte) *byte {
	if rx != nil {
		t.dropSync()
		return nil
	}
	b := t.crc.Finalize()
	t.crc.UpdateSingle(b)
	t.toWaitForStart()
	return &b
}

func (t *Transceiver) handleWaitForCRC(rx *byte) *byte {
	if rx == nil {
		return nil
	}
	if *rx != t.crc.Finalize() {
		t.dropSync()
		return nil
	}
	t.crc.UpdateSingle(*rx)

	t.sequenceNo = t.currentCommand.SequenceNumber()
	t.activityFlag = true

	switch t.consequence {
	case consequenceGainSync:
		t.inSync = true
	case consequenceWriteScratchpad:
		if t.callbacks.WriteMemory != nil {
			if err := t.callbacks.WriteMemory(t.memOffset, t.scratchpad[:t.memSize]); err != nil {
				t.inSync = false
			}
		}
	}
	t.consequence = consequenceNone
	t.toWaitForStart()
	return nil
}
