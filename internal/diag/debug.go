// Package diag provides the non-blocking debug-output and post-mortem
// facilities the host tooling uses around a transceiver. Sync loss is
// silent by design (the application discovers it by polling InSync(),
// not through a callback), so the only way to explain *why* a node
// dropped sync after the fact is to have been recording candidate
// causes all along; FaultEvent and the fault ring exist for that
// purpose.
package diag

// DebugWriter is a function type for writing debug messages.
type DebugWriter func(string)

// FaultEvent captures one reason a node's sync could plausibly have
// been dropped, for post-mortem analysis. Exactly which FaultEvent (if
// any) actually caused a given sync loss isn't recoverable after the
// fact from the transceiver alone; recording these alongside whatever
// else was happening at the time is the best a host can do.
type FaultEvent struct {
	Reason     uint8  // Fault reason code
	SequenceNo uint8  // Transceiver sequence_no at the time
	Offset     uint32 // Memory offset involved, if any
	Tick       uint32 // Caller-supplied monotonic counter
}

// Fault reason codes, one per abnormal condition that can drop sync.
const (
	FaultCRCMismatch           = 1
	FaultSequenceMismatch      = 2
	FaultReservedAddressMode   = 3
	FaultOversizeRequest       = 4
	FaultCallbackError         = 5
	FaultUnknownManagementCmd  = 6
	FaultProtocolVersionBad    = 7
	FaultSyncMagicMismatch     = 8
	FaultUnexpectedByteOnWrite = 9
)

const (
	// FaultRingSize keeps the last 32 fault events for post-mortem.
	FaultRingSize = 32
)

var (
	// debugPrintln is the global debug print function (can be set by
	// the embedding application).
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether debug output is active. Disabled
	// by default so a quiet bus doesn't pay for formatting.
	debugEnabled bool = false

	faultRing     [FaultRingSize]FaultEvent
	faultRingHead uint8

	// Async debug output channel.
	debugChan chan string
)

// SetDebugWriter sets the output function debug messages are sent to.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output.
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled.
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine. Call this
// once during startup after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message synchronously. Use DebugAsync on
// a path that cannot block.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output. Returns
// immediately even if the channel is full, dropping the message rather
// than blocking the caller.
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordFault captures a fault event in the ring buffer. Non-blocking,
// safe to call from a tight polling loop.
func RecordFault(reason uint8, sequenceNo uint8, offset uint32, tick uint32) {
	idx := faultRingHead
	faultRing[idx] = FaultEvent{
		Reason:     reason,
		SequenceNo: sequenceNo,
		Offset:     offset,
		Tick:       tick,
	}
	faultRingHead = (idx + 1) % FaultRingSize
}

func faultName(reason uint8) string {
	switch reason {
	case FaultCRCMismatch:
		return "CRC_MISMATCH"
	case FaultSequenceMismatch:
		return "SEQUENCE_MISMATCH"
	case FaultReservedAddressMode:
		return "RESERVED_ADDRESS_MODE"
	case FaultOversizeRequest:
		return "OVERSIZE_REQUEST"
	case FaultCallbackError:
		return "CALLBACK_ERROR"
	case FaultUnknownManagementCmd:
		return "UNKNOWN_MANAGEMENT_CMD"
	case FaultProtocolVersionBad:
		return "PROTOCOL_VERSION_BAD"
	case FaultSyncMagicMismatch:
		return "SYNC_MAGIC_MISMATCH"
	case FaultUnexpectedByteOnWrite:
		return "UNEXPECTED_BYTE_ON_WRITE"
	default:
		return "UNKNOWN"
	}
}

// DumpFaultRing writes out the fault ring buffer, oldest first. Call
// this after a sync loss is noticed, not from the polling loop itself.
func DumpFaultRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[FAULT] === Fault Ring Dump ===")
	start := faultRingHead
	for i := uint8(0); i < FaultRingSize; i++ {
		idx := (start + i) % FaultRingSize
		evt := &faultRing[idx]
		if evt.Reason == 0 {
			continue
		}
		debugPrintln("[FAULT] " + faultName(evt.Reason) +
			" seq=" + itoa(int(evt.SequenceNo)) +
			" offset=" + itoa(int(evt.Offset)) +
			" tick=" + itoa(int(evt.Tick)))
	}
	debugPrintln("[FAULT] === End Dump ===")
}

// ClearFaultRing clears the fault buffer.
func ClearFaultRing() {
	for i := range faultRing {
		faultRing[i] = FaultEvent{}
	}
	faultRingHead = 0
}
