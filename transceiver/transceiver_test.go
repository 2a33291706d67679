package transceiver

import (
	"testing"

	"sondbus/crc8"
)

func frameCRC(bytes ...byte) byte {
	r := crc8.NewRolling()
	r.Update(bytes)
	return r.Finalize()
}

func feed(t *testing.T, tr *Transceiver, data []byte) []*byte {
	t.Helper()
	var out []*byte
	for i := range data {
		b := data[i]
		out = append(out, tr.Handle(&b))
	}
	return out
}

func newTestTransceiver(cb Callbacks) *Transceiver {
	return New(make([]byte, 16), [PhysicalAddressSize]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, cb)
}

// Scenario: NOP accepted while already in sync.
func TestNOPWhileInSync(t *testing.T) {
	tr := newTestTransceiver(Callbacks{})
	tr.inSync = true
	tr.sequenceNo = 0

	frame := []byte{StartByte, 0x40}
	frame = append(frame, frameCRC(frame...))

	for _, out := range feed(t, tr, frame) {
		if out != nil {
			t.Fatalf("NOP frame should never produce output, got %#x", *out)
		}
	}

	if !tr.InSync() {
		t.Error("expected to remain in sync")
	}
	if tr.SequenceNumber() != 1 {
		t.Errorf("sequence_no = %d, want 1", tr.SequenceNumber())
	}
	if !tr.ClearActivityFlag() {
		t.Error("expected activity flag set after a completed frame")
	}
}

// Scenario: gaining sync from a cold start.
func TestSyncGainFromColdStart(t *testing.T) {
	tr := newTestTransceiver(Callbacks{})

	frame := []byte{StartByte, 0x01}
	frame = append(frame, SyncMagic[:]...)
	frame = append(frame, ProtocolVersion)
	frame = append(frame, frameCRC(frame...))

	for _, out := range feed(t, tr, frame) {
		if out != nil {
			t.Fatalf("sync frame should never produce output, got %#x", *out)
		}
	}

	if !tr.InSync() {
		t.Fatal("expected to gain sync")
	}
	if tr.SequenceNumber() != 0 {
		t.Errorf("sequence_no = %d, want 0", tr.SequenceNumber())
	}
}

// Scenario: broadcast write, 1-byte offset/size, in sync. The command
// byte here is 0x61, not 0x60: bit 0 of the command byte is the
// read/write flag (0 = read, 1 = write), and a frame carrying a payload
// byte ahead of a single trailing CRC can only be a write. 0x60 would
// decode as a broadcast read, which does not match that frame shape.
func TestBroadcastWrite(t *testing.T) {
	var gotOffset uint16
	var gotSrc []byte
	tr := newTestTransceiver(Callbacks{
		WriteMemory: func(offset uint16, src []byte) error {
			gotOffset = offset
			gotSrc = append([]byte(nil), src...)
			return nil
		},
	})
	tr.inSync = true
	tr.sequenceNo = 0

	frame := []byte{StartByte, 0x61, 0x00, 0x01, 0xAA}
	frame = append(frame, frameCRC(frame...))

	for _, out := range feed(t, tr, frame) {
		if out != nil {
			t.Fatalf("write frame should never produce output, got %#x", *out)
		}
	}

	if gotOffset != 0 {
		t.Errorf("offset = %d, want 0", gotOffset)
	}
	if len(gotSrc) != 1 || gotSrc[0] != 0xAA {
		t.Errorf("src = %v, want [0xAA]", gotSrc)
	}
	if tr.SequenceNumber() != 1 {
		t.Errorf("sequence_no = %d, want 1", tr.SequenceNumber())
	}
	if !tr.InSync() {
		t.Error("expected to remain in sync")
	}
}

// Scenario: logically addressed read, this node is the target.
func TestLogicalReadTargeted(t *testing.T) {
	tr := newTestTransceiver(Callbacks{
		ReadMemory: func(offset uint16, dest []byte) error {
			copy(dest, []byte{0x11, 0x22})
			return nil
		},
	})
	tr.inSync = true
	tr.sequenceNo = 0
	tr.SetLogicalAddress([LogicalAddressSize]byte{0x05, 0x06})

	header := []byte{StartByte, 0x64, 0x05, 0x06, 0x00, 0x02}
	hdrCRC := frameCRC(header...)

	outs := feed(t, tr, append(append([]byte{}, header...), hdrCRC))
	for i, out := range outs[:len(outs)-1] {
		if out != nil {
			t.Fatalf("byte %d of header should not produce output, got %#x", i, *out)
		}
	}
	last := outs[len(outs)-1]
	if last == nil || *last != 0x11 {
		t.Fatalf("header CRC byte should immediately yield first response byte 0x11, got %v", last)
	}

	b2 := tr.Handle(nil)
	if b2 == nil || *b2 != 0x22 {
		t.Fatalf("expected second response byte 0x22, got %v", b2)
	}

	finalCRC := tr.Handle(nil)
	want := frameCRC(append(append(append([]byte{}, header...), hdrCRC), 0x11, 0x22)...)
	if finalCRC == nil || *finalCRC != want {
		t.Fatalf("final CRC = %v, want %#x", finalCRC, want)
	}

	if tr.SequenceNumber() != 1 {
		t.Errorf("sequence_no = %d, want 1", tr.SequenceNumber())
	}
	if !tr.InSync() {
		t.Error("expected to remain in sync")
	}
	if tr.PhaseName() != "WaitForStart" {
		t.Errorf("expected to return to WaitForStart, got %s", tr.PhaseName())
	}
}

// Scenario: the same frame as above observed by a non-targeted node --
// it must track the frame to stay in lockstep but never produce output
// of its own.
func TestLogicalReadNonTargeted(t *testing.T) {
	readCalled := false
	tr := newTestTransceiver(Callbacks{
		ReadMemory: func(offset uint16, dest []byte) error {
			readCalled = true
			return nil
		},
	})
	tr.inSync = true
	tr.sequenceNo = 0
	tr.SetLogicalAddress([LogicalAddressSize]byte{0x07, 0x08})

	header := []byte{StartByte, 0x64, 0x05, 0x06, 0x00, 0x02}
	hdrCRC := frameCRC(header...)
	respData := []byte{0x11, 0x22}
	finalCRC := frameCRC(append(append(append([]byte{}, header...), hdrCRC), respData...)...)

	full := append(append(append([]byte{}, header...), hdrCRC), respData...)
	full = append(full, finalCRC)

	for i, out := range feed(t, tr, full) {
		if out != nil {
			t.Fatalf("byte %d: non-targeted node should never produce output, got %#x", i, *out)
		}
	}

	if readCalled {
		t.Error("ReadMemory should not be invoked on a non-targeted node")
	}
	if !tr.InSync() {
		t.Error("expected to remain in sync")
	}
	if tr.PhaseName() != "WaitForStart" {
		t.Errorf("expected to return to WaitForStart, got %s", tr.PhaseName())
	}
}

// Scenario: a sequence-number violation drops sync immediately on the
// command byte, before any CRC is even seen.
func TestSequenceViolationDropsSync(t *testing.T) {
	tr := newTestTransceiver(Callbacks{})
	tr.inSync = true
	tr.sequenceNo = 0

	feed(t, tr, []byte{StartByte, 0x80})

	if tr.InSync() {
		t.Error("expected sync to be dropped on sequence mismatch")
	}
	if tr.PhaseName() != "WaitForStart" {
		t.Errorf("expected to return to WaitForStart, got %s", tr.PhaseName())
	}
}

func TestReservedAddressModeDropsSync(t *testing.T) {
	tr := newTestTransceiver(Callbacks{})
	tr.inSync = true
	tr.sequenceNo = 0

	// seq=1, memory, reserved addressing (bits 2..1 = 11), read.
	cmd := byte(0x40) | 0x20 | 0x06
	feed(t, tr, []byte{StartByte, cmd})

	if tr.InSync() {
		t.Error("expected sync to be dropped on reserved addressing mode")
	}
}

func TestOversizeMemoryRequestDropsSync(t *testing.T) {
	tr := newTestTransceiver(Callbacks{})
	tr.inSync = true
	tr.sequenceNo = 0

	// seq=1, memory, broadcast write, 2-byte size field, size = 17 (> 16
	// byte scratchpad).
	cmd := byte(0x40) | 0x20 | 0x10 | 0x01
	feed(t, tr, []byte{StartByte, cmd, 0x00, 0x00, 0x11})

	if tr.InSync() {
		t.Error("expected sync to be dropped when declared size exceeds the scratchpad")
	}
}

func TestWriteCallbackErrorDropsSync(t *testing.T) {
	tr := newTestTransceiver(Callbacks{
		WriteMemory: func(offset uint16, src []byte) error {
			return ErrCallback
		},
	})
	tr.inSync = true
	tr.sequenceNo = 0

	frame := []byte{StartByte, 0x61, 0x00, 0x01, 0xAA}
	frame = append(frame, frameCRC(frame...))
	feed(t, tr, frame)

	if tr.InSync() {
		t.Error("expected sync to drop when WriteMemory returns an error")
	}
}

func TestGarbageBeforeStartByteIsIgnored(t *testing.T) {
	tr := newTestTransceiver(Callbacks{})
	tr.inSync = true
	tr.sequenceNo = 0

	garbage := []byte{0x00, 0xFF, 0x12, 0x34}
	for _, out := range feed(t, tr, garbage) {
		if out != nil {
			t.Fatal("garbage bytes should never produce output")
		}
	}
	if tr.PhaseName() != "WaitForStart" {
		t.Errorf("expected to remain in WaitForStart, got %s", tr.PhaseName())
	}

	frame := []byte{StartByte, 0x40}
	frame = append(frame, frameCRC(frame...))
	feed(t, tr, frame)

	if !tr.InSync() {
		t.Error("a valid frame should still be recognized after leading garbage")
	}
}
