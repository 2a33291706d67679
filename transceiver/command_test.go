package transceiver

import "testing"

func TestCommandSequenceNumber(t *testing.T) {
	cases := []struct {
		raw  byte
		want uint8
	}{
		{0x00, 0}, {0x40, 1}, {0x80, 2}, {0xC0, 3},
	}
	for _, c := range cases {
		if got := NewCommand(c.raw).SequenceNumber(); got != c.want {
			t.Errorf("SequenceNumber(%#x) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestCommandMemoryVsManagement(t *testing.T) {
	if NewCommand(0x00).IsMemory() {
		t.Error("0x00 should decode as a management command")
	}
	if !NewCommand(0x20).IsMemory() {
		t.Error("0x20 should decode as a memory command")
	}
}

func TestCommandManagementSubCommand(t *testing.T) {
	if got := NewCommand(0x00).ManagementSubCommand(); got != ManagementNOP {
		t.Errorf("got %d, want NOP", got)
	}
	if got := NewCommand(0x01).ManagementSubCommand(); got != ManagementSync {
		t.Errorf("got %d, want Sync", got)
	}
}

func TestCommandAddressModeAndLen(t *testing.T) {
	cases := []struct {
		mode    AddressMode
		wantLen int
	}{
		{AddressBroadcast, 0},
		{AddressPhysical, PhysicalAddressSize},
		{AddressLogical, LogicalAddressSize},
		{AddressReserved, -1},
	}
	for _, c := range cases {
		raw := byte(0x20) | byte(c.mode)<<1
		cmd := NewCommand(raw)
		if cmd.AddressMode() != c.mode {
			t.Errorf("raw %#x: AddressMode() = %v, want %v", raw, cmd.AddressMode(), c.mode)
		}
		if cmd.AddressLen() != c.wantLen {
			t.Errorf("raw %#x: AddressLen() = %d, want %d", raw, cmd.AddressLen(), c.wantLen)
		}
	}
}

func TestCommandFieldWidths(t *testing.T) {
	short := NewCommand(0x20)
	if short.OffsetLen() != 1 || short.SizeLen() != 1 {
		t.Error("bits clear should select 1-byte offset and size fields")
	}
	long := NewCommand(0x20 | 1<<4 | 1<<3)
	if long.OffsetLen() != 2 || long.SizeLen() != 2 {
		t.Error("bits set should select 2-byte offset and size fields")
	}
}

func TestCommandReadWrite(t *testing.T) {
	if NewCommand(0x20).IsWrite() {
		t.Error("bit 0 clear should decode as a read")
	}
	if !NewCommand(0x21).IsWrite() {
		t.Error("bit 0 set should decode as a write")
	}
}
