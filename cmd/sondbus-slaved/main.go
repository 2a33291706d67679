// sondbus-slaved drives a transceiver.Transceiver against a real serial
// port, polling for bytes the way a bare-metal node would poll its
// UART. The flag-driven startup, defer-close, and connect-then-loop
// shape follow the house style of this repo's other host-side
// tooling, but the loop body feeds a Transceiver one byte at a time
// instead of talking to an MCU dictionary protocol.
package main

import (
	"flag"
	"log"

	"sondbus/host/serial"
	"sondbus/internal/diag"
	"sondbus/memmap"
	"sondbus/transceiver"
)

var (
	device   = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud     = flag.Int("baud", 1000000, "Baud rate")
	memSize  = flag.Int("mem-size", 256, "Size of the simulated memory region, in bytes")
	physAddr = flag.String("physical-address", "aabbccddeeff", "12 hex digits identifying this node")
	verbose  = flag.Bool("verbose", false, "Log every frame-level fault")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	addr, err := parsePhysicalAddress(*physAddr)
	if err != nil {
		log.Fatalf("invalid -physical-address: %v", err)
	}

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *device, err)
	}
	defer port.Close()

	store := memmap.New(*memSize)
	tr := transceiver.New(make([]byte, 512), addr, transceiver.Callbacks{
		ReadMemory:  store.ReadMemory,
		WriteMemory: store.WriteMemory,
	})

	diag.SetDebugWriter(func(s string) { log.Print(s) })
	diag.SetDebugEnabled(*verbose)

	log.Printf("sondbus-slaved listening on %s at %d baud, physical address %x", *device, *baud, addr)

	wasInSync := false
	var tick uint32
	buf := make([]byte, 1)
	for {
		n, err := port.Read(buf)
		if err != nil {
			log.Fatalf("read error: %v", err)
		}
		if n == 0 {
			continue
		}
		tick++

		phaseBefore := tr.PhaseName()
		rx := buf[0]
		if out := tr.Handle(&rx); out != nil {
			if _, err := port.Write([]byte{*out}); err != nil {
				log.Printf("write error: %v", err)
			}
		}
		// A node can keep producing response bytes without new input
		// (e.g. the remaining bytes of a multi-byte read); drain those
		// before going back to reading the wire.
		for {
			out := tr.Handle(nil)
			if out == nil {
				break
			}
			if _, err := port.Write([]byte{*out}); err != nil {
				log.Printf("write error: %v", err)
			}
		}

		if wasInSync && !tr.InSync() {
			diag.RecordFault(faultReasonForPhase(phaseBefore), tr.SequenceNumber(), 0, tick)
			if *verbose {
				log.Printf("sync lost at tick %d (phase was %s)", tick, phaseBefore)
				diag.DumpFaultRing()
			}
		}
		wasInSync = tr.InSync()

		if tr.ClearActivityFlag() && *verbose {
			log.Printf("frame accepted, sequence_no=%d", tr.SequenceNumber())
		}
	}
}

// faultReasonForPhase maps the phase a byte was consumed in to the
// most likely spec §7 condition that dropped sync. The transceiver
// itself doesn't expose the precise cause, only the phase it was in
// immediately before resetting to WaitForStart, so this is a best
// effort for postmortem logging, not an authoritative diagnosis.
func faultReasonForPhase(phase string) uint8 {
	switch phase {
	case "Sync":
		return diag.FaultSyncMagicMismatch
	case "MemSize":
		return diag.FaultOversizeRequest
	case "MemHeaderCRC":
		return diag.FaultCRCMismatch
	case "MemTxPayload", "SendCRC":
		return diag.FaultUnexpectedByteOnWrite
	case "WaitForCommand":
		return diag.FaultSequenceMismatch
	case "WaitForCRC":
		return diag.FaultCallbackError
	default:
		return diag.FaultCRCMismatch
	}
}

func parsePhysicalAddress(s string) ([transceiver.PhysicalAddressSize]byte, error) {
	var addr [transceiver.PhysicalAddressSize]byte
	if len(s) != 2*transceiver.PhysicalAddressSize {
		return addr, errBadAddress(s)
	}
	for i := range addr {
		hi := hexNibble(s[2*i])
		lo := hexNibble(s[2*i+1])
		if hi < 0 || lo < 0 {
			return addr, errBadAddress(s)
		}
		addr[i] = byte(hi<<4 | lo)
	}
	return addr, nil
}

func hexNibble(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

type errBadAddress string

func (e errBadAddress) Error() string {
	return "expected 12 hex digits, got " + string(e)
}
