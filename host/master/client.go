package master

import (
	"fmt"
	"sync"

	"sondbus/crc8"
	"sondbus/host/serial"
	"sondbus/internal/diag"
	"sondbus/wire"
)

// Client is a blocking bus master: every call writes one command frame
// and, if the command expects one, reads back its response before
// returning. Sondbus is strictly request/response, so there is nothing
// for a background reader goroutine to do that a synchronous
// write-then-read doesn't already cover.
type Client struct {
	mu    sync.Mutex
	port  serial.Port
	seq   uint8
	fifo  *wire.FifoBuffer
	rxTmp []byte
}

// NewClient wraps an already-open serial.Port. The bus is assumed
// unsynchronized until Syn succeeds.
func NewClient(port serial.Port) *Client {
	return &Client{
		port:  port,
		fifo:  wire.NewFifoBuffer(wire.FrameMax),
		rxTmp: make([]byte, 64),
	}
}

// Syn (re)establishes bus synchronization at sequence number 0.
func (c *Client) Syn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := Sync()
	if _, err := c.cycle(d, 0); err != nil {
		return err
	}
	c.seq = 0
	return nil
}

// Bwr issues a broadcast write: every node on the bus accepts it.
func (c *Client) Bwr(offset uint16, data []byte) error {
	return c.write(BroadcastWrite(offset, data))
}

// Pwr writes data to offset on the node with the given physical
// address.
func (c *Client) Pwr(addr [6]byte, offset uint16, data []byte) error {
	return c.write(PhysicalWrite(addr, offset, data))
}

// Lwr writes data to offset on the node with the given logical
// address.
func (c *Client) Lwr(addr [2]byte, offset uint16, data []byte) error {
	return c.write(LogicalWrite(addr, offset, data))
}

func (c *Client) write(d *Descriptor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	nextSeq := (c.seq + 1) & 0b11
	if _, err := c.cycle(d, nextSeq); err != nil {
		return err
	}
	c.seq = nextSeq
	return nil
}

// Prd reads size bytes from offset on the node with the given physical
// address.
func (c *Client) Prd(addr [6]byte, offset uint16, size uint16) ([]byte, error) {
	return c.read(PhysicalRead(addr, offset, size))
}

// Lrd reads size bytes from offset on the node with the given logical
// address.
func (c *Client) Lrd(addr [2]byte, offset uint16, size uint16) ([]byte, error) {
	return c.read(LogicalRead(addr, offset, size))
}

func (c *Client) read(d *Descriptor) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nextSeq := (c.seq + 1) & 0b11
	data, err := c.cycle(d, nextSeq)
	if err != nil {
		return nil, err
	}
	c.seq = nextSeq
	return data, nil
}

// cycle writes one descriptor's frame and, if it expects a response,
// reads and CRC-validates it. Returns the response payload (nil for
// writes and SYN).
func (c *Client) cycle(d *Descriptor, seq uint8) ([]byte, error) {
	frame := d.Build(seq)
	if _, err := c.port.Write(frame); err != nil {
		return nil, fmt.Errorf("master: write command: %w", err)
	}

	if !d.ExpectsResponse() {
		return nil, nil
	}

	respLen := d.ResponseLen()
	resp, err := c.readExact(respLen + 1)
	if err != nil {
		return nil, fmt.Errorf("master: read response: %w", err)
	}

	respBuf := wire.NewSliceInputBuffer(resp)
	payload := respBuf.Data()[:respLen]
	crcByte := respBuf.Data()[respLen]
	respBuf.Pop(respLen + 1)

	r := crc8.NewRolling()
	r.Update(frame)
	r.Update(payload)
	want := r.Finalize()
	if crcByte != want {
		diag.RecordFault(diag.FaultCRCMismatch, seq, 0, 0)
		return nil, fmt.Errorf("master: response CRC mismatch: got %#x, want %#x", crcByte, want)
	}

	return payload, nil
}

// readExact accumulates bytes from the port into c.fifo until n bytes
// are available, then drains exactly n. A single port.Read rarely
// returns a whole multi-byte response at line rate, so incoming bytes
// are staged through the same circular buffer the slave side would use
// to stage its own incoming frame bytes.
func (c *Client) readExact(n int) ([]byte, error) {
	if n >= c.fifo.Cap() {
		c.fifo = wire.NewFifoBuffer(n + 1)
	}
	for c.fifo.Available() < n {
		read, err := c.port.Read(c.rxTmp)
		if err != nil {
			return nil, err
		}
		if read == 0 {
			continue
		}
		c.fifo.Write(c.rxTmp[:read])
	}
	out := make([]byte, n)
	c.fifo.Read(out)
	return out, nil
}
