package serial

import (
	"io"
)

// Port represents a half-duplex serial port interface. This abstraction
// allows for different backends (native UART, a mock for testing)
// without the rest of the repository caring which one is in use.
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate. Sondbus runs line-rate up to ~1Mbit/s; 1_000_000 is the
	// default used by this repository's own conformance tooling.
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a default configuration for talking to a sondbus node.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        1000000,
		ReadTimeout: 100,
	}
}
