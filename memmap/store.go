// Package memmap implements a flat, bounds-checked byte store suitable
// for backing a transceiver.Callbacks pair: a node's entire addressable
// memory as one contiguous byte slice, with reads and writes rejected
// outright (rather than truncated or panicking) when they reach past
// the end of it.
//
// The bounds-checking discipline -- never hand out a slice into live
// storage, always copy in and out -- follows the same defensive
// copy-out reasoning a dictionary chunk accessor would use (check
// bounds, copy), scaled down from a dictionary-specific accessor
// to a general register file.
package memmap

import "fmt"

// Store is a flat byte-addressed memory region. The zero value is not
// usable; construct with New.
type Store struct {
	data []byte
}

// New returns a Store of the given size, zero-initialized.
func New(size int) *Store {
	return &Store{data: make([]byte, size)}
}

// Size returns the number of addressable bytes.
func (s *Store) Size() int { return len(s.data) }

// ReadMemory copies len(dest) bytes starting at offset into dest. It
// has the exact signature transceiver.Callbacks.ReadMemory expects.
func (s *Store) ReadMemory(offset uint16, dest []byte) error {
	end := int(offset) + len(dest)
	if end > len(s.data) {
		return fmt.Errorf("memmap: read [%d:%d) out of range for %d-byte store", offset, end, len(s.data))
	}
	copy(dest, s.data[offset:end])
	return nil
}

// WriteMemory copies src into the store starting at offset. It has the
// exact signature transceiver.Callbacks.WriteMemory expects.
func (s *Store) WriteMemory(offset uint16, src []byte) error {
	end := int(offset) + len(src)
	if end > len(s.data) {
		return fmt.Errorf("memmap: write [%d:%d) out of range for %d-byte store", offset, end, len(s.data))
	}
	copy(s.data[offset:end], src)
	return nil
}

// Snapshot returns a copy of the entire store, safe for the caller to
// retain or mutate without affecting live state.
func (s *Store) Snapshot() []byte {
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}
