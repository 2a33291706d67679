package crc8

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeIsIdempotentAndNonMutating(t *testing.T) {
	r := NewRolling()
	r.Update([]byte{0x55, 0x40})

	first := r.Finalize()
	second := r.Finalize()
	require.Equal(t, first, second, "finalize must not mutate the accumulator")

	// Folding another byte in after finalizing must still see the prior
	// bytes reflected in the new checksum (the accumulator keeps evolving).
	r.UpdateSingle(0xAA)
	third := r.Finalize()
	assert.NotEqual(t, first, third)
}

func TestResetReturnsToInitState(t *testing.T) {
	a := NewRolling()
	a.Update([]byte{0x01, 0x02, 0x03})

	b := NewRolling()
	b.Update([]byte{0x01, 0x02, 0x03})
	b.Reset()
	b.Update([]byte{0x01, 0x02, 0x03})

	assert.Equal(t, a.Finalize(), b.Finalize())
}

func TestUpdateSingleMatchesUpdate(t *testing.T) {
	data := []byte{0x55, 0x64, 0x05, 0x06, 0x00, 0x02}

	bulk := NewRolling()
	bulk.Update(data)

	single := NewRolling()
	for _, b := range data {
		single.UpdateSingle(b)
	}

	assert.Equal(t, bulk.Finalize(), single.Finalize())
}

func TestEmptyAccumulatorFinalizesToXorOutOfInit(t *testing.T) {
	r := NewRolling()
	// init=0xFF, xor-out=0xFF -> 0xFF^0xFF = 0x00 with nothing folded in.
	assert.Equal(t, byte(0x00), r.Finalize())
}

func TestDifferentInputsDiffer(t *testing.T) {
	a := NewRolling()
	a.Update([]byte{0x01, 0x02, 0x03})

	b := NewRolling()
	b.Update([]byte{0x01, 0x02, 0x04})

	assert.NotEqual(t, a.Finalize(), b.Finalize())
}
