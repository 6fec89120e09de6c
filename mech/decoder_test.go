package mech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestUnpackWords(t *testing.T) {
	words, err := UnpackWords([]byte{0x01, 0x00, 0xff, 0x0f})
	require.NoError(t, err)
	assert.Equal(t, []RawSample{0x0001, 0x0fff}, words)

	_, err = UnpackWords([]byte{0x01})
	assert.ErrorIs(t, err, ErrDecodeError)
}

func TestRawSample_SignalsAndCounter(t *testing.T) {
	w := RawSample(0x2A) | RawSample(0xC3)<<8
	assert.Equal(t, uint8(0x2A), w.Signals())
	assert.Equal(t, uint8(0xC3), w.Counter())
}

func word(signals, counter uint8) RawSample {
	return RawSample(signals) | RawSample(counter)<<8
}

// A batch whose signals never change, and whose leading value matches the
// last emitted signal state, carries no information and is dropped.
func TestDecoder_RedundantBatchDropped(t *testing.T) {
	d := NewDecoder(1000)

	first := d.Decode([]RawSample{word(0x00, 0), word(0x01, 1)})
	require.Len(t, first, 2)

	redundant := d.Decode([]RawSample{word(0x01, 2), word(0x01, 3), word(0x01, 4)})
	assert.Nil(t, redundant, "unchanging batch matching last emitted signal state must be dropped")
}

// A batch whose signals are unchanging but whose leading value differs
// from the last emitted signal is NOT redundant: it carries the
// transition into the new state at its first sample.
func TestDecoder_LeadingChangeNotRedundant(t *testing.T) {
	d := NewDecoder(1000)
	first := d.Decode([]RawSample{word(0x00, 0)})
	require.Len(t, first, 1)

	changed := d.Decode([]RawSample{word(0x01, 1), word(0x01, 2)})
	require.Len(t, changed, 2, "a batch whose first sample differs from the last emitted one is never redundant")
}

// P1: reconstructed timestamps are non-decreasing within and across
// batches, including across an 8-bit counter wrap.
func TestDecoder_CounterWrapIsMonotonic(t *testing.T) {
	d := NewDecoder(1000)

	first := d.Decode([]RawSample{word(0x00, 250), word(0x01, 252), word(0x00, 254)})
	require.Len(t, first, 3)

	wrapped := d.Decode([]RawSample{word(0x01, 3), word(0x00, 5)})
	require.Len(t, wrapped, 2)

	all := append(append([]SampleRecord{}, first...), wrapped...)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqualf(t, all[i].Timestamp, all[i-1].Timestamp, "timestamp regressed at index %d", i)
	}

	// The wrapped counter value of 3 must land at global tick 256+3=259,
	// not be mistaken for tick 3.
	assert.InDelta(t, 259.0/1000, wrapped[0].Timestamp, 1e-9)
}

// GlobalTime advances even for batches dropped as redundant, since the
// orchestrator's idle detection must not be fooled by a quiet period.
func TestDecoder_GlobalTimeAdvancesOnRedundantBatches(t *testing.T) {
	d := NewDecoder(1000)
	d.Decode([]RawSample{word(0x00, 0)})
	before := d.GlobalTime()

	d.Decode([]RawSample{word(0x00, 50)})
	after := d.GlobalTime()

	assert.Greater(t, after, before)
}

func TestDecoder_EmptyBatch(t *testing.T) {
	d := NewDecoder(1000)
	assert.Nil(t, d.Decode(nil))
	assert.Equal(t, 0.0, d.GlobalTime())
}

// Property: for any sequence of batches whose 8-bit counter advances by at
// most 5 ticks per sample (so it may wrap past 255 inside a batch or
// between batches), the decoder's globally reconstructed timestamps
// across the whole run are non-decreasing.
func TestDecoder_MonotonicProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDecoder(1000)
		var all []SampleRecord

		numBatches := rapid.IntRange(1, 10).Draw(t, "numBatches")
		counter := uint8(0)
		for b := 0; b < numBatches; b++ {
			n := rapid.IntRange(1, 8).Draw(t, "n")
			batch := make([]RawSample, n)
			for i := 0; i < n; i++ {
				step := rapid.IntRange(0, 5).Draw(t, "step")
				counter += uint8(step)
				sig := rapid.Byte().Draw(t, "sig") & 0x3f
				batch[i] = word(sig, counter)
			}
			all = append(all, d.Decode(batch)...)
		}

		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqualf(t, all[i].Timestamp, all[i-1].Timestamp, "timestamp regressed at index %d", i)
		}
	})
}

func TestTaskTimeoutError(t *testing.T) {
	err := newTaskTimeout(3)
	assert.ErrorIs(t, err, ErrCaptureTimeout)
	var tte *TaskTimeoutError
	require.True(t, errors.As(err, &tte))
	assert.Equal(t, 3, tte.Index)
}
