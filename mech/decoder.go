package mech

import "fmt"

// Decoder reconstructs a monotonically increasing global timestamp from
// an 8-bit wrapping counter piggy-backed on every raw sample, and filters
// out batches that carry no observable state change. It holds the only
// state the acquisition pipeline needs between successive batches pulled
// off the device.
type Decoder struct {
	freq uint

	globalCounter      int64
	lastCounterValue   *uint8
	lastEmittedSignals *uint8
}

// NewDecoder returns a Decoder ticking at the given synthesised counter
// frequency.
func NewDecoder(counterFrequencyHz uint) *Decoder {
	return &Decoder{freq: counterFrequencyHz}
}

// GlobalTime returns the reconstructed global timestamp of the most
// recently processed batch, regardless of whether that batch was
// redundant (dropped). Used by the orchestrator to measure "idle time"
// in the acquisition's own time domain rather than wall-clock, since the
// two only coincide while samples keep arriving.
func (d *Decoder) GlobalTime() float64 {
	if d.lastCounterValue == nil {
		return 0
	}
	return (float64(d.globalCounter) + float64(*d.lastCounterValue)) / float64(d.freq)
}

// UnpackWords splits a raw byte buffer from the device into 16-bit little-
// endian sample words. It returns ErrDecodeError if the buffer holds a
// truncated (odd) number of bytes.
func UnpackWords(raw []byte) ([]RawSample, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: odd byte count %d", ErrDecodeError, len(raw))
	}
	words := make([]RawSample, len(raw)/2)
	for i := range words {
		words[i] = RawSample(raw[2*i]) | RawSample(raw[2*i+1])<<8
	}
	return words, nil
}

// Decode converts one batch of raw 16-bit words, as pulled from the
// device in a single drain, into timestamped SampleRecords. It returns
// nil if the whole batch carries no observable state change (see
// spec's redundancy filter). Decode is a total function: it never
// errors, since any 16-bit word is a legal (if nonsensical) sample.
func (d *Decoder) Decode(batch []RawSample) []SampleRecord {
	n := len(batch)
	if n == 0 {
		return nil
	}

	signals := make([]uint8, n)
	counters := make([]uint8, n)
	for i, w := range batch {
		signals[i] = w.Signals()
		counters[i] = w.Counter()
	}

	base := d.reconstructGlobalCounter(counters)

	if d.batchIsRedundant(signals) {
		last := signals[n-1]
		d.lastEmittedSignals = &last
		return nil
	}

	records := make([]SampleRecord, n)
	for i := 0; i < n; i++ {
		ts := (float64(base[i]) + float64(counters[i])) / float64(d.freq)
		records[i] = unpackSignals(signals[i], ts)
	}

	last := signals[n-1]
	d.lastEmittedSignals = &last
	return records
}

// reconstructGlobalCounter returns, for each entry in counters, the
// multiple-of-256 base to add to the raw counter value to obtain a
// monotonic global tick count. It also advances the decoder's own
// cross-batch state (globalCounter, lastCounterValue).
func (d *Decoder) reconstructGlobalCounter(counters []uint8) []int64 {
	gc := d.globalCounter

	// The counter wrapped in between this batch and the last one.
	if d.lastCounterValue != nil && counters[0] < *d.lastCounterValue {
		gc += 256
	}

	base := make([]int64, len(counters))
	for i := range counters {
		if i > 0 && counters[i] < counters[i-1] {
			gc += 256
		}
		base[i] = gc
	}

	d.globalCounter = gc
	last := counters[len(counters)-1]
	d.lastCounterValue = &last

	return base
}

// batchIsRedundant reports whether every adjacent pair of signal values
// within the batch is identical, AND the first value equals the last
// emitted signal state - i.e. nothing observable happened across the
// whole batch, including at its boundary with the previously emitted
// record.
func (d *Decoder) batchIsRedundant(signals []uint8) bool {
	for i := 1; i < len(signals); i++ {
		if signals[i] != signals[i-1] {
			return false
		}
	}
	return d.lastEmittedSignals != nil && signals[0] == *d.lastEmittedSignals
}

func unpackSignals(sig uint8, timestamp float64) SampleRecord {
	return SampleRecord{
		Timestamp: timestamp,
		Clock:     sig&0x01 != 0,
		Data:      sig&0x02 != 0,
		DST:       sig&0x04 != 0,
		Latch:     sig&0x08 != 0,
		Motor1:    sig&0x10 != 0,
		Motor2:    sig&0x20 != 0,
	}
}
