package mech

import "context"

// SignalSource is the acquisition device: a digital logic analyser
// providing edge-triggered samples of the six printer signals plus the
// synthesised counter. Out of scope per spec.md is any particular
// vendor's transport (USB/serial/IrDA); SignalSource is the boundary
// abstraction every such transport must satisfy. See gpiosource.go for
// the one concrete hardware backend this module ships.
type SignalSource interface {
	// Open acquires the device handle. Returns ErrDeviceNotFound if no
	// compatible device is available.
	Open() error

	// ArmAndTrigger configures edge-triggered sampling on the six signal
	// lines plus the counter MSB, and blocks briefly for the device to
	// reach the triggered state.
	ArmAndTrigger(ctx context.Context) error

	// ReadAvailable drains whatever the device currently holds, never
	// blocking beyond a single status+read cycle. Returns an empty slice,
	// not an error, when nothing new is available.
	ReadAvailable() ([]RawSample, error)

	// Status reports the device's current lifecycle state.
	Status() DeviceStatus

	// Reset returns the acquisition (digital-in) side to an idle, reusable
	// state. The counter outputs are idled by CounterSynthesiser.Stop,
	// which the orchestrator calls alongside every Reset on teardown.
	Reset() error

	// Close releases the device handle. Safe to call more than once.
	Close() error
}

// CounterSynthesiser drives eight digital outputs with a binary ripple
// counter at a known frequency, fed back into the signal source's eight
// counter input bits so every sample carries a compact timestamp.
type CounterSynthesiser interface {
	// Start configures the given output channels (LSB to MSB) toggling at
	// freqHz, freqHz/2, ..., freqHz/128. Must be called before the signal
	// source is armed.
	Start(ctx context.Context, channels []OutputChannel, freqHz uint) error

	// Stop leaves all lines at defined idle levels.
	Stop() error
}
