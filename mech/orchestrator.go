package mech

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"runtime"
	"time"
)

// CaptureTask is one stimulus to apply during a CaptureTasks run: Execute
// should drive the printer under test (over whatever transport the
// caller owns - out of scope here, see spec.md section 1) and Timeout
// bounds how long the resulting capture is allowed to take before the
// task is considered failed. A zero Timeout uses the orchestrator's
// Config.DefaultCaptureTimeout.
type CaptureTask struct {
	Execute func(ctx context.Context) error
	Timeout time.Duration
}

// Orchestrator binds a SignalSource, a CounterSynthesiser, the Decoder
// and the Emulator behind the small sequential API the test library
// consumes. It owns the device handle exclusively and is single-
// threaded and cooperative: there is no core-owned background goroutine.
type Orchestrator struct {
	source SignalSource
	synth  CounterSynthesiser
	cfg    Config
	log    Logger

	counterChannels []OutputChannel

	decoder  *Decoder
	emulator *Emulator
	raw      []SampleRecord

	started         bool
	haveValidSample bool
	lastSampleTime  float64
}

// NewOrchestrator wires a SignalSource and CounterSynthesiser together
// under the given configuration. logger may be nil, in which case
// logging is discarded. A finalizer is registered as a backstop against
// a caller that never calls Close, mirroring the reference
// implementation's weakref-based device cleanup (see spec.md section 9);
// callers should still call Close explicitly on every exit path.
func NewOrchestrator(source SignalSource, synth CounterSynthesiser, cfg Config, logger Logger) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	o := &Orchestrator{
		source:          source,
		synth:           synth,
		cfg:             cfg,
		log:             logger,
		counterChannels: defaultCounterChannels(),
		decoder:         NewDecoder(cfg.CounterFrequency),
	}
	runtime.AddCleanup(o, releaseDevice, source)
	return o
}

func releaseDevice(s SignalSource) { _ = s.Close() }

func defaultCounterChannels() []OutputChannel {
	return []OutputChannel{0, 1, 2, 3, 4, 5, 6, 7}
}

// StartCapture is an idempotent arm of the acquisition and counter
// synthesiser: calling it again while already armed is a no-op.
func (o *Orchestrator) StartCapture(ctx context.Context) error {
	if o.started {
		return nil
	}

	if err := o.source.Open(); err != nil {
		return fmt.Errorf("%w: opening signal source: %v", ErrDeviceNotFound, err)
	}
	if err := o.synth.Start(ctx, o.counterChannels, o.cfg.CounterFrequency); err != nil {
		_ = o.source.Close()
		return fmt.Errorf("%w: starting counter synthesiser: %v", ErrDeviceError, err)
	}
	if err := o.source.ArmAndTrigger(ctx); err != nil {
		_ = o.synth.Stop()
		_ = o.source.Reset()
		_ = o.source.Close()
		return fmt.Errorf("%w: arming signal source: %v", ErrDeviceError, err)
	}

	o.started = true
	o.log.Infof("capture armed at %d Hz", o.cfg.CounterFrequency)
	return nil
}

// StopCapture is a best-effort disarm: it stops the counter synthesiser
// and resets the signal source, but does not close the device.
func (o *Orchestrator) StopCapture() error {
	if !o.started {
		return nil
	}
	_ = o.synth.Stop()
	err := o.source.Reset()
	o.started = false
	if err != nil {
		return fmt.Errorf("%w: resetting signal source: %v", ErrDeviceError, err)
	}
	return nil
}

// ProcessAvailableData drains whatever the device currently has, feeds it
// through the decoder into the emulator, and returns promptly. It never
// blocks beyond the single status+read cycle the underlying SignalSource
// performs, and tolerates an empty drain.
func (o *Orchestrator) ProcessAvailableData() error {
	raw, err := o.source.ReadAvailable()
	if err != nil {
		return fmt.Errorf("%w: reading available data: %v", ErrDeviceError, err)
	}
	if len(raw) == 0 {
		return nil
	}
	o.consume(o.decoder.Decode(raw))
	return nil
}

func (o *Orchestrator) consume(records []SampleRecord) {
	for _, r := range records {
		if o.emulator == nil {
			o.emulator = NewEmulator(r)
		} else {
			o.emulator.Update(r)
		}
		o.raw = append(o.raw, r)
		o.haveValidSample = true
		o.lastSampleTime = r.Timestamp
		o.log.Debugf("sample t=%.6f clk=%v dat=%v dst=%v lat=%v mtr=%d", r.Timestamp, r.Clock, r.Data, r.DST, r.Latch, r.Phase())
	}
}

// AwaitCaptureCompletion blocks cooperatively, polling the device and
// draining it, until the decoder reports idle for Config.IdleThreshold
// (measured in reconstructed global time, not wall clock) or timeout
// (wall clock) elapses, whichever comes first. On timeout it tears down
// the acquisition and returns ErrCaptureTimeout.
func (o *Orchestrator) AwaitCaptureCompletion(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if time.Now().After(deadline) {
			o.teardown()
			return ErrCaptureTimeout
		}

		raw, err := o.source.ReadAvailable()
		if err != nil {
			o.teardown()
			return fmt.Errorf("%w: reading available data: %v", ErrDeviceError, err)
		}
		if len(raw) > 0 {
			o.consume(o.decoder.Decode(raw))
		}

		if o.haveValidSample {
			idleFor := o.decoder.GlobalTime() - o.lastSampleTime
			if idleFor >= o.cfg.IdleThreshold.Seconds() {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			o.teardown()
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (o *Orchestrator) teardown() {
	_ = o.synth.Stop()
	_ = o.source.Reset()
	o.started = false
}

// CaptureTasks runs each task's stimulus in turn, capturing its
// cumulative effect on the paper buffer: StartCapture, then Execute,
// then AwaitCaptureCompletion with the task's own timeout. It fails fast
// on the first task that times out, naming its index; earlier tasks'
// contributions to the emulator are retained.
func (o *Orchestrator) CaptureTasks(ctx context.Context, tasks []CaptureTask) error {
	for i, task := range tasks {
		if err := o.StartCapture(ctx); err != nil {
			return fmt.Errorf("mech: capture task %d: %w", i, err)
		}
		if err := task.Execute(ctx); err != nil {
			return fmt.Errorf("mech: capture task %d stimulus failed: %w", i, err)
		}

		timeout := task.Timeout
		if timeout <= 0 {
			timeout = o.cfg.DefaultCaptureTimeout
		}
		if err := o.AwaitCaptureCompletion(ctx, timeout); err != nil {
			if errors.Is(err, ErrCaptureTimeout) {
				return newTaskTimeout(i)
			}
			return err
		}
	}
	return nil
}

// GetPrintout returns the current rasterised image. ok is false if no
// samples have been consumed yet - distinguishable from a successful,
// all-white capture.
func (o *Orchestrator) GetPrintout() (Printout, bool) {
	if o.emulator == nil {
		return Printout{}, false
	}
	return Rasterise(o.emulator, o.cfg.BurnGainK), true
}

// ExportPrintout writes the rasterised image to path as PNG.
func (o *Orchestrator) ExportPrintout(path string) error {
	printout, ok := o.GetPrintout()
	if !ok {
		return fmt.Errorf("mech: no printout to export")
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("mech: creating %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, printout.Gray); err != nil {
		return fmt.Errorf("mech: encoding printout png: %w", err)
	}
	return nil
}

// ExportRawData writes the captured sample records as CSV to path.
func (o *Orchestrator) ExportRawData(path string) error {
	if len(o.raw) == 0 {
		return fmt.Errorf("mech: no raw data to export")
	}
	return ExportRawDataToFile(path, o.raw)
}

// Clear discards decoder state, emulator state and buffered samples, but
// keeps the device handle open for a subsequent StartCapture.
func (o *Orchestrator) Clear() {
	o.decoder = NewDecoder(o.cfg.CounterFrequency)
	o.emulator = nil
	o.raw = nil
	o.haveValidSample = false
	o.lastSampleTime = 0
	_ = o.source.Reset()
}

// Close releases the device handle. Safe to call more than once; callers
// should still call it explicitly rather than rely on the finalizer
// backstop, since finalizer timing is not deterministic.
func (o *Orchestrator) Close() error {
	o.teardown()
	return o.source.Close()
}
