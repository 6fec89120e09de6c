//go:build linux

package mech

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// signalLineNames are the six printer signals, in SampleRecord.Phase /
// RawSample.Signals bit order (LSB first): clk, dat, dst, lat, mtr1,
// mtr2.
var signalLineNames = [6]string{"clk", "dat", "dst", "lat", "mtr1", "mtr2"}

// GPIOSource is a SignalSource + CounterSynthesiser backed by a Linux
// GPIO character device (/dev/gpiochipN), for lab rigs that wire the six
// printer signals and the eight counter lines to GPIO headers instead of
// a vendor USB logic analyser. It reproduces the Digilent Digital
// Discovery's "feed a synthesised counter back into spare inputs" trick
// on commodity GPIO hardware.
type GPIOSource struct {
	chip string

	// signalOffsets[i] is the chip offset for signalLineNames[i].
	signalOffsets [6]int
	// counterInOffsets[i] is the chip offset for counter input bit i
	// (LSB first).
	counterInOffsets [8]int
	// counterOutOffsets[i] is the chip offset driving counter bit i.
	counterOutOffsets [8]int

	mu       sync.Mutex
	inLines  []*gpiocdev.Line
	outLines []*gpiocdev.Line

	events chan RawSample
	status DeviceStatus

	stopCounter context.CancelFunc
	counterWG   sync.WaitGroup
}

// NewGPIOSource builds a GPIOSource for the given chip, with signal and
// counter line offsets as discovered/configured for the rig. Offsets
// follow spec's layout: counterIn/Out[0] is the LSB, [7] the MSB.
func NewGPIOSource(chip string, signalOffsets [6]int, counterInOffsets, counterOutOffsets [8]int) *GPIOSource {
	return &GPIOSource{
		chip:              chip,
		signalOffsets:     signalOffsets,
		counterInOffsets:  counterInOffsets,
		counterOutOffsets: counterOutOffsets,
		events:            make(chan RawSample, 4096),
	}
}

// Open acquires the six signal input lines and the eight counter input
// lines, without yet arming edge detection.
func (g *GPIOSource) Open() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, off := range g.signalOffsets {
		line, err := gpiocdev.RequestLine(g.chip, off, gpiocdev.AsInput)
		if err != nil {
			g.closeLinesLocked()
			return fmt.Errorf("%w: requesting signal line %d on %s: %v", ErrDeviceNotFound, off, g.chip, err)
		}
		g.inLines = append(g.inLines, line)
	}
	for _, off := range g.counterInOffsets {
		line, err := gpiocdev.RequestLine(g.chip, off, gpiocdev.AsInput)
		if err != nil {
			g.closeLinesLocked()
			return fmt.Errorf("%w: requesting counter line %d on %s: %v", ErrDeviceNotFound, off, g.chip, err)
		}
		g.inLines = append(g.inLines, line)
	}
	return nil
}

// ArmAndTrigger requests edge detection (both edges) on the six signal
// lines and the counter MSB, the trigger set spec.md calls for, and
// begins pushing assembled 16-bit words onto the internal queue as edges
// arrive.
func (g *GPIOSource) ArmAndTrigger(ctx context.Context) error {
	g.mu.Lock()
	g.status = StatusArmed
	g.mu.Unlock()

	handler := func(evt gpiocdev.LineEvent) {
		word, err := g.sampleWord()
		if err != nil {
			return
		}
		select {
		case g.events <- word:
		default:
			// Ring buffer overrun: drop the oldest sample rather than
			// block the GPIO event callback.
			select {
			case <-g.events:
			default:
			}
			g.events <- word
		}
	}

	for i, off := range g.signalOffsets {
		if err := g.reRequestWithEdges(i, off, handler); err != nil {
			return fmt.Errorf("%w: arming signal line %d: %v", ErrDeviceError, off, err)
		}
	}
	msbIdx := len(g.signalOffsets) + 7
	if err := g.reRequestWithEdges(msbIdx, g.counterInOffsets[7], handler); err != nil {
		return fmt.Errorf("%w: arming counter MSB: %v", ErrDeviceError, err)
	}

	g.mu.Lock()
	g.status = StatusTriggered
	g.mu.Unlock()

	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (g *GPIOSource) reRequestWithEdges(lineIndex, offset int, handler gpiocdev.EventHandler) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if lineIndex < len(g.inLines) && g.inLines[lineIndex] != nil {
		_ = g.inLines[lineIndex].Close()
	}
	line, err := gpiocdev.RequestLine(g.chip, offset,
		gpiocdev.AsInput,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(handler),
	)
	if err != nil {
		return err
	}
	g.inLines[lineIndex] = line
	return nil
}

// sampleWord reads the current level of all fourteen relevant lines and
// assembles them into a RawSample, matching the wire layout in spec.md
// section 6.
func (g *GPIOSource) sampleWord() (RawSample, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	var word RawSample
	for i := 0; i < 6; i++ {
		v, err := g.inLines[i].Value()
		if err != nil {
			return 0, err
		}
		if v != 0 {
			word |= 1 << uint(i)
		}
	}
	for i := 0; i < 8; i++ {
		v, err := g.inLines[6+i].Value()
		if err != nil {
			return 0, err
		}
		if v != 0 {
			word |= 1 << uint(8+i)
		}
	}
	return word, nil
}

// ReadAvailable drains whatever samples have queued since the last call,
// never blocking.
func (g *GPIOSource) ReadAvailable() ([]RawSample, error) {
	var out []RawSample
	for {
		select {
		case s := <-g.events:
			out = append(out, s)
		default:
			return out, nil
		}
	}
}

// Status reports the device's current lifecycle state.
func (g *GPIOSource) Status() DeviceStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Reset drops any queued samples and marks the source idle. It does not
// release or reconfigure any line: lines armed for edge detection stay
// armed, and their events keep queuing, until the next ArmAndTrigger
// re-requests them or Close releases them.
func (g *GPIOSource) Reset() error {
	g.mu.Lock()
	g.status = StatusIdle
	g.mu.Unlock()

	for {
		select {
		case <-g.events:
		default:
			return nil
		}
	}
}

// Close releases every requested line.
func (g *GPIOSource) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closeLinesLocked()
	return nil
}

func (g *GPIOSource) closeLinesLocked() {
	for _, l := range g.inLines {
		if l != nil {
			_ = l.Close()
		}
	}
	g.inLines = nil
}

// Start drives the eight counterOutOffsets as a binary ripple counter:
// channel i toggles at freqHz/2^i. It must be called before
// ArmAndTrigger.
func (g *GPIOSource) Start(ctx context.Context, channels []OutputChannel, freqHz uint) error {
	if len(channels) != 8 {
		return fmt.Errorf("%w: counter synthesis needs exactly 8 channels, got %d", ErrDeviceError, len(channels))
	}

	cctx, cancel := context.WithCancel(ctx)
	g.stopCounter = cancel

	for i, ch := range channels {
		off := g.counterOutOffsets[ch]
		line, err := gpiocdev.RequestLine(g.chip, off, gpiocdev.AsOutput(0))
		if err != nil {
			cancel()
			return fmt.Errorf("%w: requesting counter output %d: %v", ErrDeviceError, off, err)
		}
		g.mu.Lock()
		g.outLines = append(g.outLines, line)
		g.mu.Unlock()

		period := time.Second / time.Duration(freqHz>>uint(i))
		g.counterWG.Add(1)
		go toggleLine(cctx, &g.counterWG, line, period)
	}
	return nil
}

func toggleLine(ctx context.Context, wg *sync.WaitGroup, line *gpiocdev.Line, period time.Duration) {
	defer wg.Done()
	t := time.NewTicker(period)
	defer t.Stop()
	level := 0
	for {
		select {
		case <-ctx.Done():
			_ = line.SetValue(0)
			return
		case <-t.C:
			level ^= 1
			_ = line.SetValue(level)
		}
	}
}

// Stop halts the counter goroutines and leaves all output lines at idle
// (low).
func (g *GPIOSource) Stop() error {
	if g.stopCounter != nil {
		g.stopCounter()
	}
	g.counterWG.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range g.outLines {
		if l != nil {
			_ = l.Close()
		}
	}
	g.outLines = nil
	return nil
}
