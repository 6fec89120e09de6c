package mech

// Row is one dot line's worth of accumulated burn-time, in seconds, one
// accumulator per head dot.
type Row = [DotsPerLine]float64

// Emulator is a cycle-accurate, event-driven digital twin of the printer
// mechanism: an SPI shift register, a latched dot-row register,
// accumulated burn time, stepper phase/sub-row position, and the growing
// paper buffer. Update is a total function: any combination of signal
// bits is legal input.
type Emulator struct {
	shift [DotsPerLine]bool
	latch [DotsPerLine]bool

	paper []Row

	burnAccum  float64
	motorSteps int

	lastTimestamp float64
	lastClock     bool
	lastLatch     bool
	lastDST       bool
	lastPhase     uint8
}

// NewEmulator creates an emulator from the first observed sample record.
// The first record only supplies an initial signal snapshot; it has no
// burn effect, since burn accumulates over the interval between two
// records.
func NewEmulator(first SampleRecord) *Emulator {
	return &Emulator{
		paper:         []Row{{}, {}},
		lastTimestamp: first.Timestamp,
		lastClock:     first.Clock,
		lastLatch:     first.Latch,
		lastDST:       first.DST,
		lastPhase:     first.Phase(),
	}
}

// Update consumes one SampleRecord, mutating shift/latch registers, burn
// accumulation and the paper buffer. Records must be supplied in
// non-decreasing timestamp order (I1); Update does not itself enforce
// this, since the decoder already guarantees it for any single capture.
//
// The five checks below run in exactly this order, because burn
// accumulates during the *previous* DST-high interval and must be
// drained into the latch's owning row before a new dot pattern
// overwrites the latch register, and because latch is edge-triggered on
// the falling edge and never depends on the bit being clocked in on the
// same edge.
func (e *Emulator) Update(s SampleRecord) {
	// 1. DST was high during the interval that just ended.
	if e.lastDST {
		e.burnAccum += s.Timestamp - e.lastTimestamp
	}

	// 2. Latch fall: drain burn into the active row, then snapshot shift
	// into latch.
	if e.lastLatch && !s.Latch {
		e.burnLatch(false)
		e.latch = e.shift
	}

	// 3. Clock rising edge: shift the data bit in at index 383.
	if s.Clock && !e.lastClock {
		copy(e.shift[:DotsPerLine-1], e.shift[1:])
		e.shift[DotsPerLine-1] = s.Data
	}

	// 4. Stepper phase change: 2 physical steps per observed change.
	phase := s.Phase()
	if phase != e.lastPhase {
		e.motorSteps += 2
		switch {
		case e.motorSteps == 2:
			// Head is physically between rows: burn both.
			e.burnLatch(true)
		case e.motorSteps >= 4:
			e.burnLatch(false)
			e.advanceRow()
			e.motorSteps = 0
		}
	}

	// 5. Commit.
	e.lastTimestamp = s.Timestamp
	e.lastClock = s.Clock
	e.lastLatch = s.Latch
	e.lastDST = s.DST
	e.lastPhase = phase
}

// burnLatch adds latch_register * burn_accum to the active row (and, if
// betweenRows, to the pending row too), then resets burn_accum to zero.
func (e *Emulator) burnLatch(betweenRows bool) {
	active := len(e.paper) - 2
	for i := 0; i < DotsPerLine; i++ {
		if !e.latch[i] {
			continue
		}
		e.paper[active][i] += e.burnAccum
		if betweenRows {
			e.paper[active+1][i] += e.burnAccum
		}
	}
	e.burnAccum = 0
}

// advanceRow appends a fresh zero row below the current pending row.
func (e *Emulator) advanceRow() {
	e.paper = append(e.paper, Row{})
}

// drainResidualBurn burns any accumulated-but-not-yet-committed time into
// the active row, without advancing the paper or resetting motor steps.
// Used by Rasterise so querying the printout never loses in-flight burn.
func (e *Emulator) drainResidualBurn() {
	e.burnLatch(false)
}

// Rows returns the number of rows currently in the paper buffer,
// including the active and pending rows.
func (e *Emulator) Rows() int { return len(e.paper) }

// BurnAccum returns the currently accumulated, not-yet-committed burn
// time. Exposed for tests checking that the accumulator never goes
// negative (I2).
func (e *Emulator) BurnAccum() float64 { return e.burnAccum }
