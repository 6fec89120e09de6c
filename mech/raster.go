package mech

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// DefaultBurnGainK is the calibration constant used when none is
// supplied: chosen so a typical DST-on window produces a fully black
// dot. It is a tunable calibration, not a law - see Config.BurnGainK.
const DefaultBurnGainK = 25000

// Printout is the rasterised paper: an 8-bit grayscale image, 384 dots
// wide, 0=black 255=white, one row per dot line.
type Printout struct {
	*image.Gray
}

// Width is always DotsPerLine.
func (p Printout) Width() int { return p.Bounds().Dx() }

// Rows is the number of dot lines captured.
func (p Printout) Rows() int { return p.Bounds().Dy() }

// ExtendTo pads the printout with white rows at the bottom until it has
// the given height. It errors if the printout is already taller than
// rows, mirroring the reference implementation's extend_length_to.
func (p Printout) ExtendTo(rows int) (Printout, error) {
	if p.Rows() > rows {
		return Printout{}, fmt.Errorf("mech: cannot extend printout of %d rows to %d rows, already taller", p.Rows(), rows)
	}
	if p.Rows() == rows {
		return p, nil
	}

	out := image.NewGray(image.Rect(0, 0, p.Width(), rows))
	for i := range out.Pix {
		out.Pix[i] = 255
	}
	draw := Printout{out}
	for y := 0; y < p.Rows(); y++ {
		for x := 0; x < p.Width(); x++ {
			draw.SetGray(x, y, p.GrayAt(x, y))
		}
	}
	return draw, nil
}

// Rasterise drains any residual burn accumulated on the emulator's active
// row into that row, then converts the whole paper buffer to a grayscale
// Printout: pixel = max(0, 255 - ceil(burnTime*k)).
//
// Rasterise is idempotent: calling it twice in succession without an
// intervening Update yields byte-identical images, since draining
// residual burn always resets the accumulator to zero.
func Rasterise(e *Emulator, k float64) Printout {
	e.drainResidualBurn()

	rows := e.Rows()
	img := image.NewGray(image.Rect(0, 0, DotsPerLine, rows))
	for y, row := range e.paper {
		for x := 0; x < DotsPerLine; x++ {
			img.SetGray(x, y, color.Gray{Y: burnToPixel(row[x], k)})
		}
	}
	return Printout{img}
}

func burnToPixel(burnTime, k float64) uint8 {
	v := math.Ceil(burnTime * k)
	p := 255 - v
	switch {
	case p < 0:
		return 0
	case p > 255:
		return 255
	default:
		return uint8(p)
	}
}
