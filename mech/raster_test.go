package mech

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPrintout(w, h int, fill uint8) Printout {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = fill
	}
	return Printout{img}
}

func TestPrintout_WidthAndRows(t *testing.T) {
	p := newPrintout(DotsPerLine, 7, 255)
	assert.Equal(t, DotsPerLine, p.Width())
	assert.Equal(t, 7, p.Rows())
}

func TestPrintout_ExtendTo(t *testing.T) {
	p := newPrintout(DotsPerLine, 3, 0)
	extended, err := p.ExtendTo(5)
	require.NoError(t, err)
	assert.Equal(t, 5, extended.Rows())

	for y := 0; y < 3; y++ {
		assert.Equal(t, uint8(0), extended.GrayAt(0, y).Y, "original rows preserved")
	}
	for y := 3; y < 5; y++ {
		assert.Equal(t, uint8(255), extended.GrayAt(0, y).Y, "padded rows are white")
	}
}

func TestPrintout_ExtendToSameHeight(t *testing.T) {
	p := newPrintout(DotsPerLine, 4, 128)
	same, err := p.ExtendTo(4)
	require.NoError(t, err)
	assert.Equal(t, 4, same.Rows())
}

func TestPrintout_ExtendToShorterIsError(t *testing.T) {
	p := newPrintout(DotsPerLine, 4, 128)
	_, err := p.ExtendTo(2)
	assert.Error(t, err)
}

// Rasterise of a freshly constructed emulator, before any samples beyond
// the initial one, is an all-white two-row image - the empty-capture
// boundary.
func TestRasterise_FreshEmulatorIsBlank(t *testing.T) {
	e := NewEmulator(SampleRecord{Timestamp: 0})
	p := Rasterise(e, DefaultBurnGainK)
	assert.Equal(t, 2, p.Rows())
	for _, px := range p.Pix {
		assert.Equal(t, uint8(255), px)
	}
}
