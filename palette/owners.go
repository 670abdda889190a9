package palette

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"

	"dragonizer/okcolor"
)

// MaxOwners is the largest number of owners a palette can color. Owner ids
// are stored as int8 with -1 reserved for unset cells.
const MaxOwners = math.MaxInt8

var ErrOwners = errors.New("invalid number of owners")

// DefaultBackground is used for pixels no owner has drawn.
var DefaultBackground = color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}

// Palette maps an owner id to the color its cells are drawn with.
type Palette struct {
	Colors     []color.RGBA
	Background color.RGBA
}

// New returns a palette of owners colors with evenly spaced OKLCh hues, so
// that neighbouring owner ids are easy to tell apart at equal lightness.
func New(owners int) (*Palette, error) {
	if owners < 1 || owners > MaxOwners {
		return nil, fmt.Errorf("%w: %d", ErrOwners, owners)
	}

	p := &Palette{
		Colors:     make([]color.RGBA, owners),
		Background: DefaultBackground,
	}
	for i := range owners {
		lc := okcolor.LCh{
			L:     0.62,
			C:     0.17,
			H:     2 * math.Pi * float64(i) / float64(owners),
			Alpha: 0xFFFF,
		}
		p.Colors[i] = color.RGBAModel.Convert(lc.LinearRGBA(okcolor.GamutClipPreserveChroma)).(color.RGBA)
	}

	return p, nil
}

// FromColors builds a palette of owners colors from an arbitrary color list,
// repeating it when it is shorter than owners.
func FromColors(pal color.Palette, owners int) (*Palette, error) {
	if owners < 1 || owners > MaxOwners {
		return nil, fmt.Errorf("%w: %d", ErrOwners, owners)
	}
	if len(pal) == 0 {
		return nil, fmt.Errorf("empty color list")
	}

	p := &Palette{
		Colors:     make([]color.RGBA, owners),
		Background: DefaultBackground,
	}
	for i := range owners {
		p.Colors[i] = color.RGBAModel.Convert(pal[i%len(pal)]).(color.RGBA)
	}

	return p, nil
}

// Load reads the first palette of a RIFF PAL file.
func Load(path string) (color.Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open palette %q: %w", path, err)
	}
	defer f.Close()

	pals, err := ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("could not read palette %q: %w", path, err)
	}
	if len(pals) == 0 || len(pals[0]) == 0 {
		return nil, fmt.Errorf("no colors in palette %q", path)
	}

	return pals[0], nil
}

// Save writes the owner colors as a RIFF PAL file.
func (p *Palette) Save(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create palette %q: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("could not close palette %q: %w", path, closeErr)
		}
	}()

	if _, err = WriteTo(f, []color.Palette{p.ColorPalette()[1:]}); err != nil {
		return fmt.Errorf("could not write palette %q: %w", path, err)
	}
	return nil
}

func (p *Palette) Len() int {
	return len(p.Colors)
}

// Color returns the color for owner, or the background for the unset
// sentinel and unknown ids.
func (p *Palette) Color(owner int8) color.RGBA {
	if owner < 0 || int(owner) >= len(p.Colors) {
		return p.Background
	}
	return p.Colors[owner]
}

// ColorPalette returns the background followed by the owner colors, so that
// owner i is at index i+1.
func (p *Palette) ColorPalette() color.Palette {
	pal := make(color.Palette, 0, len(p.Colors)+1)
	pal = append(pal, p.Background)
	for _, c := range p.Colors {
		pal = append(pal, c)
	}
	return pal
}
