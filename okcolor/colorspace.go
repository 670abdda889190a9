// based on:
// https://bottosson.github.io/posts/oklab/

package okcolor

import (
	"image/color"
	"math"
)

type Lab struct {
	L     float64 // perceived lightness
	A     float64 // how green/red the color is
	B     float64 // how blue/yellow the color is
	Alpha uint16  // alpha
}

var LabModel = color.ModelFunc(labConvert)

func labConvert(c color.Color) color.Color {
	switch lc := c.(type) {
	case Lab:
		return c
	case LCh:
		return lc.Lab()
	}

	col := linearRGBAConvert(c).(LinearRGBA)

	l := math.Cbrt(0.4122214708*col.R + 0.5363325363*col.G + 0.0514459929*col.B)
	m := math.Cbrt(0.2119034982*col.R + 0.6806995451*col.G + 0.1073969566*col.B)
	s := math.Cbrt(0.0883024619*col.R + 0.2817188376*col.G + 0.6299787005*col.B)

	return Lab{
		L:     0.2104542553*l + 0.7936177850*m - 0.0040720468*s,
		A:     1.9779984951*l - 2.4285922050*m + 0.4505937099*s,
		B:     0.0259040371*l + 0.7827717662*m - 0.8086757660*s,
		Alpha: col.A,
	}
}

func (lc Lab) RGBA() (uint32, uint32, uint32, uint32) {
	return lc.LinearRGBA(GamutClipPreserveChroma).RGBA()
}

// LinearRGBA converts to linear sRGB. Out of gamut colors are passed through
// clipFunc first, or returned as is when it is nil.
func (lc Lab) LinearRGBA(clipFunc Clipper) LinearRGBA {
	l := lc.L + 0.3963377774*lc.A + 0.2158037573*lc.B
	m := lc.L - 0.1055613458*lc.A - 0.0638541728*lc.B
	s := lc.L - 0.0894841775*lc.A - 1.2914855480*lc.B

	l, m, s = l*l*l, m*m*m, s*s*s

	r := +4.0767416621*l - 3.3077115913*m + 0.2309699292*s
	g := -1.2684380046*l + 2.6097574011*m - 0.3413193965*s
	b := -0.0041960863*l - 0.7034186147*m + 1.7076147010*s

	if (clipFunc != nil) && ((r < 0) || (r > 1) || (g < 0) || (g > 1) || (b < 0) || (b > 1)) {
		return clipFunc(lc).LinearRGBA(nil)
	}

	return LinearRGBA{
		R: r,
		G: g,
		B: b,
		A: lc.Alpha,
	}
}

func (lc Lab) LCh() LCh {
	return LCh{
		L:     lc.L,
		C:     math.Hypot(lc.A, lc.B),
		H:     math.Atan2(lc.B, lc.A),
		Alpha: lc.Alpha,
	}
}

type LCh struct {
	L     float64 // perceived lightness
	C     float64 // chroma
	H     float64 // hue, radians
	Alpha uint16  // alpha
}

func (lc LCh) RGBA() (uint32, uint32, uint32, uint32) {
	return lc.Lab().RGBA()
}

func (lc LCh) LinearRGBA(clipFunc Clipper) LinearRGBA {
	return lc.Lab().LinearRGBA(clipFunc)
}

func (lc LCh) Lab() Lab {
	return Lab{
		L:     lc.L,
		A:     lc.C * math.Cos(lc.H),
		B:     lc.C * math.Sin(lc.H),
		Alpha: lc.Alpha,
	}
}
