package palette

import (
	"bytes"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDistinctColors(t *testing.T) {
	for _, owners := range []int{1, 2, 8, MaxOwners} {
		p, err := New(owners)
		require.NoError(t, err)
		require.Equal(t, owners, p.Len())

		seen := make(map[color.RGBA]bool)
		for _, c := range p.Colors {
			assert.EqualValues(t, 0xFF, c.A)
			assert.NotEqual(t, p.Background, c)
			seen[c] = true
		}
		if owners <= 8 {
			assert.Len(t, seen, owners)
		}
	}
}

func TestNewInvalid(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, ErrOwners)
	_, err = New(MaxOwners + 1)
	assert.ErrorIs(t, err, ErrOwners)
}

func TestColorLookup(t *testing.T) {
	p, err := New(3)
	require.NoError(t, err)

	assert.Equal(t, p.Colors[2], p.Color(2))
	assert.Equal(t, DefaultBackground, p.Color(-1))
	assert.Equal(t, DefaultBackground, p.Color(3))

	cp := p.ColorPalette()
	require.Len(t, cp, 4)
	assert.Equal(t, color.Color(p.Background), cp[0])
	assert.Equal(t, color.Color(p.Colors[0]), cp[1])
}

func TestFromColorsRepeats(t *testing.T) {
	src := color.Palette{color.RGBA{R: 0xFF, A: 0xFF}, color.RGBA{B: 0xFF, A: 0xFF}}
	p, err := FromColors(src, 5)
	require.NoError(t, err)
	assert.Equal(t, []color.RGBA{
		{R: 0xFF, A: 0xFF}, {B: 0xFF, A: 0xFF}, {R: 0xFF, A: 0xFF}, {B: 0xFF, A: 0xFF}, {R: 0xFF, A: 0xFF},
	}, p.Colors)

	_, err = FromColors(nil, 2)
	assert.Error(t, err)
}

func TestRIFFRoundTrip(t *testing.T) {
	pals := []color.Palette{
		{color.RGBA{1, 2, 3, 0xFF}, color.RGBA{4, 5, 6, 0xFF}},
		{color.RGBA{7, 8, 9, 0xFF}},
	}

	var buf bytes.Buffer
	n, err := WriteTo(&buf, pals)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.Equal(t, []byte("RIFF"), buf.Bytes()[:4])

	got, err := ReadFrom(&buf)
	require.NoError(t, err)
	assert.Equal(t, pals, got)
}

func TestReadFromRejectsOtherForms(t *testing.T) {
	data := []byte("RIFF\x04\x00\x00\x00WAVE")
	_, err := ReadFrom(bytes.NewReader(data))
	assert.ErrorContains(t, err, "unsupported RIFF content type")
}

func TestSaveLoad(t *testing.T) {
	p, err := New(4)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "owners.pal")
	require.NoError(t, p.Save(path))

	pal, err := Load(path)
	require.NoError(t, err)
	require.Len(t, pal, 4)
	for i, c := range pal {
		assert.Equal(t, color.Color(p.Colors[i]), c)
	}
}
