package render

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"dragonizer/palette"
)

var formats = []string{"png", "gif", "jpeg", "bmp", "tiff", "qoi"}

// formatOf derives the output format from a file extension.
func formatOf(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "jpg":
		ext = "jpeg"
	case "tif":
		ext = "tiff"
	}
	for _, f := range formats {
		if f == ext {
			return f, nil
		}
	}
	return "", fmt.Errorf("cannot derive output format from %q", path)
}

// toPaletted maps the image onto the background and owner colors. Every
// pixel already has one of those colors, so the conversion is exact.
func toPaletted(img image.Image, pal *palette.Palette) *image.Paletted {
	r := img.Bounds()
	dest := image.NewPaletted(r, pal.ColorPalette())
	draw.Draw(dest, r, img, r.Min, draw.Src)
	return dest
}

// save encodes img to destPath through a temporary file in the same folder,
// renamed into place once the encoding succeeded.
func save(img image.Image, pal *palette.Palette, outType, destPath string, paletted bool) (err error) {
	destDir, destName := filepath.Split(destPath)
	if destDir == "" {
		destDir = "."
	}

	outFile, err := os.CreateTemp(destDir, destName+".*")
	if err != nil {
		return fmt.Errorf("could not create temporary destination for %q: %w", destPath, err)
	}
	canRename := false
	defer func() {
		if defErr := outFile.Sync(); defErr != nil && err == nil {
			err = fmt.Errorf("could not flush temporary destination %q: %w", outFile.Name(), defErr)
		}
		if defErr := outFile.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close temporary destination %q: %w", outFile.Name(), defErr)
		}

		if canRename && err == nil {
			if defErr := os.Rename(outFile.Name(), destPath); defErr != nil {
				err = fmt.Errorf("could not rename destination file %q: %w", destPath, defErr)
			}
		} else {
			_ = os.Remove(outFile.Name())
		}
	}()

	if paletted || outType == "gif" {
		img = toPaletted(img, pal)
	}

	switch outType {
	case "gif":
		if err = gif.Encode(outFile, img, &gif.Options{NumColors: pal.Len() + 1}); err != nil {
			return fmt.Errorf("could not encode GIF destination %q: %w", destPath, err)
		}
	case "jpeg":
		if err = jpeg.Encode(outFile, img, &jpeg.Options{Quality: 100}); err != nil {
			return fmt.Errorf("could not encode JPEG destination %q: %w", destPath, err)
		}
	case "png":
		enc := png.Encoder{
			CompressionLevel: png.BestCompression,
			BufferPool:       pngPool,
		}
		if err = enc.Encode(outFile, img); err != nil {
			return fmt.Errorf("could not encode PNG destination %q: %w", destPath, err)
		}
	case "bmp":
		if err = bmp.Encode(outFile, img); err != nil {
			return fmt.Errorf("could not encode BMP destination %q: %w", destPath, err)
		}
	case "tiff":
		if err = tiff.Encode(outFile, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
			return fmt.Errorf("could not encode TIFF destination %q: %w", destPath, err)
		}
	case "qoi":
		if err = qoi.Encode(outFile, img); err != nil {
			return fmt.Errorf("could not encode QOI destination %q: %w", destPath, err)
		}
	default:
		return fmt.Errorf("unsupported output format: %s", outType)
	}

	canRename = true
	return err
}

type pngEncoderBufferPool struct {
	pool sync.Pool
}

func (p *pngEncoderBufferPool) Get() *png.EncoderBuffer {
	return p.pool.Get().(*png.EncoderBuffer)
}

func (p *pngEncoderBufferPool) Put(buf *png.EncoderBuffer) {
	p.pool.Put(buf)
}

var pngPool = &pngEncoderBufferPool{
	pool: sync.Pool{
		New: func() any {
			return &png.EncoderBuffer{}
		},
	},
}
