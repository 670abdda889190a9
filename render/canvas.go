package render

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"dragonizer/pipeline"
)

var canvasMagic = [4]byte{'D', 'R', 'G', 'C'}

var errCanvasFormat = errors.New("not a canvas dump")

// canvasHeader precedes the raw owner ids, one byte per cell in row-major
// order. The whole stream is zstd compressed.
type canvasHeader struct {
	Magic  [4]byte
	Width  uint32
	Height uint32
}

func writeCanvas(w io.Writer, c *pipeline.Canvas) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("could not create zstd encoder: %w", err)
	}

	hdr := canvasHeader{Magic: canvasMagic, Width: uint32(c.Width), Height: uint32(c.Height)}
	if err := binary.Write(enc, binary.LittleEndian, &hdr); err != nil {
		_ = enc.Close()
		return fmt.Errorf("could not write canvas header: %w", err)
	}
	if err := binary.Write(enc, binary.LittleEndian, c.Cells); err != nil {
		_ = enc.Close()
		return fmt.Errorf("could not write canvas cells: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("could not flush zstd stream: %w", err)
	}
	return nil
}

func readCanvas(r io.Reader) (*pipeline.Canvas, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd decoder: %w", err)
	}
	defer dec.Close()

	var hdr canvasHeader
	if err := binary.Read(dec, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("could not read canvas header: %w", err)
	}
	if hdr.Magic != canvasMagic {
		return nil, fmt.Errorf("%w: bad magic %q", errCanvasFormat, hdr.Magic[:])
	}

	if cells := uint64(hdr.Width) * uint64(hdr.Height); cells > pipeline.DefaultMaxCells {
		return nil, fmt.Errorf("%w: canvas of %dx%d cells exceeds %d", pipeline.ErrAllocation, hdr.Width, hdr.Height, uint64(pipeline.DefaultMaxCells))
	}

	c, err := pipeline.NewCanvas(int(hdr.Width), int(hdr.Height))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(dec, binary.LittleEndian, c.Cells); err != nil {
		return nil, fmt.Errorf("could not read canvas cells: %w", err)
	}
	return c, nil
}

func saveCanvas(path string, c *pipeline.Canvas) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create canvas file %q: %w", path, err)
	}
	defer func() {
		if defErr := f.Close(); defErr != nil && err == nil {
			err = fmt.Errorf("could not close canvas file %q: %w", path, defErr)
		}
	}()

	return writeCanvas(f, c)
}

func loadCanvas(path string) (*pipeline.Canvas, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open canvas file %q: %w", path, err)
	}
	defer f.Close()

	return readCanvas(f)
}
