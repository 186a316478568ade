package picker

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SimDevice is a development stand-in for the panel: every update is saved
// as a PNG under a scratch directory so frames can be inspected without
// hardware attached.
type SimDevice struct {
	bounds image.Rectangle
	outDir string

	mu         sync.Mutex
	frameCount int
}

// NewSimDevice creates a simulated panel of the given size. An empty outDir
// defaults to a scratch directory under the system temp dir.
func NewSimDevice(width, height int, outDir string) (*SimDevice, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("simulated display: invalid geometry %dx%d", width, height)
	}
	if outDir == "" {
		outDir = filepath.Join(os.TempDir(), "picker-display")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create simulated display output dir")
	}
	return &SimDevice{
		bounds: image.Rect(0, 0, width, height),
		outDir: outDir,
	}, nil
}

func (d *SimDevice) Bounds() image.Rectangle {
	return d.bounds
}

func (d *SimDevice) DisplayImage(frame *image.Gray, wf Waveform, region image.Rectangle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := fmt.Sprintf("frame_%04d_%s.png", d.frameCount, wf)
	d.frameCount++
	path := filepath.Join(d.outDir, name)
	if err := d.savePNG(path, frame); err != nil {
		return err
	}
	log.Debug().
		Str("file", path).
		Str("waveform", wf.String()).
		Str("region", region.String()).
		Msg("simulated display update")
	return nil
}

func (d *SimDevice) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := fmt.Sprintf("frame_%04d_clear.png", d.frameCount)
	d.frameCount++
	return d.savePNG(filepath.Join(d.outDir, name), NewWhiteFrame(d.bounds))
}

func (d *SimDevice) Close() error {
	log.Debug().Str("dir", d.outDir).Msg("simulated display closed")
	return nil
}

func (d *SimDevice) savePNG(path string, frame *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "write simulated frame")
	}
	defer f.Close()
	return png.Encode(f, frame)
}
