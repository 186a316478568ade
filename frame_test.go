package picker

import (
	"image"
	"image/color"
	"testing"
)

func TestRotateFrameSwapsDimensions(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 40, 30))
	src.SetGray(0, 0, color.Gray{Y: 0}) // top-left marker on white
	for i := 1; i < len(src.Pix); i++ {
		src.Pix[i] = 0xFF
	}

	cw := RotateFrame(src, RotateCW)
	if cw.Bounds().Dx() != 30 || cw.Bounds().Dy() != 40 {
		t.Fatalf("CW rotation has wrong geometry: %v", cw.Bounds())
	}
	// Top-left lands at top-right after CW.
	if cw.GrayAt(29, 0).Y != 0 {
		t.Fatalf("CW marker misplaced; (29,0)=%d", cw.GrayAt(29, 0).Y)
	}

	ccw := RotateFrame(src, RotateCCW)
	if ccw.Bounds().Dx() != 30 || ccw.Bounds().Dy() != 40 {
		t.Fatalf("CCW rotation has wrong geometry: %v", ccw.Bounds())
	}
	if ccw.GrayAt(0, 39).Y != 0 {
		t.Fatalf("CCW marker misplaced; (0,39)=%d", ccw.GrayAt(0, 39).Y)
	}

	flip := RotateFrame(src, RotateFlip)
	if flip.Bounds() != src.Bounds() {
		t.Fatalf("flip must keep geometry, got %v", flip.Bounds())
	}
	if flip.GrayAt(39, 29).Y != 0 {
		t.Fatalf("flip marker misplaced; (39,29)=%d", flip.GrayAt(39, 29).Y)
	}
}

func TestRotateFrameNoneIsIdentity(t *testing.T) {
	src := grayFrame(8, 8, 42)
	if RotateFrame(src, RotateNone) != src {
		t.Fatal("RotateNone should return the frame unchanged")
	}
}

func TestPrepareFramePreservesAspectOnWhite(t *testing.T) {
	// A black square staged onto a wide panel: centered, white pillarboxes.
	src := grayFrame(100, 100, 0)
	bounds := image.Rect(0, 0, 200, 100)
	out := PrepareFrame(src, bounds, 1.0)

	if out.Bounds() != bounds {
		t.Fatalf("output geometry %v != %v", out.Bounds(), bounds)
	}
	if out.GrayAt(100, 50).Y != 0 {
		t.Fatalf("center should be black, got %d", out.GrayAt(100, 50).Y)
	}
	if out.GrayAt(10, 50).Y != 0xFF {
		t.Fatalf("pillarbox should be white, got %d", out.GrayAt(10, 50).Y)
	}
	if out.GrayAt(190, 50).Y != 0xFF {
		t.Fatalf("pillarbox should be white, got %d", out.GrayAt(190, 50).Y)
	}
}

func TestApplyGammaKeepsEndpoints(t *testing.T) {
	frame := image.NewGray(image.Rect(0, 0, 3, 1))
	frame.Pix[0] = 0
	frame.Pix[1] = 128
	frame.Pix[2] = 255

	out := applyGamma(frame, 2.2)
	if out.Pix[0] != 0 || out.Pix[2] != 255 {
		t.Fatalf("gamma must preserve black and white points, got %d %d", out.Pix[0], out.Pix[2])
	}
	if out.Pix[1] <= 128 {
		t.Fatalf("gamma > 1 should lighten midtones, got %d", out.Pix[1])
	}
}

func TestFitFrameMatchesPanelGeometry(t *testing.T) {
	panel := image.Rect(0, 0, 64, 48)

	// Composed upright for a CW-mounted panel: swapped dimensions in,
	// panel-shaped out.
	composed := grayFrame(48, 64, 128)
	out := FitFrame(composed, RotateCW, panel)
	if out.Bounds() != panel {
		t.Fatalf("rotated frame geometry %v != panel %v", out.Bounds(), panel)
	}

	// Mismatched geometry falls back to a rescale.
	odd := grayFrame(100, 100, 128)
	out = FitFrame(odd, RotateNone, panel)
	if out.Bounds() != panel {
		t.Fatalf("rescaled frame geometry %v != panel %v", out.Bounds(), panel)
	}
}
