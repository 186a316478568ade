package picker

import (
	"image"
	"testing"

	"golang.org/x/image/font/basicfont"
)

func TestComposeOverlayInvertsSelectedRow(t *testing.T) {
	bounds := image.Rect(0, 0, 300, 400)
	values := make([]string, KnobPositions)
	for i := range values {
		values[i] = "row"
	}
	selected := 5
	img := ComposeOverlay(basicfont.Face7x13, "Knob", values, selected, bounds)

	if img.Bounds() != bounds {
		t.Fatalf("overlay geometry %v != %v", img.Bounds(), bounds)
	}

	// Find the black selection band by scanning the left edge, where no
	// glyphs land (text is inset by the margin).
	blackRuns := 0
	inRun := false
	for y := 0; y < bounds.Dy(); y++ {
		black := img.GrayAt(2, y).Y == 0
		if black && !inRun {
			blackRuns++
		}
		inRun = black
	}
	if blackRuns != 1 {
		t.Fatalf("expected exactly one inverted band, found %d", blackRuns)
	}
}

func TestComposeOverlayNoSelection(t *testing.T) {
	bounds := image.Rect(0, 0, 300, 400)
	img := ComposeOverlay(basicfont.Face7x13, "Knob", []string{"a", "b"}, -1, bounds)
	for y := 0; y < bounds.Dy(); y++ {
		if img.GrayAt(2, y).Y == 0 {
			t.Fatalf("no row should be inverted, found black at y=%d", y)
		}
	}
}

func TestComposeMessageIsCentered(t *testing.T) {
	bounds := image.Rect(0, 0, 300, 100)
	img := ComposeMessage(basicfont.Face7x13, "GO!", bounds)

	// All ink must sit in the middle band of the frame.
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			if img.GrayAt(x, y).Y != 0xFF {
				if y < 25 || y > 75 || x < 100 || x > 200 {
					t.Fatalf("ink outside the center at (%d,%d)", x, y)
				}
			}
		}
	}
}

func TestComposeMainScreenListsSelections(t *testing.T) {
	bounds := image.Rect(0, 0, 400, 600)
	texts := DefaultTexts()
	positions := map[int]int{}
	for _, ch := range KnobChannels {
		positions[ch] = 0
	}
	img := ComposeMainScreen(basicfont.Face7x13, texts, positions, bounds)

	if img.Bounds() != bounds {
		t.Fatalf("main screen geometry %v != %v", img.Bounds(), bounds)
	}
	ink := 0
	for _, px := range img.Pix {
		if px != 0xFF {
			ink++
		}
	}
	if ink == 0 {
		t.Fatal("main screen rendered blank")
	}
}

func TestLoadFaceFallsBack(t *testing.T) {
	face := LoadFace("/nonexistent/font.ttf", 24)
	if face == nil {
		t.Fatal("missing font must fall back, not return nil")
	}
	if face != basicfont.Face7x13 {
		t.Fatal("expected the built-in fallback face")
	}
}
