package picker

import (
	"fmt"
	"image"
	"image/draw"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// LoadFace loads a TTF/OTF face at the given point size, falling back to
// the built-in bitmap face when the file is missing or unparseable.
func LoadFace(path string, size float64) font.Face {
	if path == "" {
		return basicfont.Face7x13
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("font", path).Msg("font unavailable; using built-in face")
		return basicfont.Face7x13
	}
	parsed, err := opentype.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("font", path).Msg("font unparseable; using built-in face")
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Warn().Err(err).Str("font", path).Msg("face creation failed; using built-in face")
		return basicfont.Face7x13
	}
	return face
}

func drawText(dst *image.Gray, face font.Face, x, baseline int, text string, shade uint8) {
	d := font.Drawer{
		Dst:  dst,
		Src:  grayUniform(shade),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

func faceHeight(face font.Face) int {
	return face.Metrics().Height.Ceil()
}

const uiMargin = 16

// ComposeOverlay renders the knob overlay: the knob title followed by its
// value list, with the selected row inverted.
func ComposeOverlay(face font.Face, title string, values []string, selected int, bounds image.Rectangle) *image.Gray {
	img := NewWhiteFrame(bounds)
	w := bounds.Dx()
	lineH := faceHeight(face)
	ascent := face.Metrics().Ascent.Ceil()

	y := bounds.Min.Y + uiMargin
	drawText(img, face, bounds.Min.X+uiMargin, y+ascent, title, 0x00)
	y += lineH + 8

	rows := KnobPositions
	if len(values) > rows {
		rows = len(values)
	}
	itemH := (bounds.Max.Y - y - uiMargin) / rows
	if itemH < 1 {
		itemH = 1
	}
	for i := 0; i < rows; i++ {
		text := ""
		if i < len(values) {
			text = values[i]
		}
		top := y + i*itemH
		textY := top + (itemH-lineH)/2 + ascent
		if i == selected {
			row := image.Rect(bounds.Min.X, top, bounds.Min.X+w, top+itemH)
			draw.Draw(img, row.Intersect(bounds), grayUniform(0x00), image.Point{}, draw.Src)
			drawText(img, face, bounds.Min.X+uiMargin, textY, text, 0xFF)
		} else {
			drawText(img, face, bounds.Min.X+uiMargin, textY, text, 0x00)
		}
	}
	return img
}

// ComposeMessage renders a single centered line of text, used for GO/RESET
// and generation progress feedback.
func ComposeMessage(face font.Face, text string, bounds image.Rectangle) *image.Gray {
	img := NewWhiteFrame(bounds)
	width := font.MeasureString(face, text).Ceil()
	ascent := face.Metrics().Ascent.Ceil()
	x := bounds.Min.X + (bounds.Dx()-width)/2
	if x < bounds.Min.X+uiMargin {
		x = bounds.Min.X + uiMargin
	}
	y := bounds.Min.Y + bounds.Dy()/2 + ascent/2
	drawText(img, face, x, y, text, 0x00)
	return img
}

// ComposeMainScreen renders the idle screen: every knob's title and current
// selection, one row per channel.
func ComposeMainScreen(face font.Face, texts Texts, positions map[int]int, bounds image.Rectangle) *image.Gray {
	img := NewWhiteFrame(bounds)
	lineH := faceHeight(face)
	ascent := face.Metrics().Ascent.Ceil()

	y := bounds.Min.Y + uiMargin
	drawText(img, face, bounds.Min.X+uiMargin, y+ascent, "PICKER", 0x00)
	y += 2 * lineH

	for _, ch := range texts.Channels() {
		knob, _ := texts.Knob(ch)
		value := ""
		if pos, ok := positions[ch]; ok && pos >= 0 && pos < len(knob.Values) {
			value = knob.Values[pos]
		}
		line := fmt.Sprintf("%s: %s", knob.Title, value)
		drawText(img, face, bounds.Min.X+uiMargin, y+ascent, line, 0x00)
		y += lineH + 6
		if y > bounds.Max.Y-uiMargin {
			break
		}
	}
	return img
}
