package picker

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// NewWhiteFrame returns a grayscale frame filled with white.
func NewWhiteFrame(bounds image.Rectangle) *image.Gray {
	frame := image.NewGray(bounds)
	for i := range frame.Pix {
		frame.Pix[i] = 0xFF
	}
	return frame
}

// ToGray converts any image to 8-bit grayscale.
func ToGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	out := image.NewGray(bounds)
	xdraw.Draw(out, bounds, src, bounds.Min, xdraw.Src)
	return out
}

// PrepareFrame scales src to fit bounds preserving aspect ratio, centers it
// on a white background, and applies gamma correction. This mirrors how
// generated images are staged before a full-quality paint.
func PrepareFrame(src image.Image, bounds image.Rectangle, gamma float64) *image.Gray {
	out := NewWhiteFrame(bounds)

	sb := src.Bounds()
	if sb.Dx() == 0 || sb.Dy() == 0 {
		return out
	}
	scale := math.Min(
		float64(bounds.Dx())/float64(sb.Dx()),
		float64(bounds.Dy())/float64(sb.Dy()),
	)
	if scale > 1 {
		scale = 1
	}
	w := int(float64(sb.Dx()) * scale)
	h := int(float64(sb.Dy()) * scale)
	x := bounds.Min.X + (bounds.Dx()-w)/2
	y := bounds.Min.Y + (bounds.Dy()-h)/2
	dst := image.Rect(x, y, x+w, y+h)

	xdraw.CatmullRom.Scale(out, dst, src, sb, xdraw.Src, nil)
	return applyGamma(out, gamma)
}

// applyGamma brightens or darkens midtones while preserving the black and
// white points. gamma > 1 lightens, 1.0 is a no-op.
func applyGamma(frame *image.Gray, gamma float64) *image.Gray {
	if gamma == 1.0 || gamma <= 0 {
		return frame
	}
	var lut [256]uint8
	for i := range lut {
		v := math.Pow(float64(i)/255.0, 1.0/gamma) * 255.0
		lut[i] = uint8(math.Min(255, math.Max(0, math.Round(v))))
	}
	for i, px := range frame.Pix {
		frame.Pix[i] = lut[px]
	}
	return frame
}

// RotateFrame returns src rotated by rot. CW and CCW swap the frame's
// dimensions.
func RotateFrame(src *image.Gray, rot Rotation) *image.Gray {
	if rot == RotateNone {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var out *image.Gray
	switch rot {
	case RotateCW, RotateCCW:
		out = image.NewGray(image.Rect(0, 0, h, w))
	default:
		out = image.NewGray(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			px := src.GrayAt(b.Min.X+x, b.Min.Y+y)
			switch rot {
			case RotateCW:
				out.SetGray(h-1-y, x, px)
			case RotateCCW:
				out.SetGray(y, w-1-x, px)
			case RotateFlip:
				out.SetGray(w-1-x, h-1-y, px)
			}
		}
	}
	return out
}

// FitFrame rotates frame and, when its geometry still differs from the
// panel, rescales it to fit. The result always matches bounds, keeping the
// diff baseline and the live handle's geometry in lockstep.
func FitFrame(frame *image.Gray, rot Rotation, bounds image.Rectangle) *image.Gray {
	rotated := RotateFrame(frame, rot)
	rb := rotated.Bounds()
	if rb.Dx() == bounds.Dx() && rb.Dy() == bounds.Dy() {
		if rb.Min == bounds.Min {
			return rotated
		}
		out := image.NewGray(bounds)
		xdraw.Draw(out, bounds, rotated, rb.Min, xdraw.Src)
		return out
	}
	return PrepareFrame(rotated, bounds, 1.0)
}

// grayUniform is a single-color source for font drawing.
func grayUniform(v uint8) *image.Uniform {
	return image.NewUniform(color.Gray{Y: v})
}
