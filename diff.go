package picker

import (
	"bytes"
	"image"
)

// DefaultAlign is the minimum rectangle granularity the IT8951 can address
// for a partial refresh.
const DefaultAlign = 4

// DiffBounds returns the minimal hardware-aligned rectangle enclosing every
// pixel that differs between prev and next, and whether anything differs at
// all. A false result means the frames are identical and the hardware call
// can be skipped entirely; repainting an unchanged e-paper frame is wasted
// time and visible flicker.
//
// When prev is missing or its geometry does not match, the whole frame is
// reported as changed.
func DiffBounds(prev, next *image.Gray, align int) (image.Rectangle, bool) {
	if align <= 0 {
		align = DefaultAlign
	}
	bounds := next.Bounds()
	if prev == nil || prev.Bounds() != bounds {
		return bounds, true
	}

	w := bounds.Dx()
	h := bounds.Dy()
	minX, minY := w, h
	maxX, maxY := -1, -1

	for y := 0; y < h; y++ {
		pr := prev.Pix[y*prev.Stride : y*prev.Stride+w]
		nr := next.Pix[y*next.Stride : y*next.Stride+w]
		if bytes.Equal(pr, nr) {
			continue
		}
		if y < minY {
			minY = y
		}
		maxY = y
		for x := 0; x < w; x++ {
			if pr[x] != nr[x] {
				if x < minX {
					minX = x
				}
				break
			}
		}
		for x := w - 1; x >= 0; x-- {
			if pr[x] != nr[x] {
				if x+1 > maxX {
					maxX = x + 1
				}
				break
			}
		}
	}

	if maxY < 0 {
		return image.Rectangle{}, false
	}
	maxY++

	// Expand each edge outward to the alignment granularity, clamped to the
	// frame.
	minX -= minX % align
	minY -= minY % align
	maxX = alignUp(maxX, align)
	maxY = alignUp(maxY, align)
	if maxX > w {
		maxX = w
	}
	if maxY > h {
		maxY = h
	}
	return image.Rect(minX, minY, maxX, maxY).Add(bounds.Min), true
}

func alignUp(v, align int) int {
	return (v + align - 1) / align * align
}
