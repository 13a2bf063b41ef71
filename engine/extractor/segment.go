package extractor

import (
	"image"
	"sort"

	"github.com/disintegration/imaging"
)

// findRegions returns the bounding boxes of connected foreground regions in img.
// A pixel is foreground when its luma is below threshold. Regions are found with
// 8-connectivity, boxes smaller than minWidth x minHeight are discarded, boxes
// lying entirely inside another surviving box are dropped, and the result is
// ordered top to bottom then left to right. Output coordinates are in img's space.
func findRegions(img image.Image, threshold uint8, minWidth, minHeight int) []image.Rectangle {
	gray := imaging.Grayscale(img)
	bounds := img.Bounds()
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w == 0 || h == 0 {
		return nil
	}

	// grayscale NRGBA has equal channels, R is the luma
	fg := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			fg[y*w+x] = row[x*4] < threshold
		}
	}

	var boxes []image.Rectangle
	stack := make([]int, 0, 1024)
	for start := range fg {
		if !fg[start] {
			continue
		}
		fg[start] = false
		stack = append(stack[:0], start)
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY

		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			if px < minX {
				minX = px
			}
			if px > maxX {
				maxX = px
			}
			if py < minY {
				minY = py
			}
			if py > maxY {
				maxY = py
			}
			for dy := -1; dy <= 1; dy++ {
				ny := py + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := px + dx
					if nx < 0 || nx >= w {
						continue
					}
					n := ny*w + nx
					if fg[n] {
						fg[n] = false
						stack = append(stack, n)
					}
				}
			}
		}

		if maxX-minX+1 < minWidth || maxY-minY+1 < minHeight {
			continue
		}
		boxes = append(boxes, image.Rect(minX, minY, maxX+1, maxY+1).Add(bounds.Min))
	}

	return outermost(boxes)
}

// outermost drops boxes contained in another box and sorts the rest in reading order
func outermost(boxes []image.Rectangle) []image.Rectangle {
	sort.SliceStable(boxes, func(i, j int) bool {
		ai, aj := area(boxes[i]), area(boxes[j])
		if ai != aj {
			return ai > aj
		}
		return less(boxes[i], boxes[j])
	})

	kept := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		inside := false
		for _, k := range kept {
			if b.In(k) {
				inside = true
				break
			}
		}
		if !inside {
			kept = append(kept, b)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return less(kept[i], kept[j]) })
	return kept
}

func area(r image.Rectangle) int {
	return r.Dx() * r.Dy()
}

func less(a, b image.Rectangle) bool {
	if a.Min.Y != b.Min.Y {
		return a.Min.Y < b.Min.Y
	}
	return a.Min.X < b.Min.X
}
