package analyzer

import (
	"image"
)

// Edge map values
const (
	edgeOff uint8 = 0
	edgeOn  uint8 = 255
)

// tan(22.5°) and tan(67.5°) split gradient directions into four bins
const (
	tan22 = 0.41421356237
	tan67 = 2.41421356237
)

// cannyEdges runs Canny edge detection on a colour image. For each pixel the
// channel with the strongest L1 Sobel gradient is used, borders are replicated,
// and the result is a w*h map of 0 or 255.
func cannyEdges(img *image.RGBA, low, high float64, pool *WorkerPool) []uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	n := w * h
	gx := make([]float64, n)
	gy := make([]float64, n)
	mag := make([]float64, n)

	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var bestX, bestY, bestMag float64
				for c := 0; c < 3; c++ {
					dx, dy := sobelAt(img, w, h, x, y, c)
					m := abs(dx) + abs(dy)
					if c == 0 || m > bestMag {
						bestX, bestY, bestMag = dx, dy, m
					}
				}
				i := y*w + x
				gx[i], gy[i], mag[i] = bestX, bestY, bestMag
			}
		}
	})

	// non-maximum suppression; candidates are 1 (weak) or 2 (strong)
	state := make([]uint8, n)
	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}
	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				m := mag[i]
				if m <= low {
					continue
				}
				ax, ay := abs(gx[i]), abs(gy[i])
				var n1, n2 float64
				switch {
				case ay <= ax*tan22:
					n1, n2 = magAt(x-1, y), magAt(x+1, y)
				case ay >= ax*tan67:
					n1, n2 = magAt(x, y-1), magAt(x, y+1)
				case (gx[i] < 0) == (gy[i] < 0):
					n1, n2 = magAt(x-1, y-1), magAt(x+1, y+1)
				default:
					n1, n2 = magAt(x+1, y-1), magAt(x-1, y+1)
				}
				if m > n1 && m >= n2 {
					if m > high {
						state[i] = 2
					} else {
						state[i] = 1
					}
				}
			}
		}
	})

	// hysteresis: grow strong pixels through 8-connected weak ones
	edges := make([]uint8, n)
	stack := make([]int, 0, 256)
	for i, s := range state {
		if s == 2 && edges[i] == edgeOff {
			edges[i] = edgeOn
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%w, p/w
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					qx, qy := px+dx, py+dy
					if qx < 0 || qy < 0 || qx >= w || qy >= h {
						continue
					}
					q := qy*w + qx
					if state[q] != 0 && edges[q] == edgeOff {
						edges[q] = edgeOn
						stack = append(stack, q)
					}
				}
			}
		}
	}
	return edges
}

// sobelAt computes the 3x3 Sobel derivatives of channel c at (x, y) with
// replicated borders.
func sobelAt(img *image.RGBA, w, h, x, y, c int) (float64, float64) {
	xm, xp := clampInt(x-1, 0, w-1), clampInt(x+1, 0, w-1)
	ym, yp := clampInt(y-1, 0, h-1), clampInt(y+1, 0, h-1)
	px := func(xx, yy int) float64 {
		return float64(img.Pix[yy*img.Stride+xx*4+c])
	}

	dx := (px(xp, ym) + 2*px(xp, y) + px(xp, yp)) - (px(xm, ym) + 2*px(xm, y) + px(xm, yp))
	dy := (px(xm, yp) + 2*px(x, yp) + px(xp, yp)) - (px(xm, ym) + 2*px(x, ym) + px(xp, ym))
	return dx, dy
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
