package analyzer

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/gift"
	"gonum.org/v1/gonum/mat"
)

// Dense two-frame optical flow after Farnebäck (2003): each neighbourhood is
// approximated by a quadratic polynomial and the displacement is solved from
// how the polynomial coefficients move between frames, coarse to fine.

// det regulariser keeps flat regions at zero displacement
const flowRegularizer = 1e-3

// Pixels near the frame edge get reduced weight in the normal equations
var borderWeights = [...]float64{0.14, 0.14, 0.4472, 0.4472, 0.4472}

// plane is a single-channel float image
type plane struct {
	w, h int
	data []float64
}

// coeffs holds per-pixel polynomial coefficients [bx, by, axx, ayy, axy]
type coeffs struct {
	w, h int
	data []float64
}

const numCoeffs = 5

type farnebackEstimator struct {
	params FarnebackParams
	basis  *polyBasis
	pool   *WorkerPool
}

func newFarnebackEstimator(params FarnebackParams, pool *WorkerPool) (*farnebackEstimator, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	basis, err := newPolyBasis(params.PolyN, params.PolySigma)
	if err != nil {
		return nil, err
	}
	return &farnebackEstimator{params: params, basis: basis, pool: pool}, nil
}

// Flow computes the displacement field that carries prev onto cur
func (fe *farnebackEstimator) Flow(prev, cur *image.Gray) (*FlowField, error) {
	pb, cb := prev.Bounds(), cur.Bounds()
	if pb.Dx() != cb.Dx() || pb.Dy() != cb.Dy() {
		return nil, fmt.Errorf("frame size mismatch: %dx%d vs %dx%d", pb.Dx(), pb.Dy(), cb.Dx(), cb.Dy())
	}
	width, height := cb.Dx(), cb.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("empty frame")
	}

	p := fe.params
	levels := 0
	scale := 1.0
	for ; levels < p.Levels; levels++ {
		scale *= p.PyrScale
		if float64(width)*scale < minPyramidSize || float64(height)*scale < minPyramidSize {
			break
		}
	}

	var flow *FlowField
	for k := levels; k >= 0; k-- {
		scale := math.Pow(p.PyrScale, float64(k))
		lw := int(math.Round(float64(width) * scale))
		lh := int(math.Round(float64(height) * scale))

		i0 := pyramidLevel(prev, scale, lw, lh)
		i1 := pyramidLevel(cur, scale, lw, lh)

		if flow == nil {
			flow = NewFlowField(lw, lh)
		} else {
			flow = flow.resize(lw, lh, 1/p.PyrScale)
		}

		r0 := fe.basis.expand(i0, fe.pool)
		r1 := fe.basis.expand(i1, fe.pool)

		m := make([]float64, numCoeffs*lw*lh)
		updateMatrices(r0, r1, flow, m, fe.pool)
		for i := 0; i < p.Iterations; i++ {
			blurSolve(m, lw, lh, p.WinSize, flow, fe.pool)
			if i < p.Iterations-1 {
				updateMatrices(r0, r1, flow, m, fe.pool)
			}
		}
	}
	return flow, nil
}

// pyramidLevel smooths and downsamples gray to w x h. Scale 1 is a plain copy.
func pyramidLevel(gray *image.Gray, scale float64, w, h int) *plane {
	out := &plane{w: w, h: h, data: make([]float64, w*h)}
	b := gray.Bounds()

	if scale == 1 {
		for y := 0; y < h; y++ {
			off := gray.PixOffset(b.Min.X, b.Min.Y+y)
			row := gray.Pix[off : off+w]
			for x, v := range row {
				out.data[y*w+x] = float64(v)
			}
		}
		return out
	}

	sigma := (1/scale - 1) * 0.5
	g := gift.New(
		gift.GaussianBlur(float32(sigma)),
		gift.Resize(w, h, gift.LinearResampling),
	)
	dst := image.NewGray16(image.Rect(0, 0, w, h))
	g.Draw(dst, gray)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.data[y*w+x] = float64(dst.Gray16At(x, y).Y) / 257.0
		}
	}
	return out
}

// polyBasis holds the separable Gaussian applicability and the inverse of the
// weighted normal matrix for the basis {1, x, y, x², y², xy}.
type polyBasis struct {
	n   int
	g   []float64
	inv [6][6]float64
}

func newPolyBasis(n int, sigma float64) (*polyBasis, error) {
	g := make([]float64, 2*n+1)
	var sum float64
	for k := -n; k <= n; k++ {
		g[k+n] = math.Exp(-float64(k*k) / (2 * sigma * sigma))
		sum += g[k+n]
	}
	for i := range g {
		g[i] /= sum
	}

	normal := make([]float64, 36)
	for y := -n; y <= n; y++ {
		for x := -n; x <= n; x++ {
			w := g[x+n] * g[y+n]
			fx, fy := float64(x), float64(y)
			basis := [6]float64{1, fx, fy, fx * fx, fy * fy, fx * fy}
			for i := 0; i < 6; i++ {
				for j := 0; j < 6; j++ {
					normal[i*6+j] += w * basis[i] * basis[j]
				}
			}
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(mat.NewDense(6, 6, normal)); err != nil {
		return nil, fmt.Errorf("polynomial basis is singular for poly_n=%d: %w", n, err)
	}

	pb := &polyBasis{n: n, g: g}
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			pb.inv[i][j] = inv.At(i, j)
		}
	}
	return pb, nil
}

// expand fits the quadratic model around every pixel using separable
// row then column correlations.
func (pb *polyBasis) expand(src *plane, pool *WorkerPool) *coeffs {
	n := pb.n
	w, h := src.w, src.h
	h0 := make([]float64, w*h)
	h1 := make([]float64, w*h)
	h2 := make([]float64, w*h)

	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := src.data[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				var s0, s1, s2 float64
				for k := -n; k <= n; k++ {
					v := row[clampInt(x+k, 0, w-1)]
					gk := pb.g[k+n]
					kf := float64(k)
					s0 += gk * v
					s1 += gk * kf * v
					s2 += gk * kf * kf * v
				}
				i := y*w + x
				h0[i], h1[i], h2[i] = s0, s1, s2
			}
		}
	})

	out := &coeffs{w: w, h: h, data: make([]float64, numCoeffs*w*h)}
	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var s [6]float64 // 1, x, y, x², y², xy
				for k := -n; k <= n; k++ {
					i := clampInt(y+k, 0, h-1)*w + x
					gk := pb.g[k+n]
					kf := float64(k)
					s[0] += gk * h0[i]
					s[1] += gk * h1[i]
					s[2] += gk * kf * h0[i]
					s[3] += gk * h2[i]
					s[4] += gk * kf * kf * h0[i]
					s[5] += gk * kf * h1[i]
				}
				o := (y*w + x) * numCoeffs
				for r := 1; r < 6; r++ {
					var acc float64
					for c := 0; c < 6; c++ {
						acc += pb.inv[r][c] * s[c]
					}
					out.data[o+r-1] = acc
				}
			}
		}
	})
	return out
}

// sample bilinearly interpolates the coefficients at a sub-pixel position,
// clamping to the frame.
func (c *coeffs) sample(fx, fy float64) [numCoeffs]float64 {
	fx = clampFloat(fx, 0, float64(c.w-1))
	fy = clampFloat(fy, 0, float64(c.h-1))
	x0, y0 := int(fx), int(fy)
	x1, y1 := minInt(x0+1, c.w-1), minInt(y0+1, c.h-1)
	ax, ay := fx-float64(x0), fy-float64(y0)

	w00 := (1 - ax) * (1 - ay)
	w10 := ax * (1 - ay)
	w01 := (1 - ax) * ay
	w11 := ax * ay

	p00 := (y0*c.w + x0) * numCoeffs
	p10 := (y0*c.w + x1) * numCoeffs
	p01 := (y1*c.w + x0) * numCoeffs
	p11 := (y1*c.w + x1) * numCoeffs

	var out [numCoeffs]float64
	for i := 0; i < numCoeffs; i++ {
		out[i] = w00*c.data[p00+i] + w10*c.data[p10+i] + w01*c.data[p01+i] + w11*c.data[p11+i]
	}
	return out
}

// updateMatrices fills m with [g11, g12, g22, h1, h2] per pixel where
// G = AᵀA and h = AᵀΔb for the averaged quadratic term A and the
// displacement-corrected linear term Δb.
func updateMatrices(r0, r1 *coeffs, flow *FlowField, m []float64, pool *WorkerPool) {
	w, h := r0.w, r0.h
	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			wy := borderWeight(y, h)
			for x := 0; x < w; x++ {
				i := y*w + x
				dx, dy := flow.DX[i], flow.DY[i]
				s := r1.sample(float64(x)+dx, float64(y)+dy)
				p := r0.data[i*numCoeffs : (i+1)*numCoeffs]

				a11 := (p[2] + s[2]) * 0.5
				a22 := (p[3] + s[3]) * 0.5
				a12 := (p[4] + s[4]) * 0.25

				bx := (p[0]-s[0])*0.5 + a11*dx + a12*dy
				by := (p[1]-s[1])*0.5 + a12*dx + a22*dy

				wgt := wy * borderWeight(x, w)
				o := i * numCoeffs
				m[o+0] = (a11*a11 + a12*a12) * wgt
				m[o+1] = a12 * (a11 + a22) * wgt
				m[o+2] = (a12*a12 + a22*a22) * wgt
				m[o+3] = (a11*bx + a12*by) * wgt
				m[o+4] = (a12*bx + a22*by) * wgt
			}
		}
	})
}

// blurSolve box-averages m over a win x win window and solves the 2x2 system
// at every pixel, writing the result into flow.
func blurSolve(m []float64, w, h, win int, flow *FlowField, pool *WorkerPool) {
	r := win / 2
	scale := 1.0 / float64(win*win)
	vsum := make([]float64, len(m))

	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				o := (y*w + x) * numCoeffs
				for k := -r; k <= r; k++ {
					src := (clampInt(y+k, 0, h-1)*w + x) * numCoeffs
					for c := 0; c < numCoeffs; c++ {
						vsum[o+c] += m[src+c]
					}
				}
			}
		}
	})

	pool.ForEachStrip(h, func(_, y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var s [numCoeffs]float64
				for k := -r; k <= r; k++ {
					src := (y*w + clampInt(x+k, 0, w-1)) * numCoeffs
					for c := 0; c < numCoeffs; c++ {
						s[c] += vsum[src+c]
					}
				}
				g11, g12, g22 := s[0]*scale, s[1]*scale, s[2]*scale
				h1, h2 := s[3]*scale, s[4]*scale

				idet := 1.0 / (g11*g22 - g12*g12 + flowRegularizer)
				i := y*w + x
				flow.DX[i] = (g22*h1 - g12*h2) * idet
				flow.DY[i] = (g11*h2 - g12*h1) * idet
			}
		}
	})
}

// resize bilinearly resamples the field to w x h and multiplies every vector by factor
func (f *FlowField) resize(w, h int, factor float64) *FlowField {
	out := NewFlowField(w, h)
	sx := float64(f.Width) / float64(w)
	sy := float64(f.Height) / float64(h)
	for y := 0; y < h; y++ {
		fy := clampFloat((float64(y)+0.5)*sy-0.5, 0, float64(f.Height-1))
		y0 := int(fy)
		y1 := minInt(y0+1, f.Height-1)
		ay := fy - float64(y0)
		for x := 0; x < w; x++ {
			fx := clampFloat((float64(x)+0.5)*sx-0.5, 0, float64(f.Width-1))
			x0 := int(fx)
			x1 := minInt(x0+1, f.Width-1)
			ax := fx - float64(x0)

			i00, i10 := y0*f.Width+x0, y0*f.Width+x1
			i01, i11 := y1*f.Width+x0, y1*f.Width+x1
			dx := (1-ay)*((1-ax)*f.DX[i00]+ax*f.DX[i10]) + ay*((1-ax)*f.DX[i01]+ax*f.DX[i11])
			dy := (1-ay)*((1-ax)*f.DY[i00]+ax*f.DY[i10]) + ay*((1-ax)*f.DY[i01]+ax*f.DY[i11])

			o := y*w + x
			out.DX[o] = dx * factor
			out.DY[o] = dy * factor
		}
	}
	return out
}

func borderWeight(i, n int) float64 {
	w := 1.0
	if i < len(borderWeights) {
		w *= borderWeights[i]
	}
	if j := n - 1 - i; j < len(borderWeights) {
		w *= borderWeights[j]
	}
	return w
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
