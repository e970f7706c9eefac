package analyzer

import (
	"image"
	"image/color"
	"testing"
)

func TestCannyEdges_Flat(t *testing.T) {
	img := createTestImage(20, 20, color.RGBA{40, 80, 120, 255})
	for i, e := range cannyEdges(img, CannyLowThreshold, CannyHighThreshold, nil) {
		if e != edgeOff {
			t.Fatalf("Expected no edge at %d", i)
		}
	}
}

func TestCannyEdges_VerticalStep(t *testing.T) {
	const w, h = 40, 12
	img := createSplitImage(w, h, color.RGBA{0, 0, 0, 255}, color.RGBA{255, 255, 255, 255})

	pool := NewWorkerPool(4)
	pool.Start()
	defer pool.Close()

	edges := cannyEdges(img, CannyLowThreshold, CannyHighThreshold, pool)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			want := edgeOff
			if x == w/2-1 {
				want = edgeOn
			}
			if got := edges[y*w+x]; got != want {
				t.Fatalf("Pixel (%d,%d): expected %d, got %d", x, y, want, got)
			}
		}
	}
}

func TestCannyEdges_WeakEdgeNeedsStrongNeighbour(t *testing.T) {
	const w, h = 30, 10
	// 0 -> 30 gives |dx| = 120: above low, below high
	img := createSplitImage(w, h, color.RGBA{0, 0, 0, 255}, color.RGBA{30, 30, 30, 255})

	for i, e := range cannyEdges(img, CannyLowThreshold, CannyHighThreshold, nil) {
		if e != edgeOff {
			t.Fatalf("Expected isolated weak edge to be dropped at %d", i)
		}
	}
}

func TestCannyEdges_UsesStrongestChannel(t *testing.T) {
	const w, h = 20, 6
	// only the blue channel changes across the step
	img := createSplitImage(w, h, color.RGBA{100, 100, 0, 255}, color.RGBA{100, 100, 255, 255})

	edges := cannyEdges(img, CannyLowThreshold, CannyHighThreshold, nil)
	count := 0
	for _, e := range edges {
		if e == edgeOn {
			count++
		}
	}
	if count != h {
		t.Errorf("Expected one edge pixel per row (%d), got %d", h, count)
	}
}

func TestSobelAt_ReplicatedBorder(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	for i := range img.Pix {
		img.Pix[i] = 50
	}
	dx, dy := sobelAt(img, 3, 3, 0, 0, 0)
	if dx != 0 || dy != 0 {
		t.Errorf("Expected zero gradient on a flat corner, got (%f, %f)", dx, dy)
	}
}
