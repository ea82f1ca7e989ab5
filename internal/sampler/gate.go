package sampler

import (
	"image"
	stddraw "image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Gate decides whether a candidate frame is visually distinct enough from
// the last accepted frame to be worth keeping. The baseline is compared
// against the last *accepted* frame, not the previous candidate, so gradual
// drift cannot slip through one near-identical frame at a time.
//
// Evaluate is safe for concurrent use, but acceptance only stays
// deterministic if candidates arrive in timestamp order; the dispatcher
// guarantees that by evaluating in its sequential stage.
type Gate struct {
	mu        sync.Mutex
	threshold float64
	ignore    bool
	baseline  *image.Gray
}

// NewGate returns a gate with the given difference threshold. When ignore
// is true every candidate is accepted.
func NewGate(threshold float64, ignore bool) *Gate {
	return &Gate{threshold: threshold, ignore: ignore}
}

// Evaluate scores the candidate against the baseline and reports whether it
// was accepted. On acceptance the candidate becomes the new baseline; a
// rejection leaves the baseline untouched. The score is the mean squared
// per-pixel intensity difference, with the candidate rescaled to the
// baseline's dimensions if they differ.
func (g *Gate) Evaluate(f *Frame) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	cand := grayscale(f.Image)
	if g.ignore || g.baseline == nil {
		g.baseline = cand
		return true
	}

	cmp := cand
	if !cmp.Bounds().Eq(g.baseline.Bounds()) {
		cmp = scaleGray(cmp, g.baseline.Bounds())
	}
	if meanSquaredDiff(cmp, g.baseline) > g.threshold {
		g.baseline = cand
		return true
	}
	return false
}

func grayscale(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Src)
	return dst
}

func scaleGray(src *image.Gray, bounds image.Rectangle) *image.Gray {
	dst := image.NewGray(bounds)
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func meanSquaredDiff(a, b *image.Gray) float64 {
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}
	var sum float64
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w]
		rb := b.Pix[y*b.Stride : y*b.Stride+w]
		for x := 0; x < w; x++ {
			d := float64(ra[x]) - float64(rb[x])
			sum += d * d
		}
	}
	return sum / float64(w*h)
}
