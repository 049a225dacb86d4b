package l1vision

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is a 2D image coordinate: X is the column, Y is the row.
type Point struct {
	X, Y float64
}

// Calibration pairs a camera-space source quadrilateral with its bird's-eye
// destination. Corners are listed in the same order in both.
type Calibration struct {
	Source      [4]Point
	Destination [4]Point
}

// NewCalibration builds the destination square of half-size halfSize centered
// on the horizontal midpoint of a width x height image, bottomOffset pixels
// above the bottom edge.
func NewCalibration(width, height int, source [4]Point, halfSize, bottomOffset float64) Calibration {
	cx := float64(width) / 2
	h := float64(height)
	return Calibration{
		Source: source,
		Destination: [4]Point{
			{cx - halfSize, h - bottomOffset},
			{cx + halfSize, h - bottomOffset},
			{cx + halfSize, h - 2*halfSize - bottomOffset},
			{cx - halfSize, h - 2*halfSize - bottomOffset},
		},
	}
}

// Homography is a row-major 3x3 projective transform with h[8] == 1.
type Homography [9]float64

// Apply projects p. ok is false when p maps to the line at infinity.
func (h Homography) Apply(p Point) (q Point, ok bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return Point{}, false
	}
	return Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// SolveHomography returns the transform taking each from[i] to to[i].
// Both point sets are normalized to zero centroid and unit-ish spread before
// the 8x8 system is solved. Degenerate quadrilaterals (three collinear
// corners, repeated corners) yield a singular system and an error.
func SolveHomography(from, to [4]Point) (Homography, error) {
	nFrom, tFrom := normalize(from)
	nTo, tTo := normalize(to)

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := nFrom[i].X, nFrom[i].Y
		u, v := nTo[i].X, nTo[i].Y
		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i, u)
		b.SetVec(2*i+1, v)
	}

	if cond := mat.Cond(a, 1); math.IsInf(cond, 1) || math.IsNaN(cond) || cond > 1e10 {
		return Homography{}, fmt.Errorf("calibration quadrilateral is degenerate (condition %g)", cond)
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("solve homography: %w", err)
	}

	hn := mat.NewDense(3, 3, []float64{
		sol.AtVec(0), sol.AtVec(1), sol.AtVec(2),
		sol.AtVec(3), sol.AtVec(4), sol.AtVec(5),
		sol.AtVec(6), sol.AtVec(7), 1,
	})

	// H = T_to^-1 * Hn * T_from
	var tmp, full mat.Dense
	tmp.Mul(hn, tFrom)
	full.Mul(denormalizer(tTo), &tmp)

	scale := full.At(2, 2)
	if math.Abs(scale) < 1e-12 {
		return Homography{}, fmt.Errorf("calibration quadrilateral is degenerate")
	}
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = full.At(r, c) / scale
		}
	}
	return h, nil
}

// normalize shifts pts to zero centroid and scales them to mean distance
// sqrt(2), returning the normalized points and the 3x3 transform applied.
func normalize(pts [4]Point) ([4]Point, *mat.Dense) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= 4
	cy /= 4

	var meanDist float64
	for _, p := range pts {
		meanDist += math.Hypot(p.X-cx, p.Y-cy)
	}
	meanDist /= 4
	s := 1.0
	if meanDist > 0 {
		s = math.Sqrt2 / meanDist
	}

	var out [4]Point
	for i, p := range pts {
		out[i] = Point{X: s * (p.X - cx), Y: s * (p.Y - cy)}
	}
	return out, mat.NewDense(3, 3, []float64{
		s, 0, -s * cx,
		0, s, -s * cy,
		0, 0, 1,
	})
}

// denormalizer inverts a transform produced by normalize.
func denormalizer(t *mat.Dense) *mat.Dense {
	s := t.At(0, 0)
	return mat.NewDense(3, 3, []float64{
		1 / s, 0, -t.At(0, 2) / s,
		0, 1 / s, -t.At(1, 2) / s,
		0, 0, 1,
	})
}

// Rectifier warps camera frames into a bird's-eye view of the same size.
type Rectifier struct {
	width, height int
	inverse       Homography // bird's-eye to camera
}

// NewRectifier solves the calibration for frames of the given dimensions.
// A malformed calibration fails here and never at Warp time.
func NewRectifier(width, height int, cal Calibration) (*Rectifier, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("rectifier dimensions must be positive, got %dx%d", width, height)
	}
	for _, p := range append(cal.Source[:], cal.Destination[:]...) {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, fmt.Errorf("calibration contains non-finite point %v", p)
		}
	}
	// Both directions must be well conditioned; only the inverse is kept.
	if _, err := SolveHomography(cal.Source, cal.Destination); err != nil {
		return nil, err
	}
	inv, err := SolveHomography(cal.Destination, cal.Source)
	if err != nil {
		return nil, err
	}
	return &Rectifier{width: width, height: height, inverse: inv}, nil
}

// Warp produces the bird's-eye frame. Each output pixel is bilinearly sampled
// from its inverse-projected source location; samples outside the frame read
// as black.
func (r *Rectifier) Warp(f *Frame) (*Frame, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Width != r.width || f.Height != r.height {
		return nil, fmt.Errorf("%w: got %dx%d, rectifier expects %dx%d",
			ErrInvalidFrame, f.Width, f.Height, r.width, r.height)
	}

	out := NewFrame(r.width, r.height)
	for row := 0; row < r.height; row++ {
		for col := 0; col < r.width; col++ {
			src, ok := r.inverse.Apply(Point{X: float64(col), Y: float64(row)})
			if !ok {
				continue
			}
			sampleBilinear(f, src.X, src.Y, out.Pix[(row*r.width+col)*3:])
		}
	}
	return out, nil
}

// sampleBilinear writes the interpolated RGB at (x, y) into dst[0:3].
func sampleBilinear(f *Frame, x, y float64, dst []uint8) {
	if x <= -1 || y <= -1 || x >= float64(f.Width) || y >= float64(f.Height) {
		return
	}
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	fx := x - float64(x0)
	fy := y - float64(y0)

	var acc [3]float64
	taps := [4]struct {
		dx, dy int
		w      float64
	}{
		{0, 0, (1 - fx) * (1 - fy)},
		{1, 0, fx * (1 - fy)},
		{0, 1, (1 - fx) * fy},
		{1, 1, fx * fy},
	}
	for _, t := range taps {
		px, py := x0+t.dx, y0+t.dy
		if t.w == 0 || px < 0 || py < 0 || px >= f.Width || py >= f.Height {
			continue
		}
		i := (py*f.Width + px) * 3
		acc[0] += t.w * float64(f.Pix[i])
		acc[1] += t.w * float64(f.Pix[i+1])
		acc[2] += t.w * float64(f.Pix[i+2])
	}
	for c := 0; c < 3; c++ {
		v := math.Round(acc[c])
		if v > 255 {
			v = 255
		}
		dst[c] = uint8(v)
	}
}
