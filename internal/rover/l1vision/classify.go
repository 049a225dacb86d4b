package l1vision

// RGBThreshold is a per-channel lower bound. A pixel matches only when every
// channel strictly exceeds its bound.
type RGBThreshold struct {
	R, G, B uint8
}

// Match reports whether the triple lies strictly above the threshold.
func (t RGBThreshold) Match(r, g, b uint8) bool {
	return r > t.R && g > t.G && b > t.B
}

// Thresholds holds the three classification profiles.
type Thresholds struct {
	Navigable RGBThreshold
	Obstacle  RGBThreshold
	Sample    RGBThreshold
}

// DefaultThresholds returns the profiles tuned for the simulator terrain.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Navigable: RGBThreshold{160, 160, 160},
		Obstacle:  RGBThreshold{100, 100, 50},
		Sample:    RGBThreshold{200, 150, 0},
	}
}

// Mask is a binary image with one byte per pixel, each 0 or 1.
type Mask struct {
	Width  int
	Height int
	Data   []uint8
}

// NewMask allocates an empty mask.
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Data: make([]uint8, width*height)}
}

// At reports whether the pixel at column x, row y is set.
func (m *Mask) At(x, y int) bool {
	return m.Data[y*m.Width+x] != 0
}

// Set marks the pixel at column x, row y.
func (m *Mask) Set(x, y int) {
	m.Data[y*m.Width+x] = 1
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Data {
		n += int(v)
	}
	return n
}

// Classify thresholds every pixel of f.
func Classify(f *Frame, t RGBThreshold) *Mask {
	m := NewMask(f.Width, f.Height)
	for i := range m.Data {
		p := f.Pix[i*3 : i*3+3]
		if t.Match(p[0], p[1], p[2]) {
			m.Data[i] = 1
		}
	}
	return m
}

// Masks is the result of classifying one frame with all three profiles.
type Masks struct {
	Navigable *Mask
	Obstacle  *Mask
	Sample    *Mask
}

// ClassifyAll applies every profile in a single pass over f. Profiles are
// evaluated independently, so one pixel may appear in more than one mask;
// the world map resolves overlaps by update order.
func ClassifyAll(f *Frame, t Thresholds) Masks {
	ms := Masks{
		Navigable: NewMask(f.Width, f.Height),
		Obstacle:  NewMask(f.Width, f.Height),
		Sample:    NewMask(f.Width, f.Height),
	}
	for i := range ms.Navigable.Data {
		r, g, b := f.Pix[i*3], f.Pix[i*3+1], f.Pix[i*3+2]
		if t.Navigable.Match(r, g, b) {
			ms.Navigable.Data[i] = 1
		}
		if t.Obstacle.Match(r, g, b) {
			ms.Obstacle.Data[i] = 1
		}
		if t.Sample.Match(r, g, b) {
			ms.Sample.Data[i] = 1
		}
	}
	return ms
}

// OverlayValue is the channel intensity written for a set mask pixel.
const OverlayValue = 200

// Overlay classifies the raw camera frame for display: obstacles in red,
// samples in green, navigable terrain in blue. It never feeds navigation.
func Overlay(f *Frame, t Thresholds) *Frame {
	ms := ClassifyAll(f, t)
	out := NewFrame(f.Width, f.Height)
	for i := range ms.Navigable.Data {
		out.Pix[i*3] = ms.Obstacle.Data[i] * OverlayValue
		out.Pix[i*3+1] = ms.Sample.Data[i] * OverlayValue
		out.Pix[i*3+2] = ms.Navigable.Data[i] * OverlayValue
	}
	return out
}
