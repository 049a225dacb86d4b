package l2coords

import (
	"math"

	"github.com/banshee-data/rover.nav/internal/rover/l1vision"
)

// PointSet holds rover-centric points as parallel slices. The rover sits at
// the bottom-centre of the image; X points forward and Y points left.
type PointSet struct {
	X []float64
	Y []float64
}

// Len returns the number of points.
func (p PointSet) Len() int { return len(p.X) }

// ToRoverCentric converts every set pixel (row, col) of m into
// (x, y) = (H - row, W/2 - col).
func ToRoverCentric(m *l1vision.Mask) PointSet {
	n := m.Count()
	ps := PointSet{X: make([]float64, 0, n), Y: make([]float64, 0, n)}
	half := float64(m.Width) / 2
	for row := 0; row < m.Height; row++ {
		base := row * m.Width
		for col := 0; col < m.Width; col++ {
			if m.Data[base+col] == 0 {
				continue
			}
			ps.X = append(ps.X, float64(m.Height-row))
			ps.Y = append(ps.Y, half-float64(col))
		}
	}
	return ps
}

// ToPolar returns the distance and angle (radians, atan2 convention) of a point.
func ToPolar(x, y float64) (dist, angle float64) {
	return math.Hypot(x, y), math.Atan2(y, x)
}

// Rotate turns (x, y) counter-clockwise by yawDeg degrees.
func Rotate(x, y, yawDeg float64) (float64, float64) {
	rad := yawDeg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return x*cos - y*sin, x*sin + y*cos
}

// Translate scales rover pixels down to world cells and offsets them by the
// rover position.
func Translate(x, y, posX, posY, scale float64) (float64, float64) {
	return x/scale + posX, y/scale + posY
}

// Untranslate inverts Translate.
func Untranslate(x, y, posX, posY, scale float64) (float64, float64) {
	return (x - posX) * scale, (y - posY) * scale
}

// Pose is the rover position in world cells and heading in degrees.
type Pose struct {
	X, Y   float64
	YawDeg float64
}

// WorldFrame maps rover-centric points onto a square world grid.
type WorldFrame struct {
	Size  int
	Scale float64
}

// DefaultWorldFrame is the 200x200 map at 8 rover pixels per cell.
func DefaultWorldFrame() WorldFrame {
	return WorldFrame{Size: 200, Scale: 8}
}

// Cells holds integer world-grid coordinates as parallel slices.
type Cells struct {
	X []int
	Y []int
}

// Len returns the number of cells.
func (c Cells) Len() int { return len(c.X) }

// ToWorld rotates, translates, rounds and clips one rover-centric point.
// Values beyond the grid saturate at the edge, they are never rejected.
func (w WorldFrame) ToWorld(x, y float64, pose Pose) (int, int) {
	rx, ry := Rotate(x, y, pose.YawDeg)
	tx, ty := Translate(rx, ry, pose.X, pose.Y, w.Scale)
	return w.clip(tx), w.clip(ty)
}

// PointsToWorld applies ToWorld to every point in ps.
func (w WorldFrame) PointsToWorld(ps PointSet, pose Pose) Cells {
	cells := Cells{X: make([]int, ps.Len()), Y: make([]int, ps.Len())}
	for i := range ps.X {
		cells.X[i], cells.Y[i] = w.ToWorld(ps.X[i], ps.Y[i], pose)
	}
	return cells
}

func (w WorldFrame) clip(v float64) int {
	hi := float64(w.Size - 1)
	r := math.Round(v)
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r > hi:
		return w.Size - 1
	}
	return int(r)
}
