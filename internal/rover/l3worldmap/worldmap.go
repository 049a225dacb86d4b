package l3worldmap

import (
	"github.com/banshee-data/rover.nav/internal/rover/l2coords"
)

// CellValue is the evidence written to a channel when a class is observed.
const CellValue = 200

// Cell holds the three evidence channels of one world-grid square.
type Cell struct {
	Obstacle  float32
	Sample    float32
	Navigable float32
}

// WorldMap is the mission-long square grid indexed as [y][x]. It is owned by
// a single goroutine and is never reset during a mission.
type WorldMap struct {
	size   int
	cutoff float64
	cells  []Cell

	// ChangesSinceSnapshot counts cell channel writes that altered a value
	// since the last successful Persist.
	ChangesSinceSnapshot int
	// SnapshotCount is the number of successful Persist calls.
	SnapshotCount int
}

// New returns an empty size x size map. A cell counts as mapped when its
// navigable evidence exceeds cutoff.
func New(size int, cutoff float64) *WorldMap {
	if size < 1 {
		size = 1
	}
	return &WorldMap{size: size, cutoff: cutoff, cells: make([]Cell, size*size)}
}

// Size returns the side length of the grid.
func (m *WorldMap) Size() int { return m.size }

// Cutoff returns the navigable evidence threshold used for coverage.
func (m *WorldMap) Cutoff() float64 { return m.cutoff }

// At returns the cell at column x, row y.
func (m *WorldMap) At(x, y int) Cell {
	return m.cells[y*m.size+x]
}

// Cells returns a copy of the grid in row-major order.
func (m *WorldMap) Cells() []Cell {
	out := make([]Cell, len(m.cells))
	copy(out, m.cells)
	return out
}

// Update folds one cycle of classified cells into the map. The order is
// fixed: obstacles are marked, then cleared wherever terrain was seen,
// then samples and terrain are marked. Terrain therefore wins over obstacle
// in the same cycle, and applying the same input twice leaves the map as it was.
func (m *WorldMap) Update(obstacles, samples, navigable l2coords.Cells) {
	changed := 0
	changed += m.write(obstacles, func(c *Cell) *float32 { return &c.Obstacle }, CellValue)
	changed += m.write(navigable, func(c *Cell) *float32 { return &c.Obstacle }, 0)
	changed += m.write(samples, func(c *Cell) *float32 { return &c.Sample }, CellValue)
	changed += m.write(navigable, func(c *Cell) *float32 { return &c.Navigable }, CellValue)
	m.ChangesSinceSnapshot += changed

	tracef("update: obstacles=%d samples=%d navigable=%d changed=%d",
		obstacles.Len(), samples.Len(), navigable.Len(), changed)
}

func (m *WorldMap) write(cells l2coords.Cells, channel func(*Cell) *float32, v float32) int {
	changed := 0
	for i := range cells.X {
		x, y := cells.X[i], cells.Y[i]
		if x < 0 || y < 0 || x >= m.size || y >= m.size {
			continue
		}
		p := channel(&m.cells[y*m.size+x])
		if *p != v {
			*p = v
			changed++
		}
	}
	return changed
}

// MappedPercentage returns 100 * (cells with navigable evidence above the
// cutoff) / size^2.
func (m *WorldMap) MappedPercentage() float64 {
	n := 0
	for i := range m.cells {
		if float64(m.cells[i].Navigable) > m.cutoff {
			n++
		}
	}
	return 100 * float64(n) / float64(len(m.cells))
}

// Stats summarizes per-channel occupancy.
type Stats struct {
	Size             int     `json:"size"`
	ObstacleCells    int     `json:"obstacle_cells"`
	SampleCells      int     `json:"sample_cells"`
	NavigableCells   int     `json:"navigable_cells"`
	MappedPercentage float64 `json:"mapped_percentage"`
}

// Stats counts the cells with non-zero evidence in each channel.
func (m *WorldMap) Stats() Stats {
	s := Stats{Size: m.size}
	mapped := 0
	for i := range m.cells {
		c := m.cells[i]
		if c.Obstacle > 0 {
			s.ObstacleCells++
		}
		if c.Sample > 0 {
			s.SampleCells++
		}
		if c.Navigable > 0 {
			s.NavigableCells++
		}
		if float64(c.Navigable) > m.cutoff {
			mapped++
		}
	}
	s.MappedPercentage = 100 * float64(mapped) / float64(len(m.cells))
	return s
}
