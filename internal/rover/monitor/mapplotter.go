package monitor

import (
	"fmt"
	"image/color"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/rover.nav/internal/fsutil"
	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
	"github.com/banshee-data/rover.nav/internal/rover/l4decision"
	"github.com/banshee-data/rover.nav/internal/rover/pipeline"
)

// Output file names written by GeneratePlots.
const (
	MissionPlotFile  = "mission_mapped.png"
	WorldMapPlotFile = "worldmap.png"
)

// StatusSource is the read side of a running mission.
type StatusSource interface {
	Status() pipeline.Status
	MapSnapshot() ([]l3worldmap.Cell, int)
}

// MissionSample is one tick's worth of mission progress.
type MissionSample struct {
	Tick             int64
	Time             time.Time
	MappedPercentage float64
	SamplesCollected int
	Mode             l4decision.Mode
}

// MapPlotter records mission progress over a run and renders PNG plots of
// mapped percentage and the final world map.
type MapPlotter struct {
	mu        sync.Mutex
	fs        fsutil.FileSystem
	enabled   bool
	outputDir string

	samples []MissionSample

	// source of the last sample; its map is copied only when plotting
	source StatusSource
}

// NewMapPlotter creates a plotter writing through fs. A nil fs writes to disk.
func NewMapPlotter(fs fsutil.FileSystem) *MapPlotter {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &MapPlotter{fs: fs}
}

// Start initializes the plotter for a new run.
func (mp *MapPlotter) Start(outputDir string) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if err := mp.fs.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	mp.outputDir = outputDir
	mp.enabled = true
	mp.samples = nil
	mp.source = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (mp *MapPlotter) Stop() {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.enabled = false
}

// Sample records the latest status from src.
func (mp *MapPlotter) Sample(src StatusSource) {
	if src == nil {
		return
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if !mp.enabled {
		return
	}

	st := src.Status()
	if st.Tick == 0 {
		return
	}
	if n := len(mp.samples); n > 0 && mp.samples[n-1].Tick == st.Tick {
		return
	}
	mp.samples = append(mp.samples, MissionSample{
		Tick:             st.Tick,
		Time:             st.Time,
		MappedPercentage: st.MappedPercentage,
		SamplesCollected: st.SamplesCollected,
		Mode:             st.Mode,
	})
	mp.source = src
}

// Samples returns a copy of the recorded mission samples.
func (mp *MapPlotter) Samples() []MissionSample {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]MissionSample(nil), mp.samples...)
}

// GeneratePlots writes the mission PNG and a PNG of the world map as the
// last sampled source holds it now.
// Returns the number of plots generated and any error.
func (mp *MapPlotter) GeneratePlots() (int, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(mp.samples) == 0 {
		return 0, nil
	}

	count := 0
	if err := mp.generateMissionPlot(); err != nil {
		return count, fmt.Errorf("mission plot: %w", err)
	}
	count++

	if mp.source == nil {
		return count, nil
	}
	cells, size := mp.source.MapSnapshot()
	if size > 0 && len(cells) == size*size {
		if err := mp.generateWorldMapPlot(cells, size); err != nil {
			return count, fmt.Errorf("world map plot: %w", err)
		}
		count++
	}
	return count, nil
}

func (mp *MapPlotter) generateMissionPlot() error {
	p := plot.New()
	p.Title.Text = "Mission Progress"
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Value"

	mapped := make(plotter.XYs, 0, len(mp.samples))
	collected := make(plotter.XYs, 0, len(mp.samples))
	var stuck plotter.XYs
	for _, s := range mp.samples {
		x := float64(s.Tick)
		mapped = append(mapped, plotter.XY{X: x, Y: s.MappedPercentage})
		collected = append(collected, plotter.XY{X: x, Y: float64(s.SamplesCollected)})
		if s.Mode == l4decision.ModeStuck {
			stuck = append(stuck, plotter.XY{X: x, Y: s.MappedPercentage})
		}
	}

	mappedLine, err := plotter.NewLine(mapped)
	if err != nil {
		return err
	}
	mappedLine.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	mappedLine.Width = vg.Points(1.5)
	p.Add(mappedLine)
	p.Legend.Add("mapped %", mappedLine)

	collectedLine, err := plotter.NewLine(collected)
	if err != nil {
		return err
	}
	collectedLine.Color = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	collectedLine.Width = vg.Points(1.5)
	p.Add(collectedLine)
	p.Legend.Add("samples collected", collectedLine)

	if len(stuck) > 0 {
		sc, err := plotter.NewScatter(stuck)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add("stuck", sc)
	}

	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10

	return mp.save(p, 14*vg.Inch, 6*vg.Inch, MissionPlotFile)
}

func (mp *MapPlotter) generateWorldMapPlot(cells []l3worldmap.Cell, size int) error {
	p := plot.New()
	p.Title.Text = "World Map"
	p.X.Label.Text = "X (cells)"
	p.Y.Label.Text = "Y (cells)"

	hm := plotter.NewHeatMap(navigableGrid{cells: cells, size: size}, palette.Heat(12, 1))
	hm.Min = 0
	hm.Max = l3worldmap.CellValue
	p.Add(hm)

	var obstacles, samples plotter.XYs
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := cells[y*size+x]
			if c.Obstacle > 0 {
				obstacles = append(obstacles, plotter.XY{X: float64(x), Y: float64(y)})
			}
			if c.Sample > 0 {
				samples = append(samples, plotter.XY{X: float64(x), Y: float64(y)})
			}
		}
	}

	if len(obstacles) > 0 {
		sc, err := plotter.NewScatter(obstacles)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 200, A: 255}
		sc.GlyphStyle.Radius = vg.Points(0.8)
		p.Add(sc)
		p.Legend.Add("obstacle", sc)
	}
	if len(samples) > 0 {
		sc, err := plotter.NewScatter(samples)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = color.RGBA{R: 255, G: 255, B: 200, A: 255}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add("sample", sc)
	}

	p.X.Min, p.X.Max = 0, float64(size)
	p.Y.Min, p.Y.Max = 0, float64(size)
	p.Legend.Top = true

	return mp.save(p, 8*vg.Inch, 8*vg.Inch, WorldMapPlotFile)
}

func (mp *MapPlotter) save(p *plot.Plot, w, h vg.Length, name string) error {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	f, err := mp.fs.Create(filepath.Join(mp.outputDir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := wt.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// navigableGrid exposes the navigable channel as a plotter.GridXYZ.
type navigableGrid struct {
	cells []l3worldmap.Cell
	size  int
}

func (g navigableGrid) Dims() (c, r int)   { return g.size, g.size }
func (g navigableGrid) Z(c, r int) float64 { return float64(g.cells[r*g.size+c].Navigable) }
func (g navigableGrid) X(c int) float64    { return float64(c) }
func (g navigableGrid) Y(r int) float64    { return float64(r) }
