package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/rover.nav/internal/httputil"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// Series colours for the world map, matching the vision overlay channels.
var channelColors = map[string]string{
	"navigable": "#3b6fd8",
	"obstacle":  "#d62728",
	"sample":    "#f5e663",
}

// handleWorldMapChart renders every set world map cell as an XY scatter, one
// series per channel. Query params:
//   - max_points (optional; default 20000) caps the cells drawn per channel
func (ws *WebServer) handleWorldMapChart(w http.ResponseWriter, r *http.Request) {
	if ws.source == nil {
		httputil.ServiceUnavailable(w, "no mission running")
		return
	}

	maxPoints := 20000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 100000 {
			maxPoints = v
		}
	}

	cells, size := ws.source.MapSnapshot()
	if size == 0 || len(cells) != size*size {
		httputil.NotFound(w, "no world map available")
		return
	}

	var nav, obs, smp [][2]int
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := cells[y*size+x]
			if c.Navigable > 0 {
				nav = append(nav, [2]int{x, y})
			}
			if c.Obstacle > 0 {
				obs = append(obs, [2]int{x, y})
			}
			if c.Sample > 0 {
				smp = append(smp, [2]int{x, y})
			}
		}
	}

	st := ws.source.Status()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Rover World Map", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "World Map", Subtitle: fmt.Sprintf("mission=%s tick=%d mapped=%.1f%%", st.MissionID, st.Tick, st.MappedPercentage)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: size, Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: size, Name: "Y", NameLocation: "middle", NameGap: 30}),
	)

	addChannel := func(name string, pts [][2]int, symbol int) {
		data := downsample(pts, maxPoints)
		scatter.AddSeries(name, data,
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: symbol}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: channelColors[name]}),
		)
	}
	addChannel("navigable", nav, 3)
	addChannel("obstacle", obs, 3)
	addChannel("sample", smp, 8)

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	httputil.WriteHTML(w, buf.Bytes())
}

// handleMissionChart renders mapped percentage and samples collected per tick.
func (ws *WebServer) handleMissionChart(w http.ResponseWriter, r *http.Request) {
	if ws.plotter == nil {
		httputil.NotFound(w, "no mission history available")
		return
	}
	samples := ws.plotter.Samples()
	if len(samples) == 0 {
		httputil.NotFound(w, "no mission history available")
		return
	}

	ticks := make([]int64, len(samples))
	mapped := make([]opts.LineData, len(samples))
	collected := make([]opts.LineData, len(samples))
	for i, s := range samples {
		ticks[i] = s.Tick
		mapped[i] = opts.LineData{Value: math.Round(s.MappedPercentage*10) / 10}
		collected[i] = opts.LineData{Value: s.SamplesCollected}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Mission Progress", Subtitle: fmt.Sprintf("ticks=%d", len(samples))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Tick"}),
	)
	line.SetXAxis(ticks).
		AddSeries("mapped %", mapped).
		AddSeries("samples collected", collected)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(line)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("render error: %v", err))
		return
	}

	httputil.WriteHTML(w, buf.Bytes())
}

// downsample strides pts to stay within maxPoints.
func downsample(pts [][2]int, maxPoints int) []opts.ScatterData {
	stride := 1
	if len(pts) > maxPoints {
		stride = int(math.Ceil(float64(len(pts)) / float64(maxPoints)))
	}
	data := make([]opts.ScatterData, 0, len(pts)/stride+1)
	for i := 0; i < len(pts); i += stride {
		data = append(data, opts.ScatterData{Value: []interface{}{pts[i][0], pts[i][1]}})
	}
	return data
}
