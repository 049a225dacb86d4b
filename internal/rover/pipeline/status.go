package pipeline

import (
	"time"

	"github.com/banshee-data/rover.nav/internal/rover/l3worldmap"
	"github.com/banshee-data/rover.nav/internal/rover/l4decision"
)

// Status is the copy of mission state published after every tick.
type Status struct {
	MissionID        string              `json:"mission_id"`
	Tick             int64               `json:"tick"`
	Time             time.Time           `json:"time"`
	Mode             l4decision.Mode     `json:"mode"`
	Command          l4decision.Command  `json:"command"`
	Events           []l4decision.Event  `json:"events"`
	Pos              l4decision.Position `json:"pos"`
	Yaw              float64             `json:"yaw"`
	Vel              float64             `json:"vel"`
	SamplesCollected int                 `json:"samples_collected"`
	SampleVisible    bool                `json:"sample_visible"`
	Homecoming       bool                `json:"homecoming"`
	MissionComplete  bool                `json:"mission_complete"`
	TerrainPixels    int                 `json:"terrain_pixels"`
	SamplePixels     int                 `json:"sample_pixels"`
	MappedPercentage float64             `json:"mapped_percentage"`
	WorldSize        int                 `json:"world_size"`
	Map              l3worldmap.Stats    `json:"map"`
}

func (s Status) clone() Status {
	s.Events = append([]l4decision.Event(nil), s.Events...)
	return s
}

func (r *Runtime) publish(now time.Time, in Input, perc *Perception, mapped float64, o l4decision.Outcome) {
	st := r.nav.State()
	s := Status{
		MissionID:        r.missionID,
		Tick:             r.tick,
		Time:             now,
		Mode:             o.Mode,
		Command:          o.Command,
		Events:           append([]l4decision.Event(nil), o.Events...),
		Pos:              in.Pos,
		Yaw:              in.Yaw,
		Vel:              in.Vel,
		SamplesCollected: st.SamplesCollected,
		SampleVisible:    st.SampleVisible,
		Homecoming:       st.Homecoming,
		MissionComplete:  o.MissionComplete,
		MappedPercentage: mapped,
		WorldSize:        r.worldMap.Size(),
		Map:              r.worldMap.Stats(),
	}
	if perc != nil {
		s.TerrainPixels = perc.Terrain.Len()
		s.SamplePixels = perc.Samples.Len()
	}
	r.status = s
}

// Status returns a copy of the state published after the latest tick.
func (r *Runtime) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status.clone()
}

// MapSnapshot returns a copy of the world map cells and its side length.
func (r *Runtime) MapSnapshot() ([]l3worldmap.Cell, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.worldMap.Cells(), r.worldMap.Size()
}
