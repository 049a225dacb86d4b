package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/banshee-data/rover.nav/internal/fsutil"
	"github.com/banshee-data/rover.nav/internal/rover/l1vision"
	"github.com/banshee-data/rover.nav/internal/rover/l4decision"
	"github.com/banshee-data/rover.nav/internal/rover/pipeline"
	"github.com/banshee-data/rover.nav/internal/security"
)

// SessionFile is the telemetry log inside a session directory.
const SessionFile = "session.jsonl"

// ErrEmptySession is returned when a session log holds no records.
var ErrEmptySession = errors.New("session has no records")

// Record is one recorded telemetry line.
type Record struct {
	T          float64    `json:"t"` // seconds since session start
	Pos        [2]float64 `json:"pos"`
	Yaw        float64    `json:"yaw"`
	Vel        float64    `json:"vel"`
	NearSample bool       `json:"near_sample"`
	PickingUp  bool       `json:"picking_up"`
	Frame      string     `json:"frame,omitempty"` // relative to the session dir
}

// Offset returns the record time as a duration from session start.
func (r Record) Offset() time.Duration {
	return time.Duration(r.T * float64(time.Second))
}

// Session is a recorded drive: telemetry plus the camera frames it names.
type Session struct {
	fs      fsutil.FileSystem
	Dir     string
	Records []Record
}

// LoadSession reads dir/session.jsonl. Blank lines are skipped; record times
// must not go backwards.
func LoadSession(fs fsutil.FileSystem, dir string) (*Session, error) {
	path := filepath.Join(dir, SessionFile)
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	s := &Session{fs: fs, Dir: dir}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		if n := len(s.Records); n > 0 && rec.T < s.Records[n-1].T {
			return nil, fmt.Errorf("%s:%d: time %.3f before previous record %.3f", path, line, rec.T, s.Records[n-1].T)
		}
		s.Records = append(s.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(s.Records) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptySession)
	}
	return s, nil
}

// Frame decodes the camera image of record i, or returns nil if it has none.
// PNG, JPEG, BMP and TIFF are accepted.
func (s *Session) Frame(i int) (*l1vision.Frame, error) {
	name := s.Records[i].Frame
	if name == "" {
		return nil, nil
	}
	path, err := security.JoinWithin(s.Dir, name)
	if err != nil {
		return nil, fmt.Errorf("frame %s: %w", name, err)
	}
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", name, err)
	}
	tracef("decoded %s frame %s (%dx%d)", format, name, img.Bounds().Dx(), img.Bounds().Dy())
	return l1vision.FromImage(img), nil
}

// Input builds the runtime input for record i.
func (s *Session) Input(i int) (pipeline.Input, error) {
	frame, err := s.Frame(i)
	if err != nil {
		return pipeline.Input{}, err
	}
	r := s.Records[i]
	return pipeline.Input{
		Frame:      frame,
		Pos:        l4decision.Position{X: r.Pos[0], Y: r.Pos[1]},
		Yaw:        r.Yaw,
		Vel:        r.Vel,
		NearSample: r.NearSample,
		PickingUp:  r.PickingUp,
	}, nil
}
