package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/banshee-data/rover.nav/internal/fsutil"
	"github.com/banshee-data/rover.nav/internal/rover/l4decision"
	"github.com/banshee-data/rover.nav/internal/security"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLoadSession(t *testing.T) {
	t.Parallel()
	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile(filepath.Join("s", SessionFile), []byte(`
{"t": 0, "pos": [99.5, 85.2], "yaw": 10, "vel": 0.1, "frame": "img/0.png"}

{"t": 0.5, "pos": [99.7, 85.3], "yaw": 11, "vel": 0.4, "near_sample": true, "picking_up": false}
`))

	s, err := LoadSession(fs, "s")
	require.NoError(t, err)
	want := []Record{
		{T: 0, Pos: [2]float64{99.5, 85.2}, Yaw: 10, Vel: 0.1, Frame: "img/0.png"},
		{T: 0.5, Pos: [2]float64{99.7, 85.3}, Yaw: 11, Vel: 0.4, NearSample: true},
	}
	if diff := cmp.Diff(want, s.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 500*time.Millisecond, s.Records[1].Offset())
}

func TestLoadSession_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content string
		write   bool
		wantErr error
	}{
		{name: "missing file"},
		{name: "empty", content: "\n\n", write: true, wantErr: ErrEmptySession},
		{name: "bad json", content: `{"t": 0}` + "\n{bad\n", write: true},
		{name: "time goes backwards", content: `{"t": 2}` + "\n" + `{"t": 1}` + "\n", write: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := fsutil.NewMemoryFileSystem()
			if tt.write {
				fs.WriteFile(filepath.Join("s", SessionFile), []byte(tt.content))
			}
			_, err := LoadSession(fs, "s")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestSession_FrameFormats(t *testing.T) {
	t.Parallel()
	img := solidImage(8, 4, color.RGBA{R: 210, G: 170, B: 60, A: 255})
	var bmpBuf bytes.Buffer
	require.NoError(t, bmp.Encode(&bmpBuf, img))

	fs := fsutil.NewMemoryFileSystem()
	fs.WriteFile("s/a.png", encodePNG(t, img))
	fs.WriteFile("s/b.bmp", bmpBuf.Bytes())
	fs.WriteFile("s/c.png", []byte("not an image"))
	s := &Session{fs: fs, Dir: "s", Records: []Record{
		{Frame: "a.png"}, {Frame: "b.bmp"}, {}, {Frame: "c.png"}, {Frame: "missing.png"}, {Frame: "../a.png"},
	}}

	for i := 0; i < 2; i++ {
		f, err := s.Frame(i)
		require.NoError(t, err)
		require.NotNil(t, f)
		assert.Equal(t, 8, f.Width)
		assert.Equal(t, 4, f.Height)
		r, g, b := f.At(3, 2)
		assert.Equal(t, [3]uint8{210, 170, 60}, [3]uint8{r, g, b})
	}

	f, err := s.Frame(2)
	require.NoError(t, err)
	assert.Nil(t, f, "record without a frame")

	_, err = s.Frame(3)
	assert.Error(t, err)
	_, err = s.Frame(4)
	assert.Error(t, err)
	_, err = s.Frame(5)
	assert.ErrorIs(t, err, security.ErrPathTraversal)
}

func TestSession_Input(t *testing.T) {
	t.Parallel()
	s := &Session{fs: fsutil.NewMemoryFileSystem(), Records: []Record{
		{Pos: [2]float64{1, 2}, Yaw: 30, Vel: 1.5, NearSample: true, PickingUp: true},
	}}
	in, err := s.Input(0)
	require.NoError(t, err)
	assert.Nil(t, in.Frame)
	assert.Equal(t, l4decision.Position{X: 1, Y: 2}, in.Pos)
	assert.Equal(t, 30.0, in.Yaw)
	assert.Equal(t, 1.5, in.Vel)
	assert.True(t, in.NearSample)
	assert.True(t, in.PickingUp)
}
