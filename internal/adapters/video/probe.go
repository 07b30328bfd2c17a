// Package video decodes broadcast videos and extracts single frames with ffmpeg.
package video

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Info describes the first video stream of a file.
type Info struct {
	Width  int
	Height int
	// Frames is the container's frame count, 0 when unknown.
	Frames int
	FPS    float64
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbFrames     string `json:"nb_frames"`
		AvgFrameRate string `json:"avg_frame_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe on path.
func Probe(path string) (Info, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return Info{}, fmt.Errorf("%w: probe %s: %v", ErrDecode, path, err)
	}
	return parseProbe(out)
}

func parseProbe(data string) (Info, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Info{}, fmt.Errorf("%w: parse probe output: %v", ErrDecode, err)
	}
	for _, s := range p.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return Info{}, fmt.Errorf("%w: video stream has no dimensions", ErrDecode)
		}
		frames, _ := strconv.Atoi(s.NbFrames)
		return Info{
			Width:  s.Width,
			Height: s.Height,
			Frames: frames,
			FPS:    parseRate(s.AvgFrameRate),
		}, nil
	}
	return Info{}, fmt.Errorf("%w: no video stream", ErrDecode)
}

// parseRate reads ffprobe's "num/den" rates.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
