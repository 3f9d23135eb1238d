package util

import (
	"encoding/json"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeMediaDuration 通过ffprobe读取媒体时长（秒），失败时返回0
func ProbeMediaDuration(path string) int {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0
	}
	var info probeFormat
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(info.Format.Duration, 64)
	if err != nil {
		return 0
	}
	return int(seconds + 0.5)
}
