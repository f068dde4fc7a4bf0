// Package media wraps ffprobe as the engine's media source provider: it
// resolves a source path to its decoded duration and stream codecs, and
// classifies codecs the runtime cannot decode.
package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult holds the subset of ffprobe output the engine cares about.
type ProbeResult struct {
	Duration   float64
	VideoCodec string
	AudioCodec string
}

// probeOutput mirrors the ffprobe JSON fields we read.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

// supportedVideoCodecs lists codecs the playback runtime can decode. Anything
// else raises an IncompatibleCodecError rather than a generic probe failure.
var supportedVideoCodecs = map[string]bool{
	"h264": true, "hevc": true, "vp8": true, "vp9": true, "av1": true, "mjpeg": true,
}

// IncompatibleCodecError identifies a source whose codec the runtime cannot
// decode. It carries the codec name so the error is user-visible per clip,
// never silently dropped.
type IncompatibleCodecError struct {
	Path  string
	Codec string
}

func (e *IncompatibleCodecError) Error() string {
	return fmt.Sprintf("media %s uses unsupported codec %q", e.Path, e.Codec)
}

// Probe runs ffprobe against filePath and returns duration plus codec info.
func Probe(filePath string) (*ProbeResult, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %v\nStderr: %s", filePath, err, stderr.String())
	}

	return ParseProbeOutput(filePath, stdout.Bytes())
}

// ParseProbeOutput decodes raw ffprobe JSON into a ProbeResult, enforcing the
// codec allowlist.
func ParseProbeOutput(filePath string, raw []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("error unmarshalling ffprobe output for %s: %v", filePath, err)
	}

	if out.Format.Duration == "" {
		return nil, fmt.Errorf("could not retrieve duration from ffprobe output for %s", filePath)
	}
	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("error parsing duration string %q: %v", out.Format.Duration, err)
	}

	result := &ProbeResult{Duration: duration}
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.VideoCodec == "" {
				result.VideoCodec = strings.ToLower(s.CodecName)
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = strings.ToLower(s.CodecName)
			}
		}
	}

	if result.VideoCodec != "" && !supportedVideoCodecs[result.VideoCodec] {
		return nil, &IncompatibleCodecError{Path: filePath, Codec: result.VideoCodec}
	}
	return result, nil
}
