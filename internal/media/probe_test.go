package media

import (
	"errors"
	"testing"
)

const h264Probe = `{
	"format": {"duration": "42.500000"},
	"streams": [
		{"codec_type": "video", "codec_name": "h264"},
		{"codec_type": "audio", "codec_name": "aac"}
	]
}`

const prores = `{
	"format": {"duration": "10.000000"},
	"streams": [{"codec_type": "video", "codec_name": "prores"}]
}`

func TestParseProbeOutput(t *testing.T) {
	res, err := ParseProbeOutput("a.mp4", []byte(h264Probe))
	if err != nil {
		t.Fatalf("ParseProbeOutput: %v", err)
	}
	if res.Duration != 42.5 {
		t.Errorf("Duration = %v, want 42.5", res.Duration)
	}
	if res.VideoCodec != "h264" || res.AudioCodec != "aac" {
		t.Errorf("codecs = %q/%q, want h264/aac", res.VideoCodec, res.AudioCodec)
	}
}

func TestParseProbeOutputIncompatibleCodec(t *testing.T) {
	_, err := ParseProbeOutput("b.mov", []byte(prores))
	var codecErr *IncompatibleCodecError
	if !errors.As(err, &codecErr) {
		t.Fatalf("expected IncompatibleCodecError, got %v", err)
	}
	if codecErr.Codec != "prores" {
		t.Errorf("Codec = %q, want prores", codecErr.Codec)
	}
}

func TestParseProbeOutputMissingDuration(t *testing.T) {
	if _, err := ParseProbeOutput("c.mp4", []byte(`{"format":{},"streams":[]}`)); err == nil {
		t.Error("expected error for missing duration")
	}
}
