package daemon

import (
	"voxd/config"
	"voxd/pipeline"
	"voxd/vad"
)

func vadSegmenter(cfg config.Config) (pipeline.Segmenter, error) {
	return vad.New(vad.Config{
		SampleRate:     cfg.Audio.SampleRate,
		Aggressiveness: cfg.VAD.Aggressiveness,
		SilenceS:       cfg.VAD.SilenceS,
		MinSegmentS:    cfg.VAD.MinSegmentS,
		MaxSegmentS:    cfg.VAD.MaxSegmentS,
	})
}
