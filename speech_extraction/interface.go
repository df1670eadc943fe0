package speech_extraction

import "canopus/frame_processor"

// Interface persists speech segments for inspecting what the VAD extracted.
type Interface interface {
	Save(segment frame_processor.Segment) (string, error)
}
