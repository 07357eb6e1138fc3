package models

// Segment is one transcript block with the audio time at which it becomes active
type Segment struct {
	Text             string  `json:"text"`
	StartTimeSeconds float64 `json:"startTimeSeconds"`
	Label            string  `json:"label"`
}

// ScrollTimingConfig maps an audio timeline to transcript segments
//
// StartTimeSeconds must be non-decreasing and the first segment must start at 0.
type ScrollTimingConfig struct {
	Segments             []Segment `json:"segments"`
	AudioDurationSeconds float64   `json:"audioDurationSeconds"`
}

// StartTimes returns the segment start times in order
func (c ScrollTimingConfig) StartTimes() []float64 {
	starts := make([]float64, len(c.Segments))
	for i, s := range c.Segments {
		starts[i] = s.StartTimeSeconds
	}
	return starts
}

// AudioState is the narration audio state reported by the client
type AudioState struct {
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Playing     bool    `json:"playing"`
}
