package audio

// SpeechConfig holds the energy gate used to spot speech in captured frames
type SpeechConfig struct {
	EnergyThreshold float64 // RMS above which a frame counts as speech
	HangoverFrames  int     // consecutive quiet frames that end a segment
}

// DefaultSpeechConfig returns a gate tuned for 20ms capture frames
func DefaultSpeechConfig() *SpeechConfig {
	return &SpeechConfig{
		EnergyThreshold: 500.0,
		HangoverFrames:  10, // 200ms of 20ms frames
	}
}

// SpeechSummary describes the activity seen over a whole recording
type SpeechSummary struct {
	Frames       int
	SpeechFrames int
	Segments     int
	PeakRMS      float64
}

// Silent reports whether no frame crossed the gate
func (s SpeechSummary) Silent() bool { return s.SpeechFrames == 0 }

// SpeechDetector tracks speech segments frame by frame. It is not safe for
// concurrent use.
type SpeechDetector struct {
	config   *SpeechConfig
	quiet    int
	speaking bool
	summary  SpeechSummary
}

// NewSpeechDetector creates a detector; nil selects the default gate
func NewSpeechDetector(config *SpeechConfig) *SpeechDetector {
	if config == nil {
		config = DefaultSpeechConfig()
	}
	return &SpeechDetector{config: config}
}

// Process feeds one frame and reports whether a segment is open afterwards.
func (d *SpeechDetector) Process(frame []int16) bool {
	rms := CalculateRMS(frame)
	d.summary.Frames++
	if rms > d.summary.PeakRMS {
		d.summary.PeakRMS = rms
	}

	if rms > d.config.EnergyThreshold {
		d.summary.SpeechFrames++
		d.quiet = 0
		if !d.speaking {
			d.speaking = true
			d.summary.Segments++
		}
		return true
	}

	d.quiet++
	if d.speaking && d.quiet >= d.config.HangoverFrames {
		d.speaking = false
		d.quiet = 0
	}
	return d.speaking
}

// Summary returns the activity seen so far
func (d *SpeechDetector) Summary() SpeechSummary { return d.summary }

// Reset forgets all frames
func (d *SpeechDetector) Reset() {
	d.quiet = 0
	d.speaking = false
	d.summary = SpeechSummary{}
}
