package audio

import "testing"

func constantFrame(n int, amplitude int16) []int16 {
	frame := make([]int16, n)
	for i := range frame {
		frame[i] = amplitude
	}
	return frame
}

func TestSpeechDetector_Speech(t *testing.T) {
	d := NewSpeechDetector(nil)
	loud := constantFrame(960, 5000)

	for i := 0; i < 5; i++ {
		if !d.Process(loud) {
			t.Errorf("Expected speech on frame %d", i)
		}
	}

	s := d.Summary()
	if s.Segments != 1 || s.SpeechFrames != 5 || s.Frames != 5 {
		t.Errorf("Unexpected summary %+v", s)
	}
	if s.PeakRMS != 5000 {
		t.Errorf("Expected peak RMS 5000, got %f", s.PeakRMS)
	}
}

func TestSpeechDetector_Silence(t *testing.T) {
	d := NewSpeechDetector(nil)
	quiet := constantFrame(960, 10)

	for i := 0; i < 15; i++ {
		if d.Process(quiet) {
			t.Errorf("Expected no speech on frame %d", i)
		}
	}
	if !d.Summary().Silent() {
		t.Error("Expected a silent summary")
	}
}

func TestSpeechDetector_HangoverSplitsSegments(t *testing.T) {
	d := NewSpeechDetector(&SpeechConfig{EnergyThreshold: 500, HangoverFrames: 3})
	loud := constantFrame(960, 5000)
	quiet := constantFrame(960, 0)

	d.Process(loud)
	// a short pause keeps the segment open
	d.Process(quiet)
	d.Process(quiet)
	if !d.Process(loud) {
		t.Fatal("Expected speech to resume within the hangover")
	}
	for i := 0; i < 3; i++ {
		d.Process(quiet)
	}
	d.Process(loud)

	if got := d.Summary().Segments; got != 2 {
		t.Errorf("Expected 2 segments, got %d", got)
	}
}

func TestSpeechDetector_Reset(t *testing.T) {
	d := NewSpeechDetector(nil)
	d.Process(constantFrame(960, 5000))
	d.Reset()

	if s := d.Summary(); s != (SpeechSummary{}) {
		t.Errorf("Expected empty summary after reset, got %+v", s)
	}
}
