package audio

import (
	"bytes"
	"testing"
	"time"
)

func TestDecodeClip_WAV(t *testing.T) {
	samples := sineWave(8000, 440, 0.5, 0.5)
	clip, err := DecodeClip("audio/wav", EncodeWAV([][]float32{samples}, 8000))
	if err != nil {
		t.Fatalf("DecodeClip failed: %v", err)
	}
	if clip.Channels != 1 || clip.SampleRate != 8000 {
		t.Errorf("Unexpected format %d ch @ %d Hz", clip.Channels, clip.SampleRate)
	}
	if clip.Duration() != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", clip.Duration())
	}
	if !bytes.Equal(clip.WAV()[WAVHeaderSize:], clip.Data[WAVHeaderSize:]) {
		t.Error("Expected WAV rendering to reproduce the PCM payload")
	}
}

func TestDecodeClip_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		data     []byte
	}{
		{"empty", "audio/mp3", nil},
		{"garbage mp3", "audio/mp3", []byte("definitely not an mpeg stream")},
		{"unsupported type", "audio/ogg", []byte("OggS....")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeClip(tt.mimeType, tt.data); err == nil {
				t.Fatal("Expected error")
			}
		})
	}
}

func TestClipWAV_KeepsChannels(t *testing.T) {
	clip := &Clip{Samples: []int16{1, 2, 3, 4}, Channels: 2, SampleRate: 24000}
	h, err := ReadWAVHeader(clip.WAV())
	if err != nil {
		t.Fatalf("ReadWAVHeader failed: %v", err)
	}
	if h.NumChannels != 2 || h.BlockAlign != 4 || h.ByteRate != 96000 {
		t.Errorf("Unexpected header %+v", h)
	}
	if clip.Duration() != time.Second*2/24000 {
		t.Errorf("Unexpected duration %v", clip.Duration())
	}
}
