package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// WAVHeaderSize is the size of the canonical RIFF/WAVE header.
	WAVHeaderSize = 44

	wavFormatPCM   = 1
	wavFormatFloat = 3
	bitsPerSample  = 16
)

// WAVHeader is the canonical 44-byte header layout expected by the speech backend.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data size
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * BlockAlign
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // number of bytes in the data
}

func newWAVHeader(channels, sampleRate, dataSize int) WAVHeader {
	blockAlign := uint16(channels * bitsPerSample / 8)
	return WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + dataSize),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   wavFormatPCM,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(blockAlign),
		BlockAlign:    blockAlign,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(dataSize),
	}
}

// EncodeWAV renders per-channel float samples as a mono 16-bit PCM WAV stream.
// Multi-channel input is averaged down to one channel. Each sample is clamped
// to [-1, 1] and scaled by 32768 when negative or 32767 otherwise, truncating
// toward zero. The output is a pure function of its inputs.
func EncodeWAV(samples [][]float32, sampleRate int) []byte {
	mono := Downmix(samples)
	dataSize := len(mono) * 2

	out := make([]byte, WAVHeaderSize+dataSize)
	putHeader(out, newWAVHeader(1, sampleRate, dataSize))

	offset := WAVHeaderSize
	for _, s := range mono {
		binary.LittleEndian.PutUint16(out[offset:], uint16(FloatToPCM16(s)))
		offset += 2
	}
	return out
}

// encodePCM16WAV renders already-interleaved 16-bit samples, keeping the channel count.
func encodePCM16WAV(interleaved []int16, channels, sampleRate int) []byte {
	dataSize := len(interleaved) * 2
	out := make([]byte, WAVHeaderSize+dataSize)
	putHeader(out, newWAVHeader(channels, sampleRate, dataSize))
	for i, s := range interleaved {
		binary.LittleEndian.PutUint16(out[WAVHeaderSize+i*2:], uint16(s))
	}
	return out
}

func putHeader(out []byte, h WAVHeader) {
	copy(out[0:4], h.ChunkID[:])
	binary.LittleEndian.PutUint32(out[4:8], h.ChunkSize)
	copy(out[8:12], h.Format[:])
	copy(out[12:16], h.Subchunk1ID[:])
	binary.LittleEndian.PutUint32(out[16:20], h.Subchunk1Size)
	binary.LittleEndian.PutUint16(out[20:22], h.AudioFormat)
	binary.LittleEndian.PutUint16(out[22:24], h.NumChannels)
	binary.LittleEndian.PutUint32(out[24:28], h.SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], h.ByteRate)
	binary.LittleEndian.PutUint16(out[32:34], h.BlockAlign)
	binary.LittleEndian.PutUint16(out[34:36], h.BitsPerSample)
	copy(out[36:40], h.Subchunk2ID[:])
	binary.LittleEndian.PutUint32(out[40:44], h.Subchunk2Size)
}

// ReadWAVHeader parses the canonical header at the start of data.
func ReadWAVHeader(data []byte) (WAVHeader, error) {
	var h WAVHeader
	if len(data) < WAVHeaderSize {
		return h, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &h); err != nil {
		return h, fmt.Errorf("failed to read WAV header: %w", err)
	}
	return h, nil
}

type wavData struct {
	format     uint16
	channels   int
	sampleRate int
	bits       int
	data       []byte
}

// parseWAV walks the RIFF chunk list; unlike ReadWAVHeader it tolerates
// extra chunks (LIST, fact) between "fmt " and "data".
func parseWAV(data []byte) (*wavData, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("missing RIFF/WAVE signature")
	}

	var w wavData
	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			return nil, fmt.Errorf("chunk %q overruns data (%d bytes at %d)", id, size, body)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("fmt chunk too short: %d bytes", size)
			}
			w.format = binary.LittleEndian.Uint16(data[body:])
			w.channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			w.sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			w.bits = int(binary.LittleEndian.Uint16(data[body+14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("data chunk before fmt chunk")
			}
			w.data = data[body : body+size]
			return &w, nil
		}

		pos = body + size + size%2 // chunks are word aligned
	}
	return nil, fmt.Errorf("missing data chunk")
}

// decodeWAV converts PCM16 or float32 WAV into per-channel float buffers.
func decodeWAV(container []byte) (Buffer, error) {
	w, err := parseWAV(container)
	if err != nil {
		return Buffer{}, decodeError("wav: %v", err)
	}
	if w.channels < 1 || w.sampleRate <= 0 {
		return Buffer{}, decodeError("wav: invalid format (%d channels, %d Hz)", w.channels, w.sampleRate)
	}

	var samples []float32
	switch {
	case w.format == wavFormatPCM && w.bits == 16:
		samples = PCM16ToFloat(bytesToPCM16(w.data))
	case w.format == wavFormatFloat && w.bits == 32:
		samples = make([]float32, len(w.data)/4)
		for i := range samples {
			samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(w.data[i*4:]))
		}
	default:
		return Buffer{}, decodeError("wav: unsupported encoding (format %d, %d bits)", w.format, w.bits)
	}

	return Buffer{Channels: Deinterleave(samples, w.channels), SampleRate: w.sampleRate}, nil
}

func bytesToPCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
