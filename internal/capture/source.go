package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Source yields signed 16-bit little-endian PCM at the requested rate.
type Source interface {
	Open(ctx context.Context, sampleRate, channels int) (io.ReadCloser, error)
}

// FileSource reads PCM from a file or named pipe, typically fed by
// `arecord -t raw -f S16_LE -c 1 -r 48000 <path>`.
type FileSource struct {
	Path string
}

func (s FileSource) Open(ctx context.Context, sampleRate, channels int) (io.ReadCloser, error) {
	if s.Path == "" {
		return nil, errors.New("no capture source configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open capture source: %w", err)
	}
	return f, nil
}

// BufferSource replays a fixed PCM buffer on every open.
type BufferSource struct {
	PCM []byte
}

func (s BufferSource) Open(ctx context.Context, sampleRate, channels int) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.PCM)), nil
}
