package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/go-stomp/stomp/v3/frame"
)

// Encode serializes f into a single NUL-terminated text frame.
func Encode(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

// Decode parses every frame in data, in order. Heart-beat EOLs around and
// between frames are skipped, so a message made only of EOLs yields no
// frames. When a frame is malformed, the frames decoded before it are
// returned together with the error.
func Decode(data []byte) ([]*Frame, error) {
	if len(bytes.Trim(data, "\r\n")) == 0 {
		return nil, nil
	}

	var frames []*Frame
	r := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			if !endsOnFrame(data) {
				return frames, fmt.Errorf("%w: truncated frame", ErrMalformedFrame)
			}
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if f == nil {
			// Heart-beat EOL
			continue
		}
		if _, ok := knownCommands[f.Command]; !ok {
			return frames, fmt.Errorf("%w: %q", ErrUnknownCommand, f.Command)
		}
		frames = append(frames, f)
	}
}

// endsOnFrame reports whether data stops at a frame boundary: a NUL
// terminator followed by nothing but EOLs.
func endsOnFrame(data []byte) bool {
	trimmed := bytes.TrimRight(data, "\r\n")
	return len(trimmed) > 0 && trimmed[len(trimmed)-1] == 0
}
