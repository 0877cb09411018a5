package detect

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrEndOfStream is returned by a Source when no more frames will arrive.
var ErrEndOfStream = errors.New("detect: end of stream")

// Source supplies detection frames in order. Implementations must deliver
// frame N completely before frame N+1 is requested; the pipeline processes
// frames strictly sequentially.
type Source interface {
	// Next returns the next frame, or ErrEndOfStream when the stream ends.
	Next() (Frame, error)
	Close() error
}

// FileSource replays detections from a JSONL file: one Frame object per
// line. This mirrors the record-and-replay workflow used for tuning; a live
// detector satisfies the same Source interface.
type FileSource struct {
	f       *os.File
	scanner *bufio.Scanner
	line    int
}

// OpenFile opens a JSONL detection recording for replay.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open detections file: %w", err)
	}
	sc := bufio.NewScanner(f)
	// Frames with embeddings can exceed the default 64 KiB token size.
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	return &FileSource{f: f, scanner: sc}, nil
}

// Next parses the next non-empty line as a Frame.
func (s *FileSource) Next() (Frame, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var fr Frame
		if err := json.Unmarshal(raw, &fr); err != nil {
			return Frame{}, fmt.Errorf("parse detections line %d: %w", s.line, err)
		}
		return fr, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read detections file: %w", err)
	}
	return Frame{}, ErrEndOfStream
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	return s.f.Close()
}

var _ Source = (*FileSource)(nil)
var _ io.Closer = (*FileSource)(nil)

// SliceSource serves a fixed sequence of frames. Used by tests and by
// callers that buffer detector output themselves.
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource wraps frames in a Source.
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

func (s *SliceSource) Next() (Frame, error) {
	if s.pos >= len(s.frames) {
		return Frame{}, ErrEndOfStream
	}
	fr := s.frames[s.pos]
	s.pos++
	return fr, nil
}

func (s *SliceSource) Close() error { return nil }
