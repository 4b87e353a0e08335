package util

import (
	"errors"
	"fmt"
	"io"
)

// SlicedReadSeeker exposes exactly size bytes of a source stream starting at
// offset as an independent read-only seekable stream. Reads past the
// configured size report io.EOF. The source position is re-established on
// every Read, so several slices may share one underlying stream as long as
// they are not read concurrently.
type SlicedReadSeeker struct {
	source      io.ReadSeeker
	beginOffset int64
	relOffset   int64
	size        int64
}

func NewSlicedReadSeeker(source io.ReadSeeker, offset, size int64) (*SlicedReadSeeker, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	if size < 0 {
		return nil, fmt.Errorf("negative size %d", size)
	}
	return &SlicedReadSeeker{source: source, beginOffset: offset, size: size}, nil
}

func (s *SlicedReadSeeker) Read(p []byte) (int, error) {
	if s.relOffset >= s.size {
		return 0, io.EOF
	}
	if _, err := s.source.Seek(s.beginOffset+s.relOffset, io.SeekStart); err != nil {
		return 0, err
	}
	remaining := s.size - s.relOffset
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := s.source.Read(p)
	s.relOffset += int64(n)
	return n, err
}

func (s *SlicedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		if offset < 0 {
			return 0, fmt.Errorf("negative seek value %d", offset)
		}
		newOffset = offset
	case io.SeekCurrent:
		newOffset = max(0, s.relOffset+offset)
	case io.SeekEnd:
		newOffset = max(0, s.size+offset)
	default:
		return 0, errors.New("invalid whence")
	}
	s.relOffset = newOffset
	return s.relOffset, nil
}

// Size returns the configured slice length in bytes.
func (s *SlicedReadSeeker) Size() int64 { return s.size }
