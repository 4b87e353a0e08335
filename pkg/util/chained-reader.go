package util

import (
	"errors"
	"io"
)

// ErrNegativeSeek is returned for relative seeks backwards, which
// ChainedReadSeeker does not support.
var ErrNegativeSeek = errors.New("negative relative seek not supported")

// ChainedReadSeeker concatenates several independently seekable streams into
// one logical stream with a single absolute position. Every input stream must
// have its own seek cursor; construction rewinds each of them to offset 0.
type ChainedReadSeeker struct {
	streams []io.ReadSeeker
	// the beginning offset of the current stream within the chain
	beginOffset int64
	// offset accumulated past the end of the last stream
	offsetAfterSeekEnd int64
	// index of the current stream
	idx int
}

func NewChainedReadSeeker(streams ...io.ReadSeeker) (*ChainedReadSeeker, error) {
	for _, s := range streams {
		// required, otherwise inconsistent results when seeking back and forth
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return &ChainedReadSeeker{streams: streams}, nil
}

// seekNextStream moves past the end of the current stream and rewinds the
// next one.
func (c *ChainedReadSeeker) seekNextStream() error {
	if c.idx < len(c.streams) {
		ssize, err := c.streams[c.idx].Seek(0, io.SeekEnd)
		if err != nil {
			return err
		}
		c.idx++
		if c.idx < len(c.streams) {
			if _, err = c.streams[c.idx].Seek(0, io.SeekStart); err != nil {
				return err
			}
		}
		c.beginOffset += ssize
	}
	return nil
}

func (c *ChainedReadSeeker) Read(p []byte) (int, error) {
	total := 0
	for total < len(p) && c.idx < len(c.streams) {
		n, err := c.streams[c.idx].Read(p[total:])
		total += n
		if err == io.EOF {
			if err = c.seekNextStream(); err != nil {
				return total, err
			}
			continue
		}
		if err != nil {
			return total, err
		}
	}
	if total == 0 && c.idx >= len(c.streams) {
		return 0, io.EOF
	}
	return total, nil
}

func (c *ChainedReadSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		if offset < 0 {
			return 0, ErrNegativeSeek
		}
		for c.idx < len(c.streams) {
			s := c.streams[c.idx]
			co, err := s.Seek(0, io.SeekCurrent)
			if err != nil {
				return 0, err
			}
			eo, err := s.Seek(0, io.SeekEnd)
			if err != nil {
				return 0, err
			}
			if offset <= eo-co {
				if _, err = s.Seek(co+offset, io.SeekStart); err != nil {
					return 0, err
				}
				offset = 0
				break
			}
			if err = c.seekNextStream(); err != nil {
				return 0, err
			}
			offset -= eo - co
		}
		if offset > 0 {
			c.offsetAfterSeekEnd += offset
		}

	case io.SeekStart:
		c.idx = 0
		c.beginOffset = 0
		c.offsetAfterSeekEnd = 0
		if len(c.streams) > 0 {
			if _, err := c.streams[0].Seek(0, io.SeekStart); err != nil {
				return 0, err
			}
		}
		if offset != 0 {
			return c.Seek(offset, io.SeekCurrent)
		}

	case io.SeekEnd:
		c.idx = 0
		c.beginOffset = 0
		c.offsetAfterSeekEnd = 0
		for c.idx < len(c.streams) {
			if err := c.seekNextStream(); err != nil {
				return 0, err
			}
		}
		if offset != 0 {
			return c.Seek(offset, io.SeekCurrent)
		}

	default:
		return 0, errors.New("invalid whence")
	}

	return c.Tell()
}

// Tell reports the current absolute position within the chain.
func (c *ChainedReadSeeker) Tell() (int64, error) {
	var relOffset int64
	if c.idx < len(c.streams) {
		var err error
		relOffset, err = c.streams[c.idx].Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, err
		}
	} else {
		relOffset = c.offsetAfterSeekEnd
	}
	return c.beginOffset + relOffset, nil
}
