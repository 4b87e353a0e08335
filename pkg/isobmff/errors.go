package isobmff

import (
	"errors"
	"fmt"
)

// ErrParsing is the base class of all container parse failures; RangeError
// and BoxNotFoundError unwrap to it.
var ErrParsing = errors.New("isobmff: parsing error")

// ErrSizeUnstable reports that re-encoding moov with resolved sample offsets
// changed its length between the two builder passes. It indicates an encoding
// that is not size-stable under offset-value changes, which is an internal
// logic bug; the write must be aborted.
var ErrSizeUnstable = errors.New("isobmff: moov size changed between passes")

// RangeError reports a declared box or field size exceeding the bytes
// available in the enclosing box or stream. It always indicates a truncated
// or corrupt container and is never retried.
type RangeError struct {
	Requested int64
	Remaining int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("request %d bytes but %d bytes remain", e.Requested, e.Remaining)
}

func (e *RangeError) Unwrap() error { return ErrParsing }

// BoxNotFoundError reports that a box required for the operation is absent.
type BoxNotFoundError struct {
	Path string
}

func (e *BoxNotFoundError) Error() string {
	return fmt.Sprintf("unable to find box at path %s", e.Path)
}

func (e *BoxNotFoundError) Unwrap() error { return ErrParsing }
