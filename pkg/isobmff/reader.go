package isobmff

import (
	"fmt"
	"io"
	"strings"
)

// Header describes one parsed box header.
//
// aligned(8) class Box (unsigned int(32) boxtype) {
//   unsigned int(32) size;
//   unsigned int(32) type = boxtype;
//   if (size==1) {
//     unsigned int(64) largesize;
//   } else if (size==0) {
//     // box extends to end of file
//   }
// }
type Header struct {
	// bytes the header itself occupies (8 or 16; fewer at a truncated tail)
	HeaderSize int64
	Type       FourCC
	Size32     uint32
	// total box size including the header; 0 means the box extends to EOF
	BoxSize int64
	// payload bytes readable from the stream after the header, -1 if unknown
	Maxsize int64
}

// containerTypes lists the box types whose payload is a plain sequence of
// child boxes, with no leading fields.
var containerTypes = map[FourCC]bool{
	TypeMOOV: true,
	TypeTRAK: true,
	TypeEDTS: true,
	TypeMDIA: true,
	TypeMINF: true,
	TypeDINF: true,
	TypeSTBL: true,
	TypeUDTA: true,
}

func sizeRemain(size, bound int64) (int64, error) {
	if bound == -1 {
		return -1, nil
	}
	if size > bound {
		return 0, &RangeError{Requested: size, Remaining: bound}
	}
	return bound - size, nil
}

// ParseBoxHeader reads one box header at the current position. maxsize bounds
// how many bytes may be consumed from the stream (-1 for unbounded). With
// extendEOF set, a 32-bit size of zero is accepted as "extends to EOF";
// otherwise it fails the size check. A clean EOF before any header byte
// returns a zero Header with HeaderSize 0.
func ParseBoxHeader(r io.ReadSeeker, maxsize int64, extendEOF bool) (Header, error) {
	if maxsize < -1 {
		return Header{}, fmt.Errorf("invalid maxsize %d", maxsize)
	}

	read := func(n int64) ([]byte, error) {
		if maxsize != -1 && n > maxsize {
			n = maxsize
		}
		buf := make([]byte, n)
		got, err := io.ReadFull(r, buf)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			err = nil
		}
		if maxsize != -1 {
			maxsize -= int64(got)
		}
		return buf[:got], err
	}

	offsetStart, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return Header{}, err
	}

	b, err := read(4)
	if err != nil {
		return Header{}, err
	}
	size32 := uint32(beUint(b))

	b, err = read(4)
	if err != nil {
		return Header{}, err
	}
	var boxType FourCC
	copy(boxType[:], b)

	boxSize := int64(size32)
	if size32 == 1 {
		b, err = read(8)
		if err != nil {
			return Header{}, err
		}
		boxSize = int64(beUint(b))
	}

	offsetEnd, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return Header{}, err
	}
	headerSize := offsetEnd - offsetStart
	if headerSize == 0 {
		return Header{}, nil
	}

	h := Header{
		HeaderSize: headerSize,
		Type:       boxType,
		Size32:     size32,
		BoxSize:    boxSize,
	}
	if extendEOF && size32 == 0 {
		h.Maxsize = maxsize
		return h, nil
	}
	dataSize, err := sizeRemain(headerSize, boxSize)
	if err != nil {
		return Header{}, err
	}
	if maxsize != -1 && dataSize > maxsize {
		return Header{}, &RangeError{Requested: dataSize, Remaining: maxsize}
	}
	h.Maxsize = dataSize
	return h, nil
}

// beUint interprets up to 8 bytes as a big-endian unsigned integer. Short
// slices from a truncated stream decode as the bytes present.
func beUint(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// BoxCallback receives each visited box. The stream is positioned at the
// start of the payload and the callback may consume up to Header.Maxsize
// bytes; the walker restores the position afterwards. Returning false stops
// the walk.
type BoxCallback func(h Header, r io.ReadSeeker) (bool, error)

// ParseBoxes iterates the sibling boxes at the current stream position.
// extendEOF permits a final zero-sized box spanning the rest of the input
// and is only meaningful at the top level of a file.
func ParseBoxes(r io.ReadSeeker, maxsize int64, extendEOF bool, fn BoxCallback) error {
	_, err := parseBoxes(r, maxsize, extendEOF, fn)
	return err
}

func parseBoxes(r io.ReadSeeker, maxsize int64, extendEOF bool, fn BoxCallback) (bool, error) {
	for maxsize == -1 || maxsize > 0 {
		offset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return false, err
		}
		h, err := ParseBoxHeader(r, maxsize, extendEOF)
		if err != nil {
			return false, err
		}
		if h.HeaderSize == 0 {
			break
		}
		cont, err := fn(h, r)
		if err != nil {
			return false, err
		}
		if !cont {
			return true, nil
		}
		if extendEOF && h.Size32 == 0 {
			// last box, extends to EOF
			if maxsize == -1 {
				if _, err = r.Seek(0, io.SeekEnd); err != nil {
					return false, err
				}
			} else {
				if _, err = r.Seek(offset+maxsize, io.SeekStart); err != nil {
					return false, err
				}
			}
			maxsize = 0
		} else {
			if _, err = r.Seek(offset+h.BoxSize, io.SeekStart); err != nil {
				return false, err
			}
			if maxsize, err = sizeRemain(h.BoxSize, maxsize); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

// BoxDepthCallback is BoxCallback with the nesting depth of the visited box,
// 0 for the level iteration started at.
type BoxDepthCallback func(h Header, depth int, r io.ReadSeeker) (bool, error)

// ParseBoxesRecursive walks the box tree depth-first, descending into the
// well-known container types.
func ParseBoxesRecursive(r io.ReadSeeker, maxsize int64, extendEOF bool, fn BoxDepthCallback) error {
	_, err := parseBoxesRecursive(r, maxsize, 0, extendEOF, fn)
	return err
}

func parseBoxesRecursive(r io.ReadSeeker, maxsize int64, depth int, extendEOF bool, fn BoxDepthCallback) (bool, error) {
	return parseBoxes(r, maxsize, extendEOF && depth == 0, func(h Header, r io.ReadSeeker) (bool, error) {
		payloadOffset, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return false, err
		}
		cont, err := fn(h, depth, r)
		if err != nil || !cont {
			return cont, err
		}
		if containerTypes[h.Type] {
			if _, err = r.Seek(payloadOffset, io.SeekStart); err != nil {
				return false, err
			}
			stopped, err := parseBoxesRecursive(r, h.Maxsize, depth+1, extendEOF, fn)
			if err != nil {
				return false, err
			}
			if stopped {
				return false, nil
			}
		}
		return true, nil
	})
}

// PathSegment matches a box type at one nesting level. A segment with
// several types matches any of them.
type PathSegment []FourCC

func (s PathSegment) matches(t FourCC) bool {
	for _, c := range s {
		if c == t {
			return true
		}
	}
	return false
}

// BoxPath builds a single-type-per-level path.
func BoxPath(types ...FourCC) []PathSegment {
	path := make([]PathSegment, 0, len(types))
	for _, t := range types {
		path = append(path, PathSegment{t})
	}
	return path
}

func pathString(path []PathSegment) string {
	var sb strings.Builder
	for i, seg := range path {
		if i > 0 {
			sb.WriteByte('/')
		}
		if len(seg) == 1 {
			sb.WriteString(seg[0].String())
		} else {
			names := make([]string, 0, len(seg))
			for _, c := range seg {
				names = append(names, c.String())
			}
			sb.WriteString("[" + strings.Join(names, "|") + "]")
		}
	}
	return sb.String()
}

// ParsePath visits every box whose ancestry matches path, in file order.
// Matching descends through any box type, not just the known containers.
func ParsePath(r io.ReadSeeker, path []PathSegment, maxsize int64, extendEOF bool, fn BoxCallback) error {
	_, err := parsePath(r, path, maxsize, extendEOF, fn)
	return err
}

func parsePath(r io.ReadSeeker, path []PathSegment, maxsize int64, extendEOF bool, fn BoxCallback) (bool, error) {
	if len(path) == 0 {
		return false, nil
	}
	return parseBoxes(r, maxsize, extendEOF, func(h Header, r io.ReadSeeker) (bool, error) {
		if !path[0].matches(h.Type) {
			return true, nil
		}
		if len(path) == 1 {
			return fn(h, r)
		}
		stopped, err := parsePath(r, path[1:], h.Maxsize, false, fn)
		if err != nil {
			return false, err
		}
		return !stopped, nil
	})
}

func readPayload(h Header, r io.ReadSeeker) ([]byte, error) {
	if h.Maxsize == -1 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, h.Maxsize))
}

// ParseMP4DataFirst returns the payload of the first box matching path in a
// complete file, or nil if absent. The zero-size final box form is accepted
// at the top level.
func ParseMP4DataFirst(r io.ReadSeeker, path []PathSegment) ([]byte, error) {
	return parseDataFirst(r, path, true)
}

// ParseMP4DataFirstx is ParseMP4DataFirst failing with BoxNotFoundError when
// the path is absent.
func ParseMP4DataFirstx(r io.ReadSeeker, path []PathSegment) ([]byte, error) {
	data, err := ParseMP4DataFirst(r, path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &BoxNotFoundError{Path: pathString(path)}
	}
	return data, nil
}

// ParseBoxDataFirst is ParseMP4DataFirst for iterating inside a box payload,
// where zero-size boxes are not legal.
func ParseBoxDataFirst(r io.ReadSeeker, path []PathSegment) ([]byte, error) {
	return parseDataFirst(r, path, false)
}

// ParseBoxDataFirstx is ParseBoxDataFirst failing with BoxNotFoundError when
// the path is absent.
func ParseBoxDataFirstx(r io.ReadSeeker, path []PathSegment) ([]byte, error) {
	data, err := ParseBoxDataFirst(r, path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &BoxNotFoundError{Path: pathString(path)}
	}
	return data, nil
}

func parseDataFirst(r io.ReadSeeker, path []PathSegment, extendEOF bool) ([]byte, error) {
	var data []byte
	err := ParsePath(r, path, -1, extendEOF, func(h Header, r io.ReadSeeker) (bool, error) {
		var err error
		data, err = readPayload(h, r)
		return false, err
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ParseMP4HeaderFirst locates the first box matching path in a complete file
// and returns its header together with the file offset of its payload. The
// stream is left positioned at the payload.
func ParseMP4HeaderFirst(r io.ReadSeeker, path []PathSegment) (Header, int64, error) {
	var (
		found  Header
		offset int64 = -1
	)
	err := ParsePath(r, path, -1, true, func(h Header, r io.ReadSeeker) (bool, error) {
		var err error
		offset, err = r.Seek(0, io.SeekCurrent)
		found = h
		return false, err
	})
	if err != nil {
		return Header{}, 0, err
	}
	if offset < 0 {
		return Header{}, 0, &BoxNotFoundError{Path: pathString(path)}
	}
	if _, err := r.Seek(offset, io.SeekStart); err != nil {
		return Header{}, 0, err
	}
	return found, offset, nil
}
