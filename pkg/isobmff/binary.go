package isobmff

import (
	"bytes"
	"encoding/binary"
)

// breader is a bounds-checked big-endian cursor over a payload buffer.
// The first out-of-range access latches a RangeError; subsequent reads
// return zero values so decoders can check err once at the end.
type breader struct {
	data []byte
	pos  int
	err  error
}

func (r *breader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = &RangeError{Requested: int64(n), Remaining: int64(len(r.data) - r.pos)}
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *breader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *breader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *breader) u24() uint32 {
	b := r.take(3)
	if b == nil {
		return 0
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func (r *breader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *breader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *breader) fourcc() FourCC {
	var c FourCC
	copy(c[:], r.take(4))
	return c
}

func (r *breader) skip(n int) { r.take(n) }

func (r *breader) rest() []byte {
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}

func (r *breader) remaining() int { return len(r.data) - r.pos }

// bwriter is the big-endian counterpart used by the build path.
type bwriter struct {
	buf bytes.Buffer
}

func (w *bwriter) u8(v uint8)  { w.buf.WriteByte(v) }
func (w *bwriter) u16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}
func (w *bwriter) u24(v uint32) {
	w.buf.Write([]byte{byte(v >> 16), byte(v >> 8), byte(v)})
}
func (w *bwriter) u32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}
func (w *bwriter) u64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}
func (w *bwriter) put(b []byte)     { w.buf.Write(b) }
func (w *bwriter) fourcc(c FourCC)  { w.buf.Write(c[:]) }
func (w *bwriter) bytes() []byte    { return w.buf.Bytes() }
