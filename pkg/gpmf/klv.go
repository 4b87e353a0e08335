// Package gpmf decodes GoPro Metadata Format telemetry, both as the gpmd
// track embedded in MP4 files and as a raw tag stream. See the GPMF spec:
// https://github.com/gopro/gpmf-parser
package gpmf

import (
	"encoding/binary"
	"math"
)

// Key is a GPMF tag FourCC.
type Key [4]byte

func keyOf(s string) Key {
	return Key([]byte(s))
}

func (k Key) String() string { return string(k[:]) }

var (
	KeyDEVC = keyOf("DEVC")
	KeyDVID = keyOf("DVID")
	KeyDVNM = keyOf("DVNM")
	KeySTRM = keyOf("STRM")
	KeyGPS5 = keyOf("GPS5")
	KeyGPS9 = keyOf("GPS9")
	KeyGPSF = keyOf("GPSF")
	KeyGPSP = keyOf("GPSP")
	KeyGPSU = keyOf("GPSU")
	KeySCAL = keyOf("SCAL")
	KeyTYPE = keyOf("TYPE")
	KeyMTRX = keyOf("MTRX")
	KeyORIN = keyOf("ORIN")
	KeyORIO = keyOf("ORIO")
	KeyACCL = keyOf("ACCL")
	KeyGYRO = keyOf("GYRO")
	KeyMAGN = keyOf("MAGN")
)

// KLV is one decoded GPMF element: [key:4][type:1][structure size:1]
// [repeat:2] followed by repeat structures of the given size, padded to a
// 4-byte boundary. Exactly one of Nested, Rows and Bytes is populated:
// Nested for type 0, Rows for the numeric scalar types, Bytes for strings,
// complex types and anything unknown.
type KLV struct {
	Key    Key
	Type   byte
	Size   int
	Repeat int
	Nested []KLV
	Rows   [][]float64
	Bytes  [][]byte
}

// typeWidth gives the scalar byte width of a GPMF type character, or 0 for
// the non-scalar and complex types.
func typeWidth(t byte) int {
	switch t {
	case 'b', 'B':
		return 1
	case 's', 'S':
		return 2
	case 'f', 'l', 'L', 'q':
		return 4
	case 'd', 'j', 'J', 'Q':
		return 8
	}
	return 0
}

// decodeScalar reads one big-endian value. The Q-number types are kept as
// their raw integer representation, matching how scale divisors are applied.
func decodeScalar(t byte, b []byte) float64 {
	switch t {
	case 'b':
		return float64(int8(b[0]))
	case 'B':
		return float64(b[0])
	case 's':
		return float64(int16(binary.BigEndian.Uint16(b)))
	case 'S':
		return float64(binary.BigEndian.Uint16(b))
	case 'f':
		return float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	case 'l':
		return float64(int32(binary.BigEndian.Uint32(b)))
	case 'L', 'q':
		return float64(binary.BigEndian.Uint32(b))
	case 'd':
		return math.Float64frombits(binary.BigEndian.Uint64(b))
	case 'j':
		return float64(int64(binary.BigEndian.Uint64(b)))
	case 'J', 'Q':
		return float64(binary.BigEndian.Uint64(b))
	}
	return 0
}

// DecodeKLVs parses a concatenation of GPMF elements. Like the format's
// greedy readers, it stops quietly at the first truncated element and
// returns what it has.
func DecodeKLVs(data []byte) []KLV {
	var klvs []KLV
	pos := 0
	for pos+8 <= len(data) {
		var key Key
		copy(key[:], data[pos:])
		typ := data[pos+4]
		size := int(data[pos+5])
		repeat := int(binary.BigEndian.Uint16(data[pos+6:]))
		total := size * repeat
		if pos+8+total > len(data) {
			break
		}
		payload := data[pos+8 : pos+8+total]

		klv := KLV{Key: key, Type: typ, Size: size, Repeat: repeat}
		switch {
		case typ == 0:
			klv.Nested = DecodeKLVs(payload)
		case typ == 'c' || typ == 'U' || typ == 'F' || typ == 'G':
			for i := 0; i < repeat; i++ {
				klv.Bytes = append(klv.Bytes, payload[i*size:(i+1)*size])
			}
		default:
			w := typeWidth(typ)
			if w > 0 && size%w == 0 && size > 0 {
				per := size / w
				for i := 0; i < repeat; i++ {
					row := make([]float64, 0, per)
					base := i * size
					for j := 0; j < per; j++ {
						row = append(row, decodeScalar(typ, payload[base+j*w:base+(j+1)*w]))
					}
					klv.Rows = append(klv.Rows, row)
				}
			} else {
				// complex or unknown structures stay raw
				for i := 0; size > 0 && i < repeat; i++ {
					klv.Bytes = append(klv.Bytes, payload[i*size:(i+1)*size])
				}
			}
		}
		klvs = append(klvs, klv)

		pos += 8 + total
		if total%4 != 0 {
			pos += 4 - total%4
		}
	}
	return klvs
}

// indexKLVs maps elements by key, later duplicates winning.
func indexKLVs(klvs []KLV) map[Key]KLV {
	indexed := make(map[Key]KLV, len(klvs))
	for _, klv := range klvs {
		indexed[klv.Key] = klv
	}
	return indexed
}

func flattenRows(rows [][]float64) []float64 {
	var out []float64
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

func joinBytes(rows [][]byte) []byte {
	var out []byte
	for _, b := range rows {
		out = append(out, b...)
	}
	return out
}
