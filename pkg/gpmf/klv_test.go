package gpmf

import (
	"bytes"
	"encoding/binary"
	"math"
	"reflect"
	"testing"
)

// tag serializes one GPMF element with its 4-byte alignment padding.
func tag(key string, typ byte, size, repeat int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(key)
	buf.WriteByte(typ)
	buf.WriteByte(byte(size))
	binary.Write(&buf, binary.BigEndian, uint16(repeat))
	buf.Write(payload)
	if pad := len(payload) % 4; pad != 0 {
		buf.Write(make([]byte, 4-pad))
	}
	return buf.Bytes()
}

func be32(values ...int32) []byte {
	var buf bytes.Buffer
	for _, v := range values {
		binary.Write(&buf, binary.BigEndian, v)
	}
	return buf.Bytes()
}

func TestDecodeKLVsScalars(t *testing.T) {
	data := tag("SCAL", 'l', 4, 3, be32(100, 200, 300))
	klvs := DecodeKLVs(data)
	if len(klvs) != 1 {
		t.Fatalf("got %d elements", len(klvs))
	}
	want := [][]float64{{100}, {200}, {300}}
	if !reflect.DeepEqual(klvs[0].Rows, want) {
		t.Fatalf("rows %v", klvs[0].Rows)
	}
}

func TestDecodeKLVsMultiValueRows(t *testing.T) {
	data := tag("GPS5", 'l', 20, 2, be32(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))
	klvs := DecodeKLVs(data)
	want := [][]float64{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}
	if !reflect.DeepEqual(klvs[0].Rows, want) {
		t.Fatalf("rows %v", klvs[0].Rows)
	}
}

func TestDecodeKLVsNested(t *testing.T) {
	inner := tag("DVID", 'L', 4, 1, be32(1001))
	data := tag("DEVC", 0, 1, len(inner), inner)
	klvs := DecodeKLVs(data)
	if len(klvs) != 1 || klvs[0].Key != KeyDEVC {
		t.Fatalf("elements %+v", klvs)
	}
	nested := klvs[0].Nested
	if len(nested) != 1 || nested[0].Key != KeyDVID || nested[0].Rows[0][0] != 1001 {
		t.Fatalf("nested %+v", nested)
	}
}

func TestDecodeKLVsStringsStayRaw(t *testing.T) {
	data := tag("DVNM", 'c', 1, 11, []byte("HERO9 Black"))
	klvs := DecodeKLVs(data)
	if string(joinBytes(klvs[0].Bytes)) != "HERO9 Black" {
		t.Fatalf("bytes %q", joinBytes(klvs[0].Bytes))
	}
}

func TestDecodeKLVsPadding(t *testing.T) {
	// an 11-byte payload pads to 12; the next element must still decode
	data := append(tag("DVNM", 'c', 1, 11, []byte("HERO9 Black")), tag("DVID", 'L', 4, 1, be32(1))...)
	klvs := DecodeKLVs(data)
	if len(klvs) != 2 || klvs[1].Key != KeyDVID {
		t.Fatalf("elements %+v", klvs)
	}
}

func TestDecodeKLVsTruncatedStopsQuietly(t *testing.T) {
	data := append(tag("DVID", 'L', 4, 1, be32(1)), tag("GPS5", 'l', 20, 2, be32(1, 2, 3, 4, 5, 6, 7, 8, 9, 10))...)
	klvs := DecodeKLVs(data[:len(data)-8])
	if len(klvs) != 1 || klvs[0].Key != KeyDVID {
		t.Fatalf("elements %+v", klvs)
	}
}

func TestDecodeScalarTypes(t *testing.T) {
	f := make([]byte, 4)
	binary.BigEndian.PutUint32(f, math.Float32bits(1.5))
	if got := decodeScalar('f', f); got != 1.5 {
		t.Fatalf("float %f", got)
	}
	if got := decodeScalar('b', []byte{0xff}); got != -1 {
		t.Fatalf("int8 %f", got)
	}
	if got := decodeScalar('S', []byte{0x01, 0x00}); got != 256 {
		t.Fatalf("uint16 %f", got)
	}
	d := make([]byte, 8)
	binary.BigEndian.PutUint64(d, math.Float64bits(-2.25))
	if got := decodeScalar('d', d); got != -2.25 {
		t.Fatalf("float64 %f", got)
	}
}
