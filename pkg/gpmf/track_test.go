package gpmf

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/streetvision/vmeta/pkg/telemetry"
)

func TestParseGPSTimestamp(t *testing.T) {
	got, err := parseGPSTimestamp("160901120000.000000")
	if err != nil {
		t.Fatal(err)
	}
	want := float64(time.Date(2016, 9, 1, 12, 0, 0, 0, time.UTC).Unix())
	if got != want {
		t.Fatalf("got %f, want %f", got, want)
	}

	got, err = parseGPSTimestamp("160901120000.500000\x00\x00")
	if err != nil {
		t.Fatal(err)
	}
	if got != want+0.5 {
		t.Fatalf("fractional got %f, want %f", got, want+0.5)
	}

	if _, err := parseGPSTimestamp("not a timestamp"); err == nil {
		t.Fatal("garbage must fail")
	}
}

func TestBuildOrientationMatrix(t *testing.T) {
	identity := buildOrientationMatrix([]byte("XYZ"), []byte("XYZ"))
	if !reflect.DeepEqual(identity, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}) {
		t.Fatalf("identity %v", identity)
	}

	// a lowercase axis flips the sign
	flipped := buildOrientationMatrix([]byte("xYZ"), []byte("XYZ"))
	if !reflect.DeepEqual(flipped, []float64{-1, 0, 0, 0, 1, 0, 0, 0, 1}) {
		t.Fatalf("flipped %v", flipped)
	}

	// swapped axes permute the rows
	swapped := buildOrientationMatrix([]byte("YXZ"), []byte("XYZ"))
	if !reflect.DeepEqual(swapped, []float64{0, 1, 0, 1, 0, 0, 0, 0, 1}) {
		t.Fatalf("swapped %v", swapped)
	}
}

func TestApplyMatrix(t *testing.T) {
	got := applyMatrix([]float64{0, 1, 0, 1, 0, 0, 0, 0, -1}, []float64{1, 2, 3})
	if !reflect.DeepEqual(got, []float64{2, 1, -3}) {
		t.Fatalf("got %v", got)
	}
}

func TestBackfillEpochTimes(t *testing.T) {
	points := []*telemetry.GPSPoint{
		{Point: telemetry.Point{Time: 0}},
		{Point: telemetry.Point{Time: 1}, EpochTime: telemetry.Float(100)},
		{Point: telemetry.Point{Time: 2.5}},
	}
	backfillEpochTimes(points, false)
	backfillEpochTimes(points, true)

	if points[2].EpochTime == nil || *points[2].EpochTime != 101.5 {
		t.Fatalf("forward fill %v", points[2].EpochTime)
	}
	if points[0].EpochTime == nil || *points[0].EpochTime != 99 {
		t.Fatalf("backward fill %v", points[0].EpochTime)
	}
}

func TestScaleAndCalibrate(t *testing.T) {
	klvs := []KLV{
		{Key: KeySCAL, Type: 's', Size: 2, Repeat: 3, Rows: [][]float64{{2}, {4}, {0}}},
		{Key: KeyACCL, Type: 's', Size: 6, Repeat: 2, Rows: [][]float64{{2, 4, 6}, {8, 12, 3}}},
	}
	got := scaleAndCalibrate(klvs, KeyACCL)
	// the zero divisor degrades to 1
	want := [][]float64{{1, 1, 6}, {4, 3, 3}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestScaleAndCalibrateSingleScale(t *testing.T) {
	klvs := []KLV{
		{Key: KeySCAL, Type: 's', Size: 2, Repeat: 1, Rows: [][]float64{{10}}},
		{Key: KeyGYRO, Type: 's', Size: 6, Repeat: 1, Rows: [][]float64{{10, 20, 30}}},
	}
	got := scaleAndCalibrate(klvs, KeyGYRO)
	if !reflect.DeepEqual(got, [][]float64{{1, 2, 3}}) {
		t.Fatalf("single scale applies to every column, got %v", got)
	}
}

func TestScaleAndCalibrateOrientation(t *testing.T) {
	klvs := []KLV{
		{Key: KeySCAL, Type: 's', Size: 2, Repeat: 1, Rows: [][]float64{{1}}},
		{Key: KeyORIN, Type: 'c', Size: 1, Repeat: 3, Bytes: [][]byte{{'Y'}, {'x'}, {'Z'}}},
		{Key: KeyORIO, Type: 'c', Size: 1, Repeat: 3, Bytes: [][]byte{{'X'}, {'Y'}, {'Z'}}},
		{Key: KeyACCL, Type: 's', Size: 6, Repeat: 1, Rows: [][]float64{{1, 2, 3}}},
	}
	got := scaleAndCalibrate(klvs, KeyACCL)
	if !reflect.DeepEqual(got, [][]float64{{2, -1, 3}}) {
		t.Fatalf("got %v", got)
	}
}

func TestCalibrationMatrixPrefersRealMTRX(t *testing.T) {
	indexed := indexKLVs([]KLV{
		{Key: KeyMTRX, Rows: [][]float64{{0.5, 0, 0, 0, 1, 0, 0, 0, 1}}},
		{Key: KeyORIN, Bytes: [][]byte{[]byte("XYZ")}},
		{Key: KeyORIO, Bytes: [][]byte{[]byte("XYZ")}},
	})
	matrix := calibrationMatrix(indexed)
	if len(matrix) != 9 || matrix[0] != 0.5 {
		t.Fatalf("matrix %v", matrix)
	}

	// an MTRX of only 0/±1 is just a permutation; ORIN/ORIO take over
	indexed = indexKLVs([]KLV{
		{Key: KeyMTRX, Rows: [][]float64{{1, 0, 0, 0, 1, 0, 0, 0, 1}}},
		{Key: KeyORIN, Bytes: [][]byte{[]byte("YXZ")}},
		{Key: KeyORIO, Bytes: [][]byte{[]byte("XYZ")}},
	})
	matrix = calibrationMatrix(indexed)
	if !reflect.DeepEqual(matrix, []float64{0, 1, 0, 1, 0, 0, 0, 0, 1}) {
		t.Fatalf("matrix %v", matrix)
	}
}

func TestParseComplex(t *testing.T) {
	raw := append(be32(100), 0x01, 0x00)
	values, ok := parseComplex([]byte("lS"), raw)
	if !ok || !reflect.DeepEqual(values, []float64{100, 256}) {
		t.Fatalf("values %v ok %v", values, ok)
	}

	if _, ok := parseComplex([]byte("lS"), raw[:5]); ok {
		t.Fatal("truncated structure must fail")
	}
	if _, ok := parseComplex([]byte("?"), raw); ok {
		t.Fatal("unknown type must fail")
	}
}

func TestGPS9FromStream(t *testing.T) {
	// GPS9 packs lat, lon, alt, speed2d, speed3d, days since 2000, seconds
	// since midnight, DOP and fix into one complex structure
	var raw []byte
	raw = append(raw, be32(511504366, -1140306783, 109736, 150, 160)...)
	raw = append(raw, be32(6033)...)     // 2016-07-08
	raw = append(raw, be32(43200500)...) // 12:00:00.5
	raw = append(raw, 0x00, 0x96)        // DOP 1.5 scaled by 100
	raw = append(raw, 0x00, 0x03)        // 3D fix

	klvs := []KLV{
		{Key: KeyTYPE, Type: 'c', Size: 1, Repeat: 9, Bytes: [][]byte{[]byte("lllllllSS")}},
		{Key: KeySCAL, Type: 'l', Size: 4, Repeat: 9, Rows: [][]float64{
			{10000000}, {10000000}, {100}, {100}, {100}, {1}, {1000}, {100}, {1},
		}},
		{Key: KeyGPS9, Type: '?', Size: len(raw), Repeat: 1, Bytes: [][]byte{raw}},
	}

	points := gps9FromStream(klvs)
	if len(points) != 1 {
		t.Fatalf("got %d points", len(points))
	}
	p := points[0]
	if math.Abs(p.Lat-51.1504366) > 1e-9 || math.Abs(p.Lon-(-114.0306783)) > 1e-9 {
		t.Fatalf("position %f %f", p.Lat, p.Lon)
	}
	if p.Alt == nil || math.Abs(*p.Alt-1097.36) > 1e-9 {
		t.Fatalf("alt %v", p.Alt)
	}
	if p.GroundSpeed == nil || math.Abs(*p.GroundSpeed-1.5) > 1e-9 {
		t.Fatalf("speed %v", p.GroundSpeed)
	}
	if p.Fix == nil || *p.Fix != telemetry.GPSFix3D {
		t.Fatalf("fix %v", p.Fix)
	}
	if p.Precision == nil || math.Abs(*p.Precision-150) > 1e-9 {
		t.Fatalf("precision %v", p.Precision)
	}
	wantEpoch := float64(time.Date(2016, 7, 8, 12, 0, 0, 500000000, time.UTC).UnixNano()) / 1e9
	if p.EpochTime == nil || math.Abs(*p.EpochTime-wantEpoch) > 1e-6 {
		t.Fatalf("epoch %v, want %f", p.EpochTime, wantEpoch)
	}
}
