package blackvue

import (
	"bytes"
	"math"
	"testing"

	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

func freeBoxFile(t *testing.T, inner isobmff.FourCC, payload []byte) []byte {
	t.Helper()
	file, err := isobmff.EncodeBox(&isobmff.Box{
		Type: isobmff.TypeFREE,
		Children: []*isobmff.Box{
			{Type: inner, Raw: payload},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestParseGGA(t *testing.T) {
	p := ParseGGA("$GPGGA,202530.00,5109.0262,N,11401.8407,W,5,40,0.5,1097.36,M,-17.00,M,18,TSTR*61")
	if p == nil {
		t.Fatal("sentence rejected")
	}
	if math.Abs(p.Lat-51.150436666666664) > 1e-12 {
		t.Fatalf("lat %v", p.Lat)
	}
	if math.Abs(p.Lon-(-114.03067833333333)) > 1e-12 {
		t.Fatalf("lon %v", p.Lon)
	}
	if p.Fix == nil || *p.Fix != telemetry.GPSFix3D {
		t.Fatalf("fix %v", p.Fix)
	}
	if p.Alt == nil || *p.Alt != 1097.36 {
		t.Fatalf("alt %v", p.Alt)
	}
}

func TestParseGGARejects(t *testing.T) {
	cases := []struct {
		name     string
		sentence string
	}{
		{"no fix", "$GPGGA,202530.00,5109.0262,N,11401.8407,W,0,40,0.5,1097.36,M,-17.00,M,,*6B"},
		{"too short", "$GPGGA,202530.00,5109.0262,N"},
		{"empty position", "$GPGGA,202530.00,,,,,1,40,0.5,1097.36,M,-17.00,M,,"},
		{"bad hemisphere", "$GPGGA,202530.00,5109.0262,Q,11401.8407,W,1,40,0.5,1097.36,M,-17.00,M,,"},
	}
	for _, c := range cases {
		if p := ParseGGA(c.sentence); p != nil {
			t.Fatalf("%s: got %+v", c.name, p)
		}
	}
}

func TestExtractPoints(t *testing.T) {
	text := "[1623057074211]$GPGGA,202530.00,5109.0262,N,11401.8407,W,5,40,0.5,1097.36,M,-17.00,M,18,TSTR*61[1623057074211]\r\n" +
		"[1623057074211]$GPVTG,,T,,M,0.078,N,0.144,K,D*28[1623057074211]\r\n" +
		"[1623057075211]$GNGGA,202531.00,5109.0300,N,11401.8500,W,1,40,0.5,1098.00,M,-17.00,M,18,TSTR*00\r\n" +
		"garbage line\r\n"
	file := freeBoxFile(t, isobmff.TypeGPS, []byte(text))

	points, ok, err := ExtractPoints(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("gps box present but not found")
	}
	if len(points) != 2 {
		t.Fatalf("got %d points", len(points))
	}
	// times are rebased to seconds from the first fix
	if points[0].Time != 0 || points[1].Time != 1 {
		t.Fatalf("times %f %f", points[0].Time, points[1].Time)
	}
	if math.Abs(points[0].Lat-51.150436666666664) > 1e-12 {
		t.Fatalf("lat %v", points[0].Lat)
	}
}

func TestExtractPointsNoGPSBox(t *testing.T) {
	file := freeBoxFile(t, isobmff.TypeCPRT, []byte("whatever"))
	points, ok, err := ExtractPoints(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if ok || points != nil {
		t.Fatalf("ok=%v points=%v", ok, points)
	}
}

func TestExtractPointsEmptyBox(t *testing.T) {
	file := freeBoxFile(t, isobmff.TypeGPS, []byte("no sentences here"))
	points, ok, err := ExtractPoints(bytes.NewReader(file))
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("present box must report ok")
	}
	if len(points) != 0 {
		t.Fatalf("got %d points", len(points))
	}
}

func TestExtractCameraModelJSON(t *testing.T) {
	file := freeBoxFile(t, isobmff.TypeCPRT, []byte(`{"model":"DR900X-2CH","firmware":"1.007"}`))
	if got := ExtractCameraModel(bytes.NewReader(file)); got != "DR900X-2CH" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractCameraModelDelimited(t *testing.T) {
	file := freeBoxFile(t, isobmff.TypeCPRT, []byte("Pittasoft Co., Ltd.;DR900S-1CH;\x00"))
	if got := ExtractCameraModel(bytes.NewReader(file)); got != "DR900S-1CH" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractCameraModelDegradesToEmpty(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"json without model", []byte(`{"firmware":"1.007"}`)},
		{"json non-string model", []byte(`{"model":123}`)},
		{"no delimiter", []byte("just text")},
	}
	for _, c := range cases {
		file := freeBoxFile(t, isobmff.TypeCPRT, c.payload)
		if got := ExtractCameraModel(bytes.NewReader(file)); got != "" {
			t.Fatalf("%s: got %q", c.name, got)
		}
	}
	if got := ExtractCameraModel(bytes.NewReader(freeBoxFile(t, isobmff.TypeGPS, nil))); got != "" {
		t.Fatalf("missing cprt: got %q", got)
	}
}
