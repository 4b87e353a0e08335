package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/streetvision/vmeta/pkg/telemetry"
)

func TestDefault(t *testing.T) {
	conf := Default()
	if conf.Filter.GPSPrecision != 15 || conf.Filter.MaxDOP != 1000 {
		t.Fatalf("filter %+v", conf.Filter)
	}
	if !reflect.DeepEqual(conf.Filter.GPSFixes, []int{2, 3}) {
		t.Fatalf("fixes %v", conf.Filter.GPSFixes)
	}
	if conf.CAMM.MinMediaTimescale != 1000 {
		t.Fatalf("camm %+v", conf.CAMM)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	conf, err := Parse(strings.NewReader("filter:\n  maxdop: 500\ncamm:\n  minmediatimescale: 48000\n"))
	if err != nil {
		t.Fatal(err)
	}
	if conf.Filter.MaxDOP != 500 {
		t.Fatalf("maxdop %f", conf.Filter.MaxDOP)
	}
	if conf.CAMM.MinMediaTimescale != 48000 {
		t.Fatalf("timescale %d", conf.CAMM.MinMediaTimescale)
	}
	// untouched fields keep their defaults
	if conf.Filter.GPSPrecision != 15 || !reflect.DeepEqual(conf.Filter.GPSFixes, []int{2, 3}) {
		t.Fatalf("filter %+v", conf.Filter)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse(strings.NewReader("filter:\n  gpsprecison: 10\n")); err == nil {
		t.Fatal("misspelled key must fail")
	}
}

func TestParseEmptyInput(t *testing.T) {
	conf, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(conf, Default()) {
		t.Fatalf("conf %+v", conf)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vmeta.yaml")
	if err := os.WriteFile(path, []byte("filter:\n  gpsprecision: 7.5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Filter.GPSPrecision != 7.5 {
		t.Fatalf("precision %f", conf.Filter.GPSPrecision)
	}

	conf, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(conf, Default()) {
		t.Fatalf("conf %+v", conf)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file must fail")
	}
}

func TestFixes(t *testing.T) {
	fixes := Filter{GPSFixes: []int{2, 3}}.Fixes()
	if !reflect.DeepEqual(fixes, []telemetry.GPSFix{telemetry.GPSFix2D, telemetry.GPSFix3D}) {
		t.Fatalf("fixes %v", fixes)
	}
}
