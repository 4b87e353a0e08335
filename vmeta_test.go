package vmeta

import (
	"bytes"
	"io"
	"testing"

	"github.com/streetvision/vmeta/pkg/camm"
	"github.com/streetvision/vmeta/pkg/config"
	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// buildTestVideo assembles a minimal playable-shaped MP4 with one video
// track whose samples spell out the mdat body.
func buildTestVideo(t *testing.T) []byte {
	t.Helper()
	body := []byte("FRAMEAFRAMEB")
	samples := []isobmff.RawSample{
		{DescriptionIndex: 1, Offset: 0, Size: 6, TimeDelta: 512, IsSync: true},
		{DescriptionIndex: 1, Offset: 6, Size: 6, TimeDelta: 512, IsSync: true},
	}
	stbl := isobmff.BuildStbl([]isobmff.SampleEntry{{Format: isobmff.FCC("avc1"), DataReferenceIndex: 1}}, samples)
	moov := &isobmff.Box{Type: isobmff.TypeMOOV, Children: []*isobmff.Box{
		{Type: isobmff.TypeMVHD, Payload: &isobmff.MvhdBox{
			Timescale: 1000, Rate: 0x10000, Matrix: isobmff.UnityMatrix, NextTrackID: 2,
		}},
		{Type: isobmff.TypeTRAK, Children: []*isobmff.Box{
			{Type: isobmff.TypeTKHD, Payload: &isobmff.TkhdBox{
				FullBox: isobmff.FullBox{Flags: isobmff.TkhdTrackEnabled | isobmff.TkhdTrackInMovie},
				TrackID: 1,
				Matrix:  isobmff.UnityMatrix,
			}},
			{Type: isobmff.TypeMDIA, Children: []*isobmff.Box{
				{Type: isobmff.TypeMDHD, Payload: &isobmff.MdhdBox{
					FullBox: isobmff.FullBox{Version: 1}, Timescale: 90000, Language: isobmff.LanguageUnd,
				}},
				{Type: isobmff.TypeHDLR, Payload: &isobmff.HdlrBox{HandlerType: isobmff.TypeVIDE, Name: "VideoHandler"}},
				{Type: isobmff.TypeMINF, Children: []*isobmff.Box{
					{Type: isobmff.TypeDINF, Children: []*isobmff.Box{
						{Type: isobmff.TypeDREF, Payload: isobmff.SelfContainedDref()},
					}},
					stbl,
				}},
			}},
		}},
	}}
	out, err := isobmff.BuildMP4([]byte("isomiso2"), moov, []io.ReadSeeker{bytes.NewReader(body)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	file, err := io.ReadAll(out)
	if err != nil {
		t.Fatal(err)
	}
	return file
}

func TestInjectAndExtract(t *testing.T) {
	video := buildTestVideo(t)

	fix := telemetry.GPSFix3D
	meta := &VideoMetadata{
		Points: []*telemetry.GPSPoint{
			{
				Point:       telemetry.Point{Time: 0, Lat: 52.5, Lon: 13.375, Alt: telemetry.Float(34.5)},
				EpochTime:   telemetry.Float(1623057074.0),
				Fix:         &fix,
				Precision:   telemetry.Float(110),
				GroundSpeed: telemetry.Float(2.5),
			},
			{
				Point:       telemetry.Point{Time: 1, Lat: 52.5625, Lon: 13.375, Alt: telemetry.Float(35)},
				EpochTime:   telemetry.Float(1623057075.0),
				Fix:         &fix,
				Precision:   telemetry.Float(110),
				GroundSpeed: telemetry.Float(2.5),
			},
		},
		Accl:  []*telemetry.AccelerationData{{Time: 0.5, X: 0.25, Y: -9.75, Z: 0.5}},
		Make:  "GoPro",
		Model: "HERO9 Black",
	}

	out, err := InjectCAMM(bytes.NewReader(video), meta.CAMMInfo())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	injected, err := io.ReadAll(out)
	if err != nil {
		t.Fatal(err)
	}

	got, err := ExtractVideoMetadata(bytes.NewReader(injected))
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("no telemetry extracted")
	}
	if got.Source != SourceCAMM {
		t.Fatalf("source %s", got.Source)
	}
	if len(got.Points) != 2 || len(got.Accl) != 1 {
		t.Fatalf("%d points, %d accl", len(got.Points), len(got.Accl))
	}
	if got.Points[0].Lat != 52.5 || got.Points[1].Lat != 52.5625 {
		t.Fatalf("latitudes %f %f", got.Points[0].Lat, got.Points[1].Lat)
	}
	if got.Points[1].Time != 1 {
		t.Fatalf("time %f", got.Points[1].Time)
	}
	if got.Make != "GoPro" || got.Model != "HERO9 Black" {
		t.Fatalf("camera %q %q", got.Make, got.Model)
	}

	// the video samples survive the rewrite byte for byte
	mdat, err := isobmff.ParseMP4DataFirstx(bytes.NewReader(injected), isobmff.BoxPath(isobmff.TypeMDAT))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(mdat, []byte("FRAMEAFRAMEB")) {
		t.Fatalf("mdat starts with %q", mdat[:12])
	}

	moovData, err := isobmff.ParseMP4DataFirstx(bytes.NewReader(injected), isobmff.BoxPath(isobmff.TypeMOOV))
	if err != nil {
		t.Fatal(err)
	}
	movie, err := isobmff.ParseMovieBox(moovData)
	if err != nil {
		t.Fatal(err)
	}
	tracks := movie.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks", len(tracks))
	}
	if tracks[0].Tkhd().TrackID != 1 || tracks[1].Tkhd().TrackID != 2 {
		t.Fatalf("track IDs %d %d", tracks[0].Tkhd().TrackID, tracks[1].Tkhd().TrackID)
	}
	if movie.Mvhd().NextTrackID != 3 {
		t.Fatalf("next track ID %d", movie.Mvhd().NextTrackID)
	}
}

func TestExtractVideoMetadataNoTelemetry(t *testing.T) {
	video := buildTestVideo(t)
	meta, err := ExtractVideoMetadata(bytes.NewReader(video))
	if err != nil {
		t.Fatal(err)
	}
	if meta != nil {
		t.Fatalf("expected no telemetry, got %+v", meta)
	}
}

func TestEngineUsesConfig(t *testing.T) {
	conf := config.Default()
	conf.CAMM.MinMediaTimescale = 48000
	engine := New(conf)

	video := buildTestVideo(t)
	out, err := engine.InjectCAMM(bytes.NewReader(video), camm.Info{
		MiniGPS: []*telemetry.Point{
			{Time: 0, Lat: 1, Lon: 2},
			{Time: 1, Lat: 1.5, Lon: 2.5},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	injected, err := io.ReadAll(out)
	if err != nil {
		t.Fatal(err)
	}

	moovData, err := isobmff.ParseMP4DataFirstx(bytes.NewReader(injected), isobmff.BoxPath(isobmff.TypeMOOV))
	if err != nil {
		t.Fatal(err)
	}
	movie, err := isobmff.ParseMovieBox(moovData)
	if err != nil {
		t.Fatal(err)
	}
	tracks := movie.Tracks()
	mdhd := tracks[len(tracks)-1].Mdhd()
	if mdhd.Timescale != 48000 {
		t.Fatalf("media timescale %d", mdhd.Timescale)
	}
}
