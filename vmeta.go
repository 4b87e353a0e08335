// Package vmeta reads and writes camera telemetry embedded in MP4 videos.
// It decodes CAMM tracks, GoPro GPMF tracks and BlackVue NMEA boxes into a
// uniform metadata model, and can write the model back as a CAMM track
// appended to a video.
package vmeta

import (
	"io"
	"log/slog"
	"math"

	"github.com/streetvision/vmeta/pkg/blackvue"
	"github.com/streetvision/vmeta/pkg/camm"
	"github.com/streetvision/vmeta/pkg/config"
	"github.com/streetvision/vmeta/pkg/gpmf"
	"github.com/streetvision/vmeta/pkg/gpsfilter"
	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// Source identifies which in-video telemetry format the metadata came from.
type Source string

const (
	SourceCAMM     Source = "camm"
	SourceGPMF     Source = "gpmf"
	SourceBlackVue Source = "blackvue"
)

// VideoMetadata is the telemetry of one video in a format-independent
// shape. Point times are seconds from the start of the video.
type VideoMetadata struct {
	Source Source
	Points []*telemetry.GPSPoint
	Accl   []*telemetry.AccelerationData
	Gyro   []*telemetry.GyroscopeData
	Magn   []*telemetry.MagnetometerData
	Make   string
	Model  string
}

// CAMMInfo converts the metadata into the CAMM builder's input.
func (m *VideoMetadata) CAMMInfo() camm.Info {
	return camm.Info{
		GPS:   m.Points,
		Accl:  m.Accl,
		Gyro:  m.Gyro,
		Magn:  m.Magn,
		Make:  m.Make,
		Model: m.Model,
	}
}

// Engine extracts and injects telemetry with one fixed configuration.
type Engine struct {
	conf config.Config
}

func New(conf config.Config) *Engine {
	return &Engine{conf: conf}
}

// ExtractVideoMetadata probes the telemetry formats in order, CAMM first,
// then GPMF, then BlackVue, and returns the first one that yields GPS
// points. nil metadata with a nil error means the video carries none.
func ExtractVideoMetadata(r io.ReadSeeker) (*VideoMetadata, error) {
	return New(config.Default()).ExtractVideoMetadata(r)
}

func (e *Engine) ExtractVideoMetadata(r io.ReadSeeker) (*VideoMetadata, error) {
	meta, err := e.extractCAMM(r)
	if err != nil || meta != nil {
		return meta, err
	}
	meta, err = e.extractGPMF(r)
	if err != nil || meta != nil {
		return meta, err
	}
	return e.extractBlackVue(r)
}

func (e *Engine) extractCAMM(r io.ReadSeeker) (*VideoMetadata, error) {
	measurements, found, err := camm.ExtractTelemetry(r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}

	meta := &VideoMetadata{Source: SourceCAMM}
	for _, m := range measurements {
		switch v := m.(type) {
		case *telemetry.Point:
			meta.Points = append(meta.Points, &telemetry.GPSPoint{Point: *v})
		case *telemetry.GPSPoint:
			meta.Points = append(meta.Points, v)
		case *telemetry.CAMMGPSPoint:
			meta.Points = append(meta.Points, gpsPointFromCAMM(v))
		case *telemetry.AccelerationData:
			meta.Accl = append(meta.Accl, v)
		case *telemetry.GyroscopeData:
			meta.Gyro = append(meta.Gyro, v)
		case *telemetry.MagnetometerData:
			meta.Magn = append(meta.Magn, v)
		}
	}
	meta.Make, meta.Model = camm.ExtractMakeModel(r)
	slog.Debug("extracted CAMM telemetry", "points", len(meta.Points))
	return meta, nil
}

func gpsPointFromCAMM(p *telemetry.CAMMGPSPoint) *telemetry.GPSPoint {
	fix := telemetry.GPSFix(p.GPSFixType)
	return &telemetry.GPSPoint{
		Point:       p.Point,
		EpochTime:   telemetry.Float(p.TimeGPSEpoch),
		Fix:         &fix,
		GroundSpeed: telemetry.Float(math.Hypot(float64(p.VelocityEast), float64(p.VelocityNorth))),
	}
}

func (e *Engine) extractGPMF(r io.ReadSeeker) (*VideoMetadata, error) {
	data, err := gpmf.ExtractTelemetry(r)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	opts := gpsfilter.Options{
		GPSPrecision: e.conf.Filter.GPSPrecision,
		MaxDOP:       e.conf.Filter.MaxDOP,
		GPSFixes:     e.conf.Filter.Fixes(),
	}
	points := gpsfilter.RemoveNoisyPoints(data.GPS, opts)
	if len(points) == 0 {
		slog.Debug("all GPMF points rejected by the noise filter")
		return nil, nil
	}

	meta := &VideoMetadata{
		Source: SourceGPMF,
		Points: points,
		Accl:   data.Accl,
		Gyro:   data.Gyro,
		Magn:   data.Magn,
		Model:  gpmf.ExtractCameraModel(r),
	}
	if meta.Model != "" {
		meta.Make = "GoPro"
	}
	slog.Debug("extracted GPMF telemetry", "points", len(meta.Points))
	return meta, nil
}

func (e *Engine) extractBlackVue(r io.ReadSeeker) (*VideoMetadata, error) {
	points, found, err := blackvue.ExtractPoints(r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	meta := &VideoMetadata{
		Source: SourceBlackVue,
		Points: points,
		Model:  blackvue.ExtractCameraModel(r),
	}
	if meta.Model != "" {
		meta.Make = "BlackVue"
	}
	slog.Debug("extracted BlackVue telemetry", "points", len(meta.Points))
	return meta, nil
}

// InjectCAMM rewrites src keeping its video tracks and appending the given
// telemetry as a CAMM track. The result is a virtual stream over src plus
// the generated samples; nothing is copied until it is read.
func InjectCAMM(src io.ReadSeeker, info camm.Info) (io.ReadSeeker, error) {
	return New(config.Default()).InjectCAMM(src, info)
}

func (e *Engine) InjectCAMM(src io.ReadSeeker, info camm.Info) (io.ReadSeeker, error) {
	return isobmff.TransformMP4(src, camm.SampleGenerator(info, e.conf.CAMM.MinMediaTimescale))
}
