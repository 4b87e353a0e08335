package camm

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// Info is the telemetry to multiplex into a CAMM track.
type Info struct {
	GPS     []*telemetry.GPSPoint
	MiniGPS []*telemetry.Point
	Accl    []*telemetry.AccelerationData
	Gyro    []*telemetry.GyroscopeData
	Magn    []*telemetry.MagnetometerData
	Make    string
	Model   string
}

// DefaultMinMediaTimescale keeps sample timedeltas at millisecond precision
// or better.
const DefaultMinMediaTimescale = 1000

// SampleGenerator builds the generator that appends a CAMM track, and
// optionally a udta with the camera identity, to a movie being rewritten.
// The media timescale is the movie timescale, raised to minMediaTimescale
// when the movie's is coarser.
func SampleGenerator(info Info, minMediaTimescale uint32) isobmff.SampleGenerator {
	if minMediaTimescale == 0 {
		minMediaTimescale = DefaultMinMediaTimescale
	}
	return func(src io.ReadSeeker, moov *isobmff.Box) ([]io.ReadSeeker, error) {
		mvhdBox := moov.Find(isobmff.TypeMVHD)
		if mvhdBox == nil {
			return nil, &isobmff.BoxNotFoundError{Path: "moov/mvhd"}
		}
		movieTimescale := mvhdBox.Payload.(*isobmff.MvhdBox).Timescale
		mediaTimescale := max(minMediaTimescale, movieTimescale)

		// GPS-family points position the track in movie time via the elst
		points := make([]telemetry.Measurement, 0, len(info.GPS)+len(info.MiniGPS))
		for _, p := range info.GPS {
			points = append(points, p)
		}
		for _, p := range info.MiniGPS {
			points = append(points, p)
		}
		telemetry.SortByTime(points)
		points = dropNegativeTimes(points)
		elst := CreateEditList([][]telemetry.Measurement{points}, movieTimescale, mediaTimescale)

		measurements := make([]telemetry.Measurement, 0,
			len(points)+len(info.Accl)+len(info.Gyro)+len(info.Magn))
		measurements = append(measurements, points...)
		for _, m := range info.Accl {
			measurements = append(measurements, m)
		}
		for _, m := range info.Gyro {
			measurements = append(measurements, m)
		}
		for _, m := range info.Magn {
			measurements = append(measurements, m)
		}
		telemetry.SortByTime(measurements)
		measurements = dropNegativeTimes(measurements)

		samples, buffers, err := convertToRawSamples(measurements, mediaTimescale)
		if err != nil {
			return nil, err
		}

		trak := createCammTrak(samples, mediaTimescale)
		if len(elst.Entries) > 0 {
			trak.Children = append(trak.Children, &isobmff.Box{
				Type: isobmff.TypeEDTS,
				Children: []*isobmff.Box{
					{Type: isobmff.TypeELST, Payload: elst},
				},
			})
		}
		moov.Children = append(moov.Children, trak)

		var udtaChildren []*isobmff.Box
		if info.Make != "" {
			udtaChildren = append(udtaChildren, &isobmff.Box{
				Type: tagThetaMake, Raw: []byte(info.Make),
			})
		}
		if info.Model != "" {
			udtaChildren = append(udtaChildren, &isobmff.Box{
				Type: tagThetaModel, Raw: []byte(info.Model),
			})
		}
		if udtaChildren != nil {
			moov.Children = append(moov.Children, &isobmff.Box{
				Type: isobmff.TypeUDTA, Children: udtaChildren,
			})
		}

		streams := make([]io.ReadSeeker, 0, len(buffers))
		for _, buf := range buffers {
			streams = append(streams, bytes.NewReader(buf))
		}
		return streams, nil
	}
}

func dropNegativeTimes(ms []telemetry.Measurement) []telemetry.Measurement {
	for i, m := range ms {
		if m.MeasurementTime() >= 0 {
			return ms[i:]
		}
	}
	if len(ms) == 0 {
		return ms
	}
	return nil
}

// CreateEditList maps telemetry segments into movie time. A first segment
// starting after zero gets a leading empty edit covering the gap; every
// further segment maps its span at rate 1:1.
func CreateEditList(segments [][]telemetry.Measurement, movieTimescale, mediaTimescale uint32) *isobmff.ElstBox {
	elst := &isobmff.ElstBox{FullBox: isobmff.FullBox{Version: 1}}
	first := true
	for _, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		start := segment[0].MeasurementTime()
		end := segment[len(segment)-1].MeasurementTime()
		if first {
			if start > 0 {
				elst.Entries = append(elst.Entries, isobmff.ElstEntry{
					SegmentDuration:  uint64(start * float64(movieTimescale)),
					MediaTime:        -1,
					MediaRateInteger: 1,
				})
			}
			first = false
		} else {
			elst.Entries = append(elst.Entries, isobmff.ElstEntry{
				SegmentDuration:  uint64((end - start) * float64(movieTimescale)),
				MediaTime:        int64(start * float64(mediaTimescale)),
				MediaRateInteger: 1,
			})
		}
	}
	return elst
}

// convertToRawSamples serializes measurements into CAMM sample buffers and
// the matching sample table rows. Offsets are relative to the start of the
// generated data; the last sample gets a zero duration.
func convertToRawSamples(measurements []telemetry.Measurement, timescale uint32) ([]isobmff.RawSample, [][]byte, error) {
	samples := make([]isobmff.RawSample, 0, len(measurements))
	buffers := make([][]byte, 0, len(measurements))
	var offset uint64
	for i, m := range measurements {
		data, err := EncodeSample(m)
		if err != nil {
			return nil, nil, err
		}

		var timedelta int64
		if i+1 < len(measurements) {
			timedelta = int64((measurements[i+1].MeasurementTime() - m.MeasurementTime()) * float64(timescale))
		}
		if timedelta < 0 || timedelta > math.MaxUint32 {
			return nil, nil, fmt.Errorf("camm: sample timedelta %d out of range at %f", timedelta, m.MeasurementTime())
		}

		samples = append(samples, isobmff.RawSample{
			DescriptionIndex: 1,
			Offset:           offset,
			Size:             uint32(len(data)),
			TimeDelta:        uint32(timedelta),
			IsSync:           true,
		})
		buffers = append(buffers, data)
		offset += uint64(len(data))
	}
	return samples, buffers, nil
}

func createCammTrak(samples []isobmff.RawSample, mediaTimescale uint32) *isobmff.Box {
	descriptions := []isobmff.SampleEntry{
		{Format: isobmff.TypeCAMM, DataReferenceIndex: 1},
	}
	stbl := isobmff.BuildStbl(descriptions, samples)

	var mediaDuration uint64
	for _, s := range samples {
		mediaDuration += uint64(s.TimeDelta)
	}

	// fixed zero timestamps keep the output deterministic for checksumming
	mdhd := &isobmff.MdhdBox{
		FullBox:   isobmff.FullBox{Version: 1},
		Timescale: mediaTimescale,
		Duration:  mediaDuration,
		Language:  isobmff.LanguageUnd,
	}
	hdlr := &isobmff.HdlrBox{
		HandlerType: isobmff.TypeCAMM,
		Name:        "CameraMetadataMotionHandler",
	}
	tkhd := &isobmff.TkhdBox{
		FullBox: isobmff.FullBox{Flags: isobmff.TkhdTrackEnabled | isobmff.TkhdTrackInMovie},
		// track duration unknown until the movie is finalized
		Duration: 0xFFFFFFFF,
	}

	dinf := &isobmff.Box{
		Type: isobmff.TypeDINF,
		Children: []*isobmff.Box{
			{Type: isobmff.TypeDREF, Payload: isobmff.SelfContainedDref()},
		},
	}
	minf := &isobmff.Box{
		Type:     isobmff.TypeMINF,
		Children: []*isobmff.Box{dinf, stbl},
	}
	mdia := &isobmff.Box{
		Type: isobmff.TypeMDIA,
		Children: []*isobmff.Box{
			{Type: isobmff.TypeMDHD, Payload: mdhd},
			{Type: isobmff.TypeHDLR, Payload: hdlr},
			minf,
		},
	}
	return &isobmff.Box{
		Type: isobmff.TypeTRAK,
		Children: []*isobmff.Box{
			{Type: isobmff.TypeTKHD, Payload: tkhd},
			mdia,
		},
	}
}
