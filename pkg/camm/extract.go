package camm

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// GPS-family samples are at least 17 bytes; anything smaller can be skipped
// without decoding when only positions are wanted.
const minGPSSampleSize = 17

// ExtractPoints returns the GPS-family measurements of the first CAMM track:
// minimal positions, GoPro GPS and full CAMM GPS records. ok is false when
// the file has no CAMM track at all. Timestamps are already corrected
// against the track's edit list.
func ExtractPoints(r io.ReadSeeker) ([]telemetry.Measurement, bool, error) {
	return extractMeasurements(r, true)
}

// ExtractTelemetry returns every decodable measurement of the first CAMM
// track, GPS and IMU alike, edit-list corrected.
func ExtractTelemetry(r io.ReadSeeker) ([]telemetry.Measurement, bool, error) {
	return extractMeasurements(r, false)
}

func extractMeasurements(r io.ReadSeeker, gpsOnly bool) ([]telemetry.Measurement, bool, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, false, err
	}
	moovData, err := isobmff.ParseMP4DataFirstx(r, isobmff.BoxPath(isobmff.TypeMOOV))
	if err != nil {
		return nil, false, err
	}
	movie, err := isobmff.ParseMovieBox(moovData)
	if err != nil {
		return nil, false, err
	}

	for _, track := range movie.Tracks() {
		if !track.HasSampleFormat(isobmff.TypeCAMM) {
			continue
		}
		descriptions := track.SampleDescriptions()
		samples, err := track.Samples()
		if err != nil {
			return nil, false, err
		}

		var measurements []telemetry.Measurement
		for _, s := range samples {
			idx := int(s.DescriptionIndex) - 1
			if idx < 0 || idx >= len(descriptions) || descriptions[idx].Format != isobmff.TypeCAMM {
				continue
			}
			if gpsOnly && s.Size < minGPSSampleSize {
				continue
			}
			if _, err := r.Seek(int64(s.Offset), io.SeekStart); err != nil {
				return nil, false, err
			}
			data := make([]byte, s.Size)
			if _, err := io.ReadFull(r, data); err != nil {
				return nil, false, err
			}
			m, err := DecodeSample(data, s.ExactTime)
			if err != nil {
				return nil, false, err
			}
			if m == nil {
				continue
			}
			if gpsOnly && !isGPSMeasurement(m) {
				continue
			}
			measurements = append(measurements, m)
		}

		if elst := track.Elst(); elst != nil && len(elst.Entries) > 0 {
			movieTimescale, err := movie.Timescale()
			if err != nil {
				return nil, false, err
			}
			edits, err := track.EditsInSeconds(movieTimescale)
			if err != nil {
				return nil, false, err
			}
			measurements = FilterByEdits(measurements, edits)
		}
		return measurements, true, nil
	}
	return nil, false, nil
}

func isGPSMeasurement(m telemetry.Measurement) bool {
	switch m.(type) {
	case *telemetry.Point, *telemetry.GPSPoint, *telemetry.CAMMGPSPoint:
		return true
	}
	return false
}

// FilterByEdits applies an edit list to a time-ordered measurement sequence.
// The last empty edit sets the presentation offset added to every surviving
// timestamp; the non-empty edits define the media time windows that survive.
// With no non-empty edits everything survives, shifted.
func FilterByEdits(ms []telemetry.Measurement, edits []isobmff.Edit) []telemetry.Measurement {
	var offset float64
	windows := make([]isobmff.Edit, 0, len(edits))
	for _, e := range edits {
		if e.Empty {
			offset = e.DurationSec
		} else {
			windows = append(windows, e)
		}
	}

	if len(windows) == 0 {
		for _, m := range ms {
			m.SetMeasurementTime(m.MeasurementTime() + offset)
		}
		return ms
	}

	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].MediaTimeSec < windows[j].MediaTimeSec
	})

	var out []telemetry.Measurement
	idx := 0
	for _, m := range ms {
		if idx >= len(windows) {
			break
		}
		t := m.MeasurementTime()
		w := windows[idx]
		switch {
		case t < w.MediaTimeSec:
			// before the window, dropped
		case t <= w.MediaTimeSec+w.DurationSec:
			m.SetMeasurementTime(t + offset)
			out = append(out, m)
		default:
			idx++
		}
	}
	return out
}

// udta tags carrying camera identity, per vendor.
var (
	tagInstaMake  = isobmff.FourCC{0xa9, 'm', 'a', 'k'}
	tagInstaModel = isobmff.FourCC{0xa9, 'm', 'o', 'd'}
	tagThetaMake  = isobmff.FCC("@mak")
	tagThetaModel = isobmff.FCC("@mod")
	tagManu       = isobmff.FCC("manu")
	tagModl       = isobmff.FCC("modl")
)

// ExtractMakeModel reads the camera make and model from the moov udta tags.
// Camera identity is informational; every failure degrades to an empty
// string rather than an error.
func ExtractMakeModel(r io.ReadSeeker) (string, string) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", ""
	}
	path := []isobmff.PathSegment{
		{isobmff.TypeMOOV},
		{isobmff.TypeUDTA},
		{tagInstaMake, tagInstaModel, tagThetaModel, tagThetaMake, tagManu, tagModl},
	}

	var cameraMake, cameraModel string
	err := isobmff.ParsePath(r, path, -1, true, func(h isobmff.Header, r io.ReadSeeker) (bool, error) {
		data := readTagData(h, r)
		switch h.Type {
		case tagInstaMake:
			cameraMake = decodeQuietly(stripNUL(parseQuietly(data, h)), h)
		case tagInstaModel:
			cameraModel = decodeQuietly(stripNUL(parseQuietly(data, h)), h)
		case tagThetaMake, tagManu:
			cameraMake = decodeQuietly(data, h)
		case tagThetaModel, tagModl:
			cameraModel = decodeQuietly(data, h)
		}
		return cameraMake == "" || cameraModel == "", nil
	})
	if err != nil && !errors.Is(err, isobmff.ErrParsing) {
		slog.Warn("failed to read udta tags", "error", err)
	}
	return strings.TrimSpace(cameraMake), strings.TrimSpace(cameraModel)
}

func readTagData(h isobmff.Header, r io.ReadSeeker) []byte {
	if h.Maxsize < 0 {
		return nil
	}
	data := make([]byte, h.Maxsize)
	n, _ := io.ReadFull(r, data)
	return data[:n]
}

// parseQuietly unwraps the size-prefixed international text layout used by
// the ©mak/©mod tags: a 16-bit big-endian length, 2 bytes of language code,
// then the text.
func parseQuietly(data []byte, h isobmff.Header) []byte {
	if len(data) < 4 {
		slog.Warn("failed to parse udta tag", "type", h.Type.String())
		return nil
	}
	size := int(data[0])<<8 | int(data[1])
	if 4+size > len(data) {
		slog.Warn("failed to parse udta tag", "type", h.Type.String())
		return nil
	}
	return data[4 : 4+size]
}

func stripNUL(data []byte) []byte {
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return data
}

func decodeQuietly(data []byte, h isobmff.Header) string {
	if !utf8.Valid(data) {
		slog.Warn("failed to decode udta tag", "type", h.Type.String())
		return ""
	}
	return string(data)
}
