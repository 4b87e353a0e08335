package gpmf

import (
	"encoding/binary"
	"io"

	"github.com/streetvision/vmeta/pkg/telemetry"
)

// frame accumulates one DVID-delimited run of tags: the GPS fixes plus the
// attributes that apply to all of them.
type frame struct {
	start     float64
	hasStart  bool
	fix       *telemetry.GPSFix
	precision *float64
	points    []*telemetry.GPSPoint
}

// PointsFromStream decodes a raw GPMF tag stream, the flat form dumped from
// a GoPro without the MP4 container, and timestamps its GPS fixes.
//
// The receiver reports fixes at roughly 18-19 Hz but timestamps (GPSU) only
// once per DVID frame, so each frame's fixes are spread by linear
// interpolation between its own start time and the next frame's. The last
// frame has no successor; one second is a close-enough estimate of its span.
func PointsFromStream(r io.Reader) ([]*telemetry.GPSPoint, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var (
		frames []*frame
		cur    = &frame{}
		scal   []float64
	)

	flush := func() {
		if len(cur.points) > 0 {
			frames = append(frames, cur)
		}
		cur = &frame{}
	}

	pos := 0
	for pos+8 <= len(data) {
		var key Key
		copy(key[:], data[pos:])
		typ := data[pos+4]
		size := int(data[pos+5])
		repeat := int(binary.BigEndian.Uint16(data[pos+6:]))
		pos += 8

		// nested content is scanned inline, so stream-level and nested tags
		// are treated alike
		if typ == 0 {
			continue
		}

		total := size * repeat
		if pos+total > len(data) {
			break
		}
		payload := data[pos : pos+total]
		pos += total
		if total%4 != 0 {
			pos += 4 - total%4
		}

		switch key {
		case KeyDVID:
			flush()

		case KeySCAL:
			scal = scal[:0]
			w := typeWidth(typ)
			if w > 0 && size == w {
				for i := 0; i < repeat; i++ {
					scal = append(scal, decodeScalar(typ, payload[i*w:(i+1)*w]))
				}
			}

		case KeyGPSU:
			if t, err := parseGPSTimestamp(string(payload)); err == nil {
				cur.start = t
				cur.hasStart = true
			}

		case KeyGPSF:
			if typeWidth(typ) == 4 && size >= 4 {
				cur.fix = telemetry.Fix(telemetry.GPSFix(decodeScalar(typ, payload[:4])))
			}

		case KeyGPSP:
			if typeWidth(typ) == 2 && size >= 2 {
				cur.precision = telemetry.Float(decodeScalar(typ, payload[:2]))
			}

		case KeyGPS5:
			if len(scal) < 5 || size < 20 {
				break
			}
			usable := true
			for _, s := range scal[:5] {
				if s == 0 {
					usable = false
					break
				}
			}
			if !usable {
				break
			}
			for i := 0; i < repeat; i++ {
				row := payload[i*size:]
				values := make([]float64, 5)
				for j := range values {
					values[j] = decodeScalar('l', row[j*4:(j+1)*4])
				}
				cur.points = append(cur.points, &telemetry.GPSPoint{
					Point: telemetry.Point{
						Lat: values[0] / scal[0],
						Lon: values[1] / scal[1],
						Alt: telemetry.Float(values[2] / scal[2]),
					},
					Fix:         cur.fix,
					Precision:   cur.precision,
					GroundSpeed: telemetry.Float(values[3] / scal[3]),
				})
			}
		}
	}
	flush()

	var points []*telemetry.GPSPoint
	for i, f := range frames {
		if !f.hasStart {
			continue
		}
		until := f.start + 1
		if i+1 < len(frames) && frames[i+1].hasStart {
			until = frames[i+1].start
		}
		step := (until - f.start) / float64(len(f.points))
		for j, p := range f.points {
			t := f.start + step*float64(j)
			p.Time = t
			p.EpochTime = telemetry.Float(t)
			points = append(points, p)
		}
	}
	return points, nil
}
