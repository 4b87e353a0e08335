// Package camm reads and writes Camera Motion Metadata samples, the
// telemetry format described by the CAMM track specification. All sample
// fields are little-endian, unlike the big-endian box headers around them.
package camm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/streetvision/vmeta/pkg/telemetry"
)

// Type is the 16-bit CAMM sample type code.
type Type uint16

const (
	TypeAngleAxis     Type = 0
	TypeExposureTime  Type = 1
	TypeGyro          Type = 2
	TypeAcceleration  Type = 3
	TypePosition      Type = 4
	TypeMinGPS        Type = 5
	TypeGPS           Type = 6
	TypeMagneticField Type = 7

	// Extension types are offset by 1024. GoPro GPS carries fix, precision
	// and ground speed, which the standard GPS layout cannot hold.
	TypeGoProGPS Type = 1024 + 6
)

// unknownAlt is the on-wire sentinel for a missing altitude.
const unknownAlt = -1.0

type lereader struct {
	data []byte
	pos  int
	err  error
}

func (r *lereader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.pos+n > len(r.data) {
		r.err = fmt.Errorf("camm: truncated sample: need %d bytes, have %d", n, len(r.data)-r.pos)
		return nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b
}

func (r *lereader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *lereader) i32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(b))
}

func (r *lereader) f32() float32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (r *lereader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

type lewriter struct {
	buf bytes.Buffer
}

func (w *lewriter) u16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *lewriter) i32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

func (w *lewriter) f32(v float32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf.Write(b[:])
}

func (w *lewriter) f64(v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf.Write(b[:])
}

func altOrNil(alt float64) *float64 {
	if alt == unknownAlt {
		return nil
	}
	return telemetry.Float(alt)
}

func altOrSentinel(alt *float64) float64 {
	if alt == nil {
		return unknownAlt
	}
	return *alt
}

// DecodeSample parses one CAMM sample payload. sampleTime becomes the
// measurement time of the result. Angle-axis, position and exposure samples
// are validated but yield a nil measurement; unknown type codes are an
// error.
func DecodeSample(data []byte, sampleTime float64) (telemetry.Measurement, error) {
	r := &lereader{data: data}
	r.take(2) // padding
	typ := Type(r.u16())
	if r.err != nil {
		return nil, r.err
	}

	var m telemetry.Measurement
	switch typ {
	case TypeAngleAxis, TypePosition:
		r.f32()
		r.f32()
		r.f32()

	case TypeExposureTime:
		r.i32()
		r.i32()

	case TypeGyro:
		m = &telemetry.GyroscopeData{
			Time: sampleTime,
			X:    float64(r.f32()),
			Y:    float64(r.f32()),
			Z:    float64(r.f32()),
		}

	case TypeAcceleration:
		m = &telemetry.AccelerationData{
			Time: sampleTime,
			X:    float64(r.f32()),
			Y:    float64(r.f32()),
			Z:    float64(r.f32()),
		}

	case TypeMagneticField:
		m = &telemetry.MagnetometerData{
			Time: sampleTime,
			X:    float64(r.f32()),
			Y:    float64(r.f32()),
			Z:    float64(r.f32()),
		}

	case TypeMinGPS:
		p := &telemetry.Point{
			Time: sampleTime,
			Lat:  r.f64(),
			Lon:  r.f64(),
			Alt:  altOrNil(r.f64()),
		}
		m = p

	case TypeGPS:
		p := &telemetry.CAMMGPSPoint{
			Point: telemetry.Point{Time: sampleTime},
		}
		p.TimeGPSEpoch = r.f64()
		p.GPSFixType = r.i32()
		p.Lat = r.f64()
		p.Lon = r.f64()
		p.Alt = altOrNil(float64(r.f32()))
		p.HorizontalAccuracy = r.f32()
		p.VerticalAccuracy = r.f32()
		p.VelocityEast = r.f32()
		p.VelocityNorth = r.f32()
		p.VelocityUp = r.f32()
		p.SpeedAccuracy = r.f32()
		m = p

	case TypeGoProGPS:
		p := &telemetry.GPSPoint{
			Point: telemetry.Point{Time: sampleTime},
		}
		p.Lat = r.f64()
		p.Lon = r.f64()
		p.Alt = altOrNil(float64(r.f32()))
		p.EpochTime = telemetry.Float(r.f64())
		fix := telemetry.GPSFix(r.i32())
		p.Fix = &fix
		p.Precision = telemetry.Float(float64(r.f32()))
		p.GroundSpeed = telemetry.Float(float64(r.f32()))
		m = p

	default:
		return nil, fmt.Errorf("camm: unknown sample type %d", typ)
	}

	if r.err != nil {
		return nil, r.err
	}
	return m, nil
}

// EncodeSample serializes a telemetry measurement as one CAMM sample. The
// measurement's concrete type selects the sample type code.
func EncodeSample(m telemetry.Measurement) ([]byte, error) {
	w := &lewriter{}
	w.u16(0) // padding

	switch v := m.(type) {
	case *telemetry.Point:
		w.u16(uint16(TypeMinGPS))
		w.f64(v.Lat)
		w.f64(v.Lon)
		w.f64(altOrSentinel(v.Alt))

	case *telemetry.CAMMGPSPoint:
		w.u16(uint16(TypeGPS))
		w.f64(v.TimeGPSEpoch)
		w.i32(v.GPSFixType)
		w.f64(v.Lat)
		w.f64(v.Lon)
		w.f32(float32(altOrSentinel(v.Alt)))
		w.f32(v.HorizontalAccuracy)
		w.f32(v.VerticalAccuracy)
		w.f32(v.VelocityEast)
		w.f32(v.VelocityNorth)
		w.f32(v.VelocityUp)
		w.f32(v.SpeedAccuracy)

	case *telemetry.GPSPoint:
		w.u16(uint16(TypeGoProGPS))
		w.f64(v.Lat)
		w.f64(v.Lon)
		w.f32(float32(altOrSentinel(v.Alt)))
		var epoch float64
		if v.EpochTime != nil {
			epoch = *v.EpochTime
		}
		w.f64(epoch)
		fix := telemetry.GPSFixNone
		if v.Fix != nil {
			fix = *v.Fix
		}
		w.i32(int32(fix))
		var precision, groundSpeed float64
		if v.Precision != nil {
			precision = *v.Precision
		}
		if v.GroundSpeed != nil {
			groundSpeed = *v.GroundSpeed
		}
		w.f32(float32(precision))
		w.f32(float32(groundSpeed))

	case *telemetry.AccelerationData:
		w.u16(uint16(TypeAcceleration))
		w.f32(float32(v.X))
		w.f32(float32(v.Y))
		w.f32(float32(v.Z))

	case *telemetry.GyroscopeData:
		w.u16(uint16(TypeGyro))
		w.f32(float32(v.X))
		w.f32(float32(v.Y))
		w.f32(float32(v.Z))

	case *telemetry.MagnetometerData:
		w.u16(uint16(TypeMagneticField))
		w.f32(float32(v.X))
		w.f32(float32(v.Y))
		w.f32(float32(v.Z))

	default:
		return nil, fmt.Errorf("camm: unsupported measurement type %T", m)
	}

	return w.buf.Bytes(), nil
}
