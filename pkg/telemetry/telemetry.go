package telemetry

import "sort"

// GPSFix is the GPS lock quality reported by the receiver.
// 0 - no lock, 2 or 3 - 2D or 3D lock.
type GPSFix int

const (
	GPSFixNone GPSFix = 0
	GPSFix2D   GPSFix = 2
	GPSFix3D   GPSFix = 3
)

// Measurement is one timestamped telemetry record. All measurements carry a
// time in seconds; the zero reference depends on the producer (video time for
// track samples, epoch time for raw receiver output).
type Measurement interface {
	MeasurementTime() float64
	SetMeasurementTime(float64)
}

// Point is a minimal GPS position. Alt and Angle are nil when unknown.
type Point struct {
	Time  float64
	Lat   float64
	Lon   float64
	Alt   *float64
	Angle *float64
}

func (p *Point) MeasurementTime() float64     { return p.Time }
func (p *Point) SetMeasurementTime(t float64) { p.Time = t }

// GPSPoint is a GPS position with receiver quality fields, as produced by
// GoPro GPMF streams and BlackVue NMEA records. Optional fields are nil when
// the source did not report them.
type GPSPoint struct {
	Point
	EpochTime   *float64
	Fix         *GPSFix
	Precision   *float64
	GroundSpeed *float64
}

// CAMMGPSPoint is the full GPS record of a CAMM type-6 sample.
// Float32 fields match the wire precision so that encode/decode round-trips
// exactly.
type CAMMGPSPoint struct {
	Point
	TimeGPSEpoch       float64
	GPSFixType         int32
	HorizontalAccuracy float32
	VerticalAccuracy   float32
	VelocityEast       float32
	VelocityNorth      float32
	VelocityUp         float32
	SpeedAccuracy      float32
}

// AccelerationData is an accelerometer reading in m/s^2 along the XYZ axes of
// the camera.
type AccelerationData struct {
	Time    float64
	X, Y, Z float64
}

func (a *AccelerationData) MeasurementTime() float64     { return a.Time }
func (a *AccelerationData) SetMeasurementTime(t float64) { a.Time = t }

// GyroscopeData is a gyroscope reading in rad/s around the XYZ axes of the
// camera.
type GyroscopeData struct {
	Time    float64
	X, Y, Z float64
}

func (g *GyroscopeData) MeasurementTime() float64     { return g.Time }
func (g *GyroscopeData) SetMeasurementTime(t float64) { g.Time = t }

// MagnetometerData is an ambient magnetic field reading.
type MagnetometerData struct {
	Time    float64
	X, Y, Z float64
}

func (m *MagnetometerData) MeasurementTime() float64     { return m.Time }
func (m *MagnetometerData) SetMeasurementTime(t float64) { m.Time = t }

// Float returns a pointer to v, for filling optional fields.
func Float(v float64) *float64 { return &v }

// Fix returns a pointer to f.
func Fix(f GPSFix) *GPSFix { return &f }

// SortByTime sorts measurements by their time, stable.
func SortByTime[M Measurement](ms []M) {
	sort.SliceStable(ms, func(i, j int) bool {
		return ms[i].MeasurementTime() < ms[j].MeasurementTime()
	})
}
