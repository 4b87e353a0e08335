package gpmf

import (
	"io"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// TelemetryData is everything decoded from one GPMF device.
type TelemetryData struct {
	GPS  []*telemetry.GPSPoint
	Accl []*telemetry.AccelerationData
	Gyro []*telemetry.GyroscopeData
	Magn []*telemetry.MagnetometerData
}

// Streams without a DVID are grouped under this pseudo device id, above the
// 32-bit range real ids live in.
const noDeviceID uint64 = 1 << 32

var epoch2000 = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

// ExtractPoints returns the GPS points of the first gpmd track that has any.
func ExtractPoints(r io.ReadSeeker) ([]*telemetry.GPSPoint, error) {
	data, err := ExtractTelemetry(r)
	if err != nil || data == nil {
		return nil, err
	}
	return data.GPS, nil
}

// ExtractTelemetry returns the telemetry of the first gpmd track with GPS
// data, or nil when no track qualifies.
func ExtractTelemetry(r io.ReadSeeker) (*TelemetryData, error) {
	movie, err := parseMovie(r)
	if err != nil {
		return nil, err
	}
	for _, track := range movie.Tracks() {
		if !track.HasSampleFormat(isobmff.TypeGPMD) {
			continue
		}
		data, err := extractFromSamples(r, track)
		if err != nil {
			return nil, err
		}
		if len(data.GPS) > 0 {
			return data, nil
		}
	}
	return nil, nil
}

func parseMovie(r io.ReadSeeker) (*isobmff.MovieBox, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	moovData, err := isobmff.ParseMP4DataFirstx(r, isobmff.BoxPath(isobmff.TypeMOOV))
	if err != nil {
		return nil, err
	}
	return isobmff.ParseMovieBox(moovData)
}

func gpmdSampleData(r io.ReadSeeker, track *isobmff.TrackBox) ([]isobmff.Sample, error) {
	descriptions := track.SampleDescriptions()
	samples, err := track.Samples()
	if err != nil {
		return nil, err
	}
	filtered := samples[:0]
	for _, s := range samples {
		idx := int(s.DescriptionIndex) - 1
		if 0 <= idx && idx < len(descriptions) && descriptions[idx].Format == isobmff.TypeGPMD {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func readSample(r io.ReadSeeker, s isobmff.Sample) ([]byte, error) {
	if _, err := r.Seek(int64(s.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	data := make([]byte, s.Size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func extractFromSamples(r io.ReadSeeker, track *isobmff.TrackBox) (*TelemetryData, error) {
	samples, err := gpmdSampleData(r, track)
	if err != nil {
		return nil, err
	}

	pointsByDevice := map[uint64][]*telemetry.GPSPoint{}
	acclByDevice := map[uint64][]*telemetry.AccelerationData{}
	gyroByDevice := map[uint64][]*telemetry.GyroscopeData{}
	magnByDevice := map[uint64][]*telemetry.MagnetometerData{}
	var deviceOrder []uint64

	seen := func(id uint64) {
		for _, d := range deviceOrder {
			if d == id {
				return
			}
		}
		deviceOrder = append(deviceOrder, id)
	}

	for _, sample := range samples {
		data, err := readSample(r, sample)
		if err != nil {
			return nil, err
		}
		for _, device := range DecodeKLVs(data) {
			if device.Key != KeyDEVC {
				continue
			}
			deviceID := findDeviceID(device.Nested)
			seen(deviceID)

			if points := findGPSStream(device.Nested); len(points) > 0 {
				// the raw fixes are sampled faster than the track samples;
				// spread them evenly over the sample duration
				avg := sample.ExactDuration / float64(len(points))
				for i, p := range points {
					p.Time = sample.ExactTime + avg*float64(i)
				}
				pointsByDevice[deviceID] = append(pointsByDevice[deviceID], points...)
			}

			if rows := findTelemetryStream(device.Nested, KeyACCL); len(rows) > 0 {
				avg := sample.ExactDuration / float64(len(rows))
				for i, row := range rows {
					z, x, y := axes(row)
					acclByDevice[deviceID] = append(acclByDevice[deviceID], &telemetry.AccelerationData{
						Time: sample.ExactTime + avg*float64(i), X: x, Y: y, Z: z,
					})
				}
			}
			if rows := findTelemetryStream(device.Nested, KeyGYRO); len(rows) > 0 {
				avg := sample.ExactDuration / float64(len(rows))
				for i, row := range rows {
					z, x, y := axes(row)
					gyroByDevice[deviceID] = append(gyroByDevice[deviceID], &telemetry.GyroscopeData{
						Time: sample.ExactTime + avg*float64(i), X: x, Y: y, Z: z,
					})
				}
			}
			if rows := findTelemetryStream(device.Nested, KeyMAGN); len(rows) > 0 {
				avg := sample.ExactDuration / float64(len(rows))
				for i, row := range rows {
					z, x, y := axes(row)
					magnByDevice[deviceID] = append(magnByDevice[deviceID], &telemetry.MagnetometerData{
						Time: sample.ExactTime + avg*float64(i), X: x, Y: y, Z: z,
					})
				}
			}
		}
	}

	data := &TelemetryData{}
	for _, id := range deviceOrder {
		if data.GPS == nil && len(pointsByDevice[id]) > 0 {
			data.GPS = pointsByDevice[id]
		}
		if data.Accl == nil && len(acclByDevice[id]) > 0 {
			data.Accl = acclByDevice[id]
		}
		if data.Gyro == nil && len(gyroByDevice[id]) > 0 {
			data.Gyro = gyroByDevice[id]
		}
		if data.Magn == nil && len(magnByDevice[id]) > 0 {
			data.Magn = magnByDevice[id]
		}
	}

	backfillEpochTimes(data.GPS, false)
	backfillEpochTimes(data.GPS, true)

	return data, nil
}

// axes reorders a sensor row from the on-wire ZXY layout.
func axes(row []float64) (z, x, y float64) {
	if len(row) > 0 {
		z = row[0]
	}
	if len(row) > 1 {
		x = row[1]
	}
	if len(row) > 2 {
		y = row[2]
	}
	return
}

func findDeviceID(klvs []KLV) uint64 {
	for _, klv := range klvs {
		if klv.Key == KeyDVID {
			if len(klv.Rows) > 0 && len(klv.Rows[0]) > 0 {
				return uint64(klv.Rows[0][0])
			}
			break
		}
	}
	return noDeviceID
}

// findGPSStream returns the points of the first STRM carrying GPS9 or GPS5
// data.
func findGPSStream(klvs []KLV) []*telemetry.GPSPoint {
	for _, klv := range klvs {
		if klv.Key != KeySTRM {
			continue
		}
		if points := gps9FromStream(klv.Nested); len(points) > 0 {
			return points
		}
		if points := gps5FromStream(klv.Nested); len(points) > 0 {
			return points
		}
	}
	return nil
}

func scaleDivisors(indexed map[Key]KLV) []float64 {
	scal, ok := indexed[KeySCAL]
	if !ok {
		return nil
	}
	var values []float64
	for _, row := range scal.Rows {
		if len(row) > 0 {
			values = append(values, row[0])
		}
	}
	return values
}

func gps5FromStream(klvs []KLV) []*telemetry.GPSPoint {
	indexed := indexKLVs(klvs)

	gps5, ok := indexed[KeyGPS5]
	if !ok {
		return nil
	}
	scal := scaleDivisors(indexed)
	if scal == nil {
		return nil
	}
	for _, s := range scal {
		if s == 0 {
			return nil
		}
	}

	var fix *telemetry.GPSFix
	if gpsf, ok := indexed[KeyGPSF]; ok && len(gpsf.Rows) > 0 && len(gpsf.Rows[0]) > 0 {
		fix = telemetry.Fix(telemetry.GPSFix(gpsf.Rows[0][0]))
	}
	var epochTime *float64
	if gpsu, ok := indexed[KeyGPSU]; ok && len(gpsu.Bytes) > 0 {
		if t, err := parseGPSTimestamp(string(gpsu.Bytes[0])); err == nil {
			epochTime = telemetry.Float(t)
		}
	}
	var precision *float64
	if gpsp, ok := indexed[KeyGPSP]; ok && len(gpsp.Rows) > 0 && len(gpsp.Rows[0]) > 0 {
		precision = telemetry.Float(gpsp.Rows[0][0])
	}

	var points []*telemetry.GPSPoint
	for _, row := range gps5.Rows {
		if len(row) < 5 || len(scal) < 5 {
			continue
		}
		p := &telemetry.GPSPoint{
			Point: telemetry.Point{
				Lat: row[0] / scal[0],
				Lon: row[1] / scal[1],
				Alt: telemetry.Float(row[2] / scal[2]),
			},
			EpochTime:   epochTime,
			Fix:         fix,
			Precision:   precision,
			GroundSpeed: telemetry.Float(row[3] / scal[3]),
		}
		points = append(points, p)
	}
	return points
}

const gps9ValueCount = 9

func gps9FromStream(klvs []KLV) []*telemetry.GPSPoint {
	indexed := indexKLVs(klvs)

	gps9, ok := indexed[KeyGPS9]
	if !ok {
		return nil
	}
	scal := scaleDivisors(indexed)
	if scal == nil {
		return nil
	}
	for _, s := range scal {
		if s == 0 {
			return nil
		}
	}

	typeKLV, ok := indexed[KeyTYPE]
	if !ok {
		return nil
	}
	valueTypes := joinBytes(typeKLV.Bytes)
	if len(valueTypes) == 0 {
		return nil
	}
	if len(valueTypes) != gps9ValueCount {
		return nil
	}

	var points []*telemetry.GPSPoint
	for _, raw := range gps9.Bytes {
		values, ok := parseComplex(valueTypes, raw)
		if !ok {
			continue
		}
		if len(values) < gps9ValueCount || len(scal) < gps9ValueCount {
			continue
		}
		for i := range values {
			values[i] /= scal[i]
		}
		lat, lon, alt, speed2D := values[0], values[1], values[2], values[3]
		daysSince2000, secsSinceMidnight := values[5], values[6]
		dop, fixValue := values[7], values[8]

		epochTime := float64(epoch2000) + daysSince2000*24*60*60 + secsSinceMidnight
		p := &telemetry.GPSPoint{
			Point: telemetry.Point{
				Lat: lat,
				Lon: lon,
				Alt: telemetry.Float(alt),
			},
			EpochTime:   telemetry.Float(epochTime),
			Fix:         telemetry.Fix(telemetry.GPSFix(fixValue)),
			Precision:   telemetry.Float(dop * 100),
			GroundSpeed: telemetry.Float(speed2D),
		}
		points = append(points, p)
	}
	return points
}

// parseComplex decodes one structure described by a TYPE character string.
func parseComplex(valueTypes []byte, raw []byte) ([]float64, bool) {
	values := make([]float64, 0, len(valueTypes))
	pos := 0
	for _, t := range valueTypes {
		w := typeWidth(t)
		if w == 0 || pos+w > len(raw) {
			return nil, false
		}
		values = append(values, decodeScalar(t, raw[pos:pos+w]))
		pos += w
	}
	return values, true
}

// parseGPSTimestamp parses the GPSU layout yymmddhhmmss.ffffff as UTC epoch
// seconds.
func parseGPSTimestamp(s string) (float64, error) {
	s = strings.TrimRight(s, "\x00")
	t, err := time.Parse("060102150405.999999", s)
	if err != nil {
		return 0, err
	}
	return float64(t.UnixNano()) / float64(time.Second.Nanoseconds()), nil
}

// findTelemetryStream returns the scaled and calibrated rows of the first
// STRM carrying the given key.
func findTelemetryStream(klvs []KLV, key Key) [][]float64 {
	for _, klv := range klvs {
		if klv.Key != KeySTRM {
			continue
		}
		if rows := scaleAndCalibrate(klv.Nested, key); len(rows) > 0 {
			return rows
		}
	}
	return nil
}

func scaleAndCalibrate(klvs []KLV, key Key) [][]float64 {
	indexed := indexKLVs(klvs)

	klv, ok := indexed[key]
	if !ok {
		return nil
	}

	var scals []float64
	if scal, ok := indexed[KeySCAL]; ok {
		for _, s := range flattenRows(scal.Rows) {
			if s == 0 {
				s = 1
			}
			scals = append(scals, s)
		}
	}
	if len(scals) == 0 {
		scals = []float64{1}
	}
	scaleAt := func(i int) float64 {
		if len(scals) == 1 {
			return scals[0]
		}
		if i < len(scals) {
			return scals[i]
		}
		return 1
	}

	matrix := calibrationMatrix(indexed)

	var out [][]float64
	for _, row := range klv.Rows {
		values := row
		if matrix != nil && len(matrix) == len(row)*len(row) {
			values = applyMatrix(matrix, row)
		}
		scaled := make([]float64, len(values))
		for i, v := range values {
			scaled[i] = v / scaleAt(i)
		}
		out = append(out, scaled)
	}
	return out
}

// calibrationMatrix prefers an MTRX that does real calibration; an MTRX
// holding only 0/±1 is just an axis permutation, in which case ORIN/ORIO
// provide the orientation mapping.
func calibrationMatrix(indexed map[Key]KLV) []float64 {
	if mtrx, ok := indexed[KeyMTRX]; ok {
		matrix := flattenRows(mtrx.Rows)
		for _, v := range matrix {
			if v != 0 && v != 1 && v != -1 {
				return matrix
			}
		}
	}
	orin, okIn := indexed[KeyORIN]
	orio, okOut := indexed[KeyORIO]
	if okIn && okOut {
		return buildOrientationMatrix(joinBytes(orin.Bytes), joinBytes(orio.Bytes))
	}
	return nil
}

func buildOrientationMatrix(orin, orio []byte) []float64 {
	var matrix []float64
	for _, outChar := range orin {
		for _, inChar := range orio {
			switch {
			case inChar == outChar:
				matrix = append(matrix, 1)
			case int(inChar)-'a' == int(outChar)-'A':
				matrix = append(matrix, -1)
			case int(inChar)-'A' == int(outChar)-'a':
				matrix = append(matrix, -1)
			default:
				matrix = append(matrix, 0)
			}
		}
	}
	return matrix
}

func applyMatrix(matrix, values []float64) []float64 {
	size := len(values)
	out := make([]float64, size)
	for y := 0; y < size; y++ {
		var sum float64
		for x := 0; x < size; x++ {
			sum += matrix[y*size+x] * values[x]
		}
		out[y] = sum
	}
	return out
}

// backfillEpochTimes fills missing receiver timestamps by extrapolating from
// the nearest point that has one, forward or, with reverse set, backward.
func backfillEpochTimes(points []*telemetry.GPSPoint, reverse bool) {
	ordered := points
	if reverse {
		ordered = make([]*telemetry.GPSPoint, len(points))
		for i, p := range points {
			ordered[len(points)-1-i] = p
		}
	}

	var last *telemetry.GPSPoint
	for _, p := range ordered {
		if last == nil {
			if p.EpochTime != nil {
				last = p
			}
			continue
		}
		if p.EpochTime == nil {
			p.EpochTime = telemetry.Float(*last.EpochTime + (p.Time - last.Time))
		}
		last = p
	}
}

// ExtractDeviceNames collects the DVNM of every device in the first gpmd
// track that names any.
func ExtractDeviceNames(r io.ReadSeeker) (map[uint64][]byte, error) {
	movie, err := parseMovie(r)
	if err != nil {
		return nil, err
	}
	for _, track := range movie.Tracks() {
		if !track.HasSampleFormat(isobmff.TypeGPMD) {
			continue
		}
		samples, err := gpmdSampleData(r, track)
		if err != nil {
			return nil, err
		}
		names := map[uint64][]byte{}
		for _, sample := range samples {
			data, err := readSample(r, sample)
			if err != nil {
				return nil, err
			}
			for _, device := range DecodeKLVs(data) {
				if device.Key != KeyDEVC {
					continue
				}
				deviceID := findDeviceID(device.Nested)
				for _, klv := range device.Nested {
					if klv.Key == KeyDVNM && len(klv.Bytes) > 0 {
						names[deviceID] = joinBytes(klv.Bytes)
					}
				}
			}
		}
		if len(names) > 0 {
			return names, nil
		}
	}
	return nil, nil
}

// ExtractCameraModel picks the most plausible camera name from the device
// names, preferring Hero models, then anything GoPro-branded.
func ExtractCameraModel(r io.ReadSeeker) string {
	names, err := ExtractDeviceNames(r)
	if err != nil || len(names) == 0 {
		return ""
	}

	var decoded []string
	for _, name := range names {
		if utf8.Valid(name) {
			decoded = append(decoded, string(name))
		}
	}
	if len(decoded) == 0 {
		return ""
	}
	sort.Strings(decoded)

	for _, name := range decoded {
		if strings.Contains(strings.ToLower(name), "hero") {
			return strings.TrimSpace(name)
		}
	}
	for _, name := range decoded {
		if strings.Contains(strings.ToLower(name), "gopro") {
			return strings.TrimSpace(name)
		}
	}
	return strings.TrimSpace(decoded[0])
}
