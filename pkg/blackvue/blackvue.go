// Package blackvue extracts GPS tracks from BlackVue dashcam recordings,
// which store NMEA sentences as free text inside a free/gps box.
package blackvue

import (
	"encoding/json"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/streetvision/vmeta/pkg/isobmff"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// An example line: [1623057074211]$GPVTG,,T,,M,0.078,N,0.144,K,D*28[1623057075215]
var nmeaLineRegex = regexp.MustCompile(`^\s*\[(\d+)\]\s*(\$\w{5},[^\[]*?)\s*(\[\d+\])?\s*$`)

var (
	typeFree = isobmff.TypeFREE
	typeGPS  = isobmff.TypeGPS
	typeCprt = isobmff.TypeCPRT
)

// ExtractPoints reads the GPS track. ok is false when the file has no
// free/gps box at all; a present but empty or unparseable box yields an
// empty, ok slice. Point times are rebased so the first fix is at zero
// seconds.
func ExtractPoints(r io.ReadSeeker) ([]*telemetry.GPSPoint, bool, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, false, err
	}
	gpsData, err := isobmff.ParseMP4DataFirst(r, isobmff.BoxPath(typeFree, typeGPS))
	if err != nil {
		return nil, false, err
	}
	if gpsData == nil {
		return nil, false, nil
	}

	points := parseGPSBox(gpsData)
	if len(points) == 0 {
		return points, true, nil
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Time < points[j].Time })

	firstTime := points[0].Time
	for _, p := range points {
		p.Time = (p.Time - firstTime) / 1000
	}
	return points, true, nil
}

// parseGPSBox scans the box line by line. Point times are the bracketed
// epoch milliseconds; malformed lines and non-GGA sentences are skipped.
func parseGPSBox(gpsData []byte) []*telemetry.GPSPoint {
	var points []*telemetry.GPSPoint
	for _, line := range strings.Split(string(gpsData), "\n") {
		line = strings.TrimSuffix(line, "\r")
		match := nmeaLineRegex.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		sentence := match[2]
		if !strings.HasPrefix(sentence, "$GPGGA") && !strings.HasPrefix(sentence, "$GNGGA") {
			continue
		}
		p := ParseGGA(sentence)
		if p == nil {
			continue
		}
		epochMS, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			continue
		}
		p.Time = float64(epochMS)
		points = append(points, p)
	}
	return points
}

// ParseGGA decodes one GGA sentence. Sentences without a positive fix
// quality, and sentences too short or malformed to carry a position, return
// nil.
func ParseGGA(sentence string) *telemetry.GPSPoint {
	if i := strings.IndexByte(sentence, '*'); i >= 0 {
		sentence = sentence[:i]
	}
	fields := strings.Split(sentence, ",")
	// talker, time, lat, N/S, lon, E/W, quality, satellites, HDOP, altitude, ...
	if len(fields) < 10 {
		return nil
	}

	quality, err := strconv.Atoi(fields[6])
	if err != nil || quality < 1 {
		return nil
	}

	lat, ok := parseCoordinate(fields[2], fields[3])
	if !ok {
		return nil
	}
	lon, ok := parseCoordinate(fields[4], fields[5])
	if !ok {
		return nil
	}

	p := &telemetry.GPSPoint{
		Point: telemetry.Point{Lat: lat, Lon: lon},
		Fix:   telemetry.Fix(telemetry.GPSFix3D),
	}
	if alt, err := strconv.ParseFloat(fields[9], 64); err == nil {
		p.Alt = telemetry.Float(alt)
	}
	return p
}

// parseCoordinate converts the NMEA ddmm.mmmm / dddmm.mmmm form to decimal
// degrees, negative for the southern and western hemispheres.
func parseCoordinate(value, hemisphere string) (float64, bool) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || value == "" {
		return 0, false
	}
	degrees := float64(int(v / 100))
	minutes := v - degrees*100
	decimal := degrees + minutes/60
	switch hemisphere {
	case "S", "W":
		decimal = -decimal
	case "N", "E":
	default:
		return 0, false
	}
	return decimal, true
}

// ExtractCameraModel reads the camera model from the free/cprt box, which
// is either a JSON object with a model field or a semicolon-delimited
// record whose second field is the model. Failures degrade to an empty
// string.
func ExtractCameraModel(r io.ReadSeeker) string {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return ""
	}
	cprt, err := isobmff.ParseMP4DataFirst(r, isobmff.BoxPath(typeFree, typeCprt))
	if err != nil || cprt == nil {
		return ""
	}

	text := strings.Trim(strings.TrimSpace(string(cprt)), "\x00")

	var parsed struct {
		Model any `json:"model"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		if parsed.Model == nil {
			return ""
		}
		if s, ok := parsed.Model.(string); ok {
			return strings.TrimSpace(s)
		}
		return ""
	}

	fields := strings.Split(text, ";")
	if len(fields) >= 2 {
		return strings.TrimSpace(fields[1])
	}
	return ""
}
