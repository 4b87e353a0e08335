// Package gpsfilter removes noisy fixes from a GPS track. It was tuned for
// GoPro receivers but works for any track carrying fixes, precisions and
// ground speeds.
package gpsfilter

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/streetvision/vmeta/pkg/geo"
	"github.com/streetvision/vmeta/pkg/telemetry"
)

// Options bound what counts as a usable fix.
type Options struct {
	// GPSPrecision is the receiver's nominal precision in meters. The
	// outlier distance threshold never drops below twice this value.
	GPSPrecision float64
	// MaxDOP is the highest acceptable dilution of precision, in the
	// DOP*100 representation the receivers report.
	MaxDOP float64
	// GPSFixes are the fix values treated as a lock.
	GPSFixes []telemetry.GPSFix
}

// DefaultOptions mirrors GoPro receiver behavior: 15 m precision, DOP
// ceiling 10.00, and only 2D/3D locks accepted.
func DefaultOptions() Options {
	return Options{
		GPSPrecision: 15,
		MaxDOP:       1000,
		GPSFixes:     []telemetry.GPSFix{telemetry.GPSFix2D, telemetry.GPSFix3D},
	}
}

// ErrTooFewValues is returned by UpperWhisker for inputs it cannot compute
// quartiles over.
var ErrTooFewValues = errors.New("gpsfilter: at least 2 values are required for IQR")

// PointSpeed is the ground speed in m/s from p1 to p2. Coincident
// timestamps give +Inf.
func PointSpeed(p1, p2 *telemetry.GPSPoint) float64 {
	s := geo.Distance(p1.Lat, p1.Lon, p2.Lat, p2.Lon)
	t := math.Abs(p2.Time - p1.Time)
	if t == 0 {
		return math.Inf(1)
	}
	return s / t
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// UpperWhisker computes Q3 + 1.5*IQR of the values; values above it are
// outliers. See https://en.wikipedia.org/wiki/Interquartile_range
func UpperWhisker(values []float64) (float64, error) {
	n := len(values)
	if n < 2 {
		return 0, ErrTooFewValues
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := n / 2
	q1 := median(sorted[:mid])
	var q3 float64
	if n%2 == 1 {
		// for values [0, 1, 2, 3, 4], q3 is over [3, 4]
		q3 = median(sorted[mid+1:])
	} else {
		// for values [0, 1, 2, 3], q3 is over [2, 3]
		q3 = median(sorted[mid:])
	}
	iqr := q3 - q1
	return q3 + iqr*1.5, nil
}

// decider reports whether the boundary between two adjacent points should
// split (or, for merging, join) their sequences.
type decider func(p1, p2 *telemetry.GPSPoint) bool

func distanceGreaterThan(maxDistance float64) decider {
	return func(p1, p2 *telemetry.GPSPoint) bool {
		return geo.Distance(p1.Lat, p1.Lon, p2.Lat, p2.Lon) > maxDistance
	}
}

func speedAtMost(maxSpeed float64) decider {
	return func(p1, p2 *telemetry.GPSPoint) bool {
		return PointSpeed(p1, p2) <= maxSpeed
	}
}

// splitIf cuts the time-ordered points wherever split reports true for a
// consecutive pair.
func splitIf(points []*telemetry.GPSPoint, split decider) [][]*telemetry.GPSPoint {
	var sequences [][]*telemetry.GPSPoint
	for i, p := range points {
		if len(sequences) > 0 && !split(points[i-1], p) {
			last := len(sequences) - 1
			sequences[last] = append(sequences[last], p)
		} else {
			sequences = append(sequences, []*telemetry.GPSPoint{p})
		}
	}
	return sequences
}

// clusterSequences is one-dimensional DBSCAN with minPoints 1: each
// sequence joins the cluster of the first earlier sequence whose tail it
// can merge with.
func clusterSequences(sequences [][]*telemetry.GPSPoint, merge decider) map[int][]*telemetry.GPSPoint {
	mergeTo := make(map[int]int, len(sequences))
	for left := range sequences {
		if _, ok := mergeTo[left]; !ok {
			mergeTo[left] = left
		}
		for right := left + 1; right < len(sequences); right++ {
			if _, ok := mergeTo[right]; ok {
				continue
			}
			if merge(sequences[left][len(sequences[left])-1], sequences[right][0]) {
				mergeTo[right] = mergeTo[left]
				break
			}
		}
	}

	merged := make(map[int][]*telemetry.GPSPoint)
	for idx, s := range sequences {
		merged[mergeTo[idx]] = append(merged[mergeTo[idx]], s...)
	}
	return merged
}

// findMajority picks the largest cluster, preferring the earliest on ties.
func findMajority(clusters map[int][]*telemetry.GPSPoint) []*telemetry.GPSPoint {
	keys := make([]int, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var best []*telemetry.GPSPoint
	for _, k := range keys {
		if len(clusters[k]) > len(best) {
			best = clusters[k]
		}
	}
	return best
}

// RemoveOutliers drops the points that teleport: the track is split where
// consecutive points are farther apart than the distance upper whisker
// (floored at twice the receiver precision), the fragments are re-merged
// where the implied speed stays under the ground-speed upper whisker, and
// the biggest surviving cluster wins.
func RemoveOutliers(points []*telemetry.GPSPoint, gpsPrecision float64) []*telemetry.GPSPoint {
	distances := make([]float64, 0, len(points))
	for i := 1; i < len(points); i++ {
		distances = append(distances,
			geo.Distance(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon))
	}
	if len(distances) < 2 {
		return points
	}

	maxDistance, err := UpperWhisker(distances)
	if err != nil {
		return points
	}
	maxDistance = math.Max(gpsPrecision+gpsPrecision, maxDistance)
	sequences := splitIf(points, distanceGreaterThan(maxDistance))
	slog.Debug("split track", "sequences", len(sequences), "maxDistance", maxDistance)

	var groundSpeeds []float64
	for _, p := range points {
		if p.GroundSpeed != nil {
			groundSpeeds = append(groundSpeeds, *p.GroundSpeed)
		}
	}
	if len(groundSpeeds) < 2 {
		return points
	}

	maxSpeed, err := UpperWhisker(groundSpeeds)
	if err != nil {
		return points
	}
	merged := clusterSequences(sequences, speedAtMost(maxSpeed))
	slog.Debug("merged track", "clusters", len(merged), "maxSpeed", maxSpeed)

	return findMajority(merged)
}

// RemoveNoisyPoints drops points with a rejected fix or too-high DOP, then
// removes spatial outliers. Points that report no fix or no precision pass
// the prechecks.
func RemoveNoisyPoints(points []*telemetry.GPSPoint, opts Options) []*telemetry.GPSPoint {
	kept := make([]*telemetry.GPSPoint, 0, len(points))
	for _, p := range points {
		if p.Fix != nil && !fixAccepted(*p.Fix, opts.GPSFixes) {
			continue
		}
		kept = append(kept, p)
	}
	if n := len(points) - len(kept); n > 0 {
		slog.Debug("removed points with rejected GPS fix", "count", n)
	}

	points, kept = kept, kept[:0:len(kept)]
	for _, p := range points {
		if p.Precision != nil && *p.Precision > opts.MaxDOP {
			continue
		}
		kept = append(kept, p)
	}
	if n := len(points) - len(kept); n > 0 {
		slog.Debug("removed points above DOP ceiling", "count", n, "maxDOP", opts.MaxDOP)
	}

	filtered := RemoveOutliers(kept, opts.GPSPrecision)
	if n := len(kept) - len(filtered); n > 0 {
		slog.Debug("removed outlier points", "count", n)
	}
	return filtered
}

func fixAccepted(fix telemetry.GPSFix, accepted []telemetry.GPSFix) bool {
	for _, f := range accepted {
		if fix == f {
			return true
		}
	}
	return false
}
