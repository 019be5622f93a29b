// Package geo derives and evaluates the rectangular geofences used for
// location-verified check-ins.
package geo

import (
	"math"

	"rollcall/pkg/types"
)

const (
	// earthRadiusKm is the mean Earth radius used by the equirectangular
	// approximation.
	earthRadiusKm = 6371.0

	// DefaultRadiusMeters applies when an organization sets a geofence
	// center without an explicit radius.
	DefaultRadiusMeters = 100.0
)

// FenceFromCenter computes the bounding rectangle around center with the
// given radius in meters. Longitude deltas are widened by 1/cos(lat) to
// compensate for meridian convergence. A non-positive radius falls back to
// DefaultRadiusMeters.
func FenceFromCenter(center types.GeoPoint, radiusMeters float64) types.GeoFence {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	d := radiusMeters / 1000.0 // km

	lat := center.Lat * math.Pi / 180
	long := center.Long * math.Pi / 180

	latDelta := d / earthRadiusKm
	longDelta := d / earthRadiusKm / math.Cos(lat)

	return types.GeoFence{
		TopLeft: types.GeoPoint{
			Lat:  (lat + latDelta) * 180 / math.Pi,
			Long: (long - longDelta) * 180 / math.Pi,
		},
		BottomRight: types.GeoPoint{
			Lat:  (lat - latDelta) * 180 / math.Pi,
			Long: (long + longDelta) * 180 / math.Pi,
		},
	}
}

// Contains reports whether p lies within the fence, inclusive on both axes:
// latitude between BottomRight.Lat and TopLeft.Lat, longitude between
// TopLeft.Long and BottomRight.Long.
func Contains(fence types.GeoFence, p types.GeoPoint) bool {
	if p.Lat < fence.BottomRight.Lat || p.Lat > fence.TopLeft.Lat {
		return false
	}
	if p.Long < fence.TopLeft.Long || p.Long > fence.BottomRight.Long {
		return false
	}
	return true
}
