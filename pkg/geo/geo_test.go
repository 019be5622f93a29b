package geo

import (
	"testing"

	"rollcall/pkg/types"
)

var bangalore = types.GeoPoint{Lat: 12.9716, Long: 77.5946}

func TestFenceContainsCenter(t *testing.T) {
	fence := FenceFromCenter(bangalore, 100)

	if !Contains(fence, bangalore) {
		t.Errorf("center %v should be inside its own 100m fence %v", bangalore, fence)
	}
}

func TestFenceExcludesPointOutsideRadius(t *testing.T) {
	fence := FenceFromCenter(bangalore, 100)

	// 200m due north: one degree of latitude is ~111.2km.
	north := types.GeoPoint{Lat: bangalore.Lat + 0.200/111.2, Long: bangalore.Long}
	if Contains(fence, north) {
		t.Errorf("point 200m north %v should be outside 100m fence %v", north, fence)
	}
}

func TestFenceBoundaryInclusive(t *testing.T) {
	fence := FenceFromCenter(bangalore, 100)

	edges := []types.GeoPoint{
		{Lat: fence.TopLeft.Lat, Long: bangalore.Long},
		{Lat: fence.BottomRight.Lat, Long: bangalore.Long},
		{Lat: bangalore.Lat, Long: fence.TopLeft.Long},
		{Lat: bangalore.Lat, Long: fence.BottomRight.Long},
	}
	for _, p := range edges {
		if !Contains(fence, p) {
			t.Errorf("edge point %v should be inside fence %v (inclusive bounds)", p, fence)
		}
	}
}

func TestFenceDefaultRadius(t *testing.T) {
	explicit := FenceFromCenter(bangalore, DefaultRadiusMeters)
	fallback := FenceFromCenter(bangalore, 0)

	if explicit != fallback {
		t.Errorf("zero radius should fall back to the %vm default: got %v want %v",
			DefaultRadiusMeters, fallback, explicit)
	}
}

func TestFenceIsOrdered(t *testing.T) {
	fence := FenceFromCenter(bangalore, 150)

	if fence.TopLeft.Lat <= fence.BottomRight.Lat {
		t.Errorf("top-left latitude %v should be north of bottom-right %v",
			fence.TopLeft.Lat, fence.BottomRight.Lat)
	}
	if fence.TopLeft.Long >= fence.BottomRight.Long {
		t.Errorf("top-left longitude %v should be west of bottom-right %v",
			fence.TopLeft.Long, fence.BottomRight.Long)
	}
}
