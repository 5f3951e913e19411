package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCoordinates(t *testing.T) {
	assert.NoError(t, ValidateCoordinates(0, 0))
	assert.NoError(t, ValidateCoordinates(90, 180))
	assert.NoError(t, ValidateCoordinates(-90, -180))

	assert.Error(t, ValidateCoordinates(90.0001, 0))
	assert.Error(t, ValidateCoordinates(-91, 0))
	assert.Error(t, ValidateCoordinates(0, 180.5))
	assert.Error(t, ValidateCoordinates(0, -200))
	assert.Error(t, ValidateCoordinates(math.NaN(), 0))
	assert.Error(t, ValidateCoordinates(0, math.NaN()))
}

func TestDistanceMeters(t *testing.T) {
	assert.Zero(t, DistanceMeters(52.52, 13.405, 52.52, 13.405))

	// Berlin to Hamburg, roughly 255 km.
	d := DistanceMeters(52.52, 13.405, 53.5511, 9.9937)
	assert.InDelta(t, 255_000, d, 5_000)

	// One degree of latitude is about 111 km everywhere.
	d = DistanceMeters(10, 0, 11, 0)
	assert.InDelta(t, 111_195, d, 100)
}

func TestBoundingDeltas(t *testing.T) {
	latDelta, lngDelta := BoundingDeltas(0, 111_195)
	assert.InDelta(t, 1.0, latDelta, 0.001)
	// At the equator a longitude degree equals a latitude degree.
	assert.InDelta(t, 1.0, lngDelta, 0.001)

	// At 60°N longitude degrees are half as wide.
	_, lngDelta = BoundingDeltas(60, 111_195)
	assert.InDelta(t, 2.0, lngDelta, 0.01)

	// Near the pole the longitude delta covers the hemisphere.
	_, lngDelta = BoundingDeltas(89.9, 5_000)
	require.Equal(t, 180.0, lngDelta)
}
