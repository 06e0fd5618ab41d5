package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCoordinate(t *testing.T) {
	assert.True(t, IsValidCoordinate(-0.187, 5.6037))
	assert.True(t, IsValidCoordinate(180, -90))
	assert.False(t, IsValidCoordinate(-181, 0))
	assert.False(t, IsValidCoordinate(0, 90.1))
}

func TestIsValidRegionCode(t *testing.T) {
	assert.True(t, IsValidRegionCode("GH"))
	assert.True(t, IsValidRegionCode("GH-ASHANTI-KUMASI"))
	assert.False(t, IsValidRegionCode(""))
	assert.False(t, IsValidRegionCode("gh-ashanti"))
	assert.False(t, IsValidRegionCode("GH--ASHANTI"))
	assert.False(t, IsValidRegionCode("GH-ASHANTI-"))
}

func TestIsValidLevelType(t *testing.T) {
	for _, lt := range []string{"country", "region", "district", "location"} {
		assert.True(t, IsValidLevelType(lt))
	}
	assert.False(t, IsValidLevelType("continent"))
	assert.False(t, IsValidLevelType(""))
}
