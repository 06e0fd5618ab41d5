package validation

import "regexp"

// Region codes look like GH, GH-ASHANTI or GH-ASHANTI-KUMASI: uppercase
// alphanumeric segments joined by hyphens.
var regionCodeRe = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

var levelTypes = map[string]struct{}{
	"country":  {},
	"region":   {},
	"district": {},
	"location": {},
}

// IsValidLongitude reports whether lon is within [-180, 180].
func IsValidLongitude(lon float64) bool {
	return lon >= -180 && lon <= 180
}

// IsValidLatitude reports whether lat is within [-90, 90].
func IsValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

// IsValidCoordinate checks a (longitude, latitude) pair.
func IsValidCoordinate(lon, lat float64) bool {
	return IsValidLongitude(lon) && IsValidLatitude(lat)
}

func IsValidRegionCode(code string) bool {
	return code != "" && len(code) <= 50 && regionCodeRe.MatchString(code)
}

func IsValidLevelType(levelType string) bool {
	_, ok := levelTypes[levelType]
	return ok
}
