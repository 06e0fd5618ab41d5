package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"farmetrics-backend/internal/geo"
)

// GeoPoint stores a WGS-84 point as a GeoJSON text column and marshals to the
// API as {"type":"Point","coordinates":[lon,lat]} (SRID 4326, lon/lat order).
type GeoPoint struct {
	geo.Point
}

type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// MarshalJSON implements json.Marshaler.
func (p GeoPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(geoJSONPoint{
		Type:        "Point",
		Coordinates: [2]float64{p.Lon, p.Lat},
	})
}

// UnmarshalJSON implements json.Unmarshaler for request bodies.
func (p *GeoPoint) UnmarshalJSON(data []byte) error {
	var gj geoJSONPoint
	if err := json.Unmarshal(data, &gj); err != nil {
		return err
	}
	if gj.Type != "" && gj.Type != "Point" {
		return errors.New("geometry type must be Point")
	}
	p.Lon = gj.Coordinates[0]
	p.Lat = gj.Coordinates[1]
	return nil
}

// Scan implements sql.Scanner for reading from DB (json/text column).
func (p *GeoPoint) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return p.UnmarshalJSON(v)
	case string:
		return p.UnmarshalJSON([]byte(v))
	default:
		return errors.New("unsupported type for GeoPoint")
	}
}

// Value implements driver.Valuer for writing to DB.
func (p GeoPoint) Value() (driver.Value, error) {
	b, err := p.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// GeoMultiPolygon stores a WGS-84 multipolygon boundary as a GeoJSON text
// column. Per GeoJSON, each polygon's first ring is the exterior and the rest
// are holes.
type GeoMultiPolygon struct {
	geo.MultiPolygon
}

type geoJSONMultiPolygon struct {
	Type        string          `json:"type"`
	Coordinates [][][][]float64 `json:"coordinates"`
}

// MarshalJSON implements json.Marshaler.
func (m GeoMultiPolygon) MarshalJSON() ([]byte, error) {
	coords := make([][][][]float64, 0, len(m.MultiPolygon))
	for _, poly := range m.MultiPolygon {
		rings := make([][][]float64, 0, 1+len(poly.Holes))
		rings = append(rings, ringCoords(poly.Exterior))
		for _, hole := range poly.Holes {
			rings = append(rings, ringCoords(hole))
		}
		coords = append(coords, rings)
	}
	return json.Marshal(geoJSONMultiPolygon{Type: "MultiPolygon", Coordinates: coords})
}

func ringCoords(r geo.Ring) [][]float64 {
	out := make([][]float64, 0, len(r))
	for _, p := range r {
		out = append(out, []float64{p.Lon, p.Lat})
	}
	return out
}

// UnmarshalJSON implements json.Unmarshaler for request bodies.
func (m *GeoMultiPolygon) UnmarshalJSON(data []byte) error {
	var gj geoJSONMultiPolygon
	if err := json.Unmarshal(data, &gj); err != nil {
		return err
	}
	if gj.Type != "" && gj.Type != "MultiPolygon" {
		return errors.New("geometry type must be MultiPolygon")
	}
	mp := make(geo.MultiPolygon, 0, len(gj.Coordinates))
	for _, rings := range gj.Coordinates {
		if len(rings) == 0 {
			return errors.New("polygon must have an exterior ring")
		}
		poly := geo.Polygon{Exterior: coordsRing(rings[0])}
		for _, hole := range rings[1:] {
			poly.Holes = append(poly.Holes, coordsRing(hole))
		}
		mp = append(mp, poly)
	}
	m.MultiPolygon = mp
	return nil
}

func coordsRing(coords [][]float64) geo.Ring {
	r := make(geo.Ring, 0, len(coords))
	for _, c := range coords {
		if len(c) < 2 {
			continue
		}
		r = append(r, geo.Point{Lon: c[0], Lat: c[1]})
	}
	return r
}

// Scan implements sql.Scanner for reading from DB (json/text column).
func (m *GeoMultiPolygon) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return errors.New("unsupported type for GeoMultiPolygon")
	}
}

// Value implements driver.Valuer for writing to DB.
func (m GeoMultiPolygon) Value() (driver.Value, error) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
