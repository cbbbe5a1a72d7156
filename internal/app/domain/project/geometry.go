package project

import (
	"encoding/json"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// ParseAreaOfInterest decodes and validates a GeoJSON area of interest. A
// FeatureCollection contributes one geometry per feature, a
// GeometryCollection one per member geometry; a Feature or a bare geometry
// contributes itself.
func ParseAreaOfInterest(raw json.RawMessage) ([]orb.Geometry, error) {
	if len(raw) == 0 {
		return nil, Invalid("area_of_interest is required")
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, Invalid("area_of_interest has invalid structure")
	}

	var geometries []orb.Geometry
	switch envelope.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, Invalid("area_of_interest has invalid structure")
		}
		for _, feature := range fc.Features {
			if feature.Geometry == nil {
				return nil, Invalid("area_of_interest contains a feature without geometry")
			}
			geometries = append(geometries, feature.Geometry)
		}
	case "Feature":
		feature, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, Invalid("area_of_interest has invalid structure")
		}
		if feature.Geometry == nil {
			return nil, Invalid("area_of_interest contains a feature without geometry")
		}
		geometries = append(geometries, feature.Geometry)
	case "GeometryCollection":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, Invalid("area_of_interest has invalid structure")
		}
		collection, ok := g.Geometry().(orb.Collection)
		if !ok {
			return nil, Invalid("area_of_interest has invalid structure")
		}
		geometries = append(geometries, collection...)
	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, Invalid("area_of_interest has invalid structure")
		}
		geometries = append(geometries, g.Geometry())
	default:
		return nil, Invalid("area_of_interest has unsupported type %q", envelope.Type)
	}

	if len(geometries) == 0 {
		return nil, Invalid("area_of_interest contains no geometries")
	}
	for _, g := range geometries {
		if err := validateGeometry(g); err != nil {
			return nil, err
		}
	}
	return geometries, nil
}

// EncodeGeometry renders a geometry back to its GeoJSON representation.
func EncodeGeometry(g orb.Geometry) json.RawMessage {
	data, err := json.Marshal(geojson.NewGeometry(g))
	if err != nil {
		return nil
	}
	return data
}

// Area returns the geodesic area of a geometry in square meters.
func Area(g orb.Geometry) float64 {
	return math.Abs(geo.Area(g))
}

// IntersectsBox reports whether the geometry's bound intersects the envelope.
func IntersectsBox(g orb.Geometry, box BoundingBox) bool {
	envelope := orb.Bound{
		Min: orb.Point{box.MinLon, box.MinLat},
		Max: orb.Point{box.MaxLon, box.MaxLat},
	}
	return g.Bound().Intersects(envelope)
}

func validateGeometry(g orb.Geometry) error {
	switch geom := g.(type) {
	case orb.Point:
		return validatePoint(geom)
	case orb.MultiPoint:
		if len(geom) == 0 {
			return Invalid("area_of_interest has invalid geometry: empty MultiPoint")
		}
		for _, p := range geom {
			if err := validatePoint(p); err != nil {
				return err
			}
		}
	case orb.LineString:
		return validateLineString(geom)
	case orb.MultiLineString:
		if len(geom) == 0 {
			return Invalid("area_of_interest has invalid geometry: empty MultiLineString")
		}
		for _, ls := range geom {
			if err := validateLineString(ls); err != nil {
				return err
			}
		}
	case orb.Polygon:
		return validatePolygon(geom)
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return Invalid("area_of_interest has invalid geometry: empty MultiPolygon")
		}
		for _, poly := range geom {
			if err := validatePolygon(poly); err != nil {
				return err
			}
		}
	case orb.Collection:
		if len(geom) == 0 {
			return Invalid("area_of_interest has invalid geometry: empty GeometryCollection")
		}
		for _, member := range geom {
			if err := validateGeometry(member); err != nil {
				return err
			}
		}
	default:
		return Invalid("area_of_interest has invalid geometry: unsupported type %s", g.GeoJSONType())
	}
	return nil
}

func validatePoint(p orb.Point) error {
	if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
		return Invalid("area_of_interest has invalid geometry: coordinate (%g, %g) out of range", p.Lon(), p.Lat())
	}
	return nil
}

func validateLineString(ls orb.LineString) error {
	if len(ls) < 2 {
		return Invalid("area_of_interest has invalid geometry: LineString needs at least 2 positions")
	}
	for _, p := range ls {
		if err := validatePoint(p); err != nil {
			return err
		}
	}
	return nil
}

func validatePolygon(poly orb.Polygon) error {
	if len(poly) == 0 {
		return Invalid("area_of_interest has invalid geometry: empty Polygon")
	}
	for _, ring := range poly {
		if len(ring) < 4 {
			return Invalid("area_of_interest has invalid geometry: ring needs at least 4 positions")
		}
		if !ring.Closed() {
			return Invalid("area_of_interest has invalid geometry: ring is not closed")
		}
		for _, p := range ring {
			if err := validatePoint(p); err != nil {
				return err
			}
		}
	}
	return nil
}
