// Package project defines the spatial project aggregate and its validation
// rules.
package project

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxNameLength bounds the project name.
	MaxNameLength = 32
	// MaxDescriptionLength bounds the optional description.
	MaxDescriptionLength = 256

	dateLayout = "2006-01-02"
)

// Project is a spatial project: a named piece of work scoped to a date range
// and an area of interest on the globe.
type Project struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	DateRange      DateRange         `json:"date_range"`
	AreaOfInterest json.RawMessage   `json:"area_of_interest"`
	Geometries     []json.RawMessage `json:"area_of_interest_geom,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Stats aggregates the spatial footprint of all stored projects.
type Stats struct {
	Projects       int64   `json:"projects"`
	Geometries     int64   `json:"geometries"`
	TotalAreaSqM   float64 `json:"total_area_sq_m"`
	LargestAreaSqM float64 `json:"largest_area_sq_m"`
}

// DateRange is a half-open (or degenerate closed) range of civil dates.
// Lower and Upper use the YYYY-MM-DD form throughout the API and the store.
type DateRange struct {
	Lower  string `json:"lower"`
	Upper  string `json:"upper"`
	Bounds string `json:"bounds,omitempty"`
}

// NewDateRange validates the lower/upper pair and derives the range bounds:
// [) for a proper range, [] when the two dates coincide.
func NewDateRange(lower, upper string) (DateRange, error) {
	lower = strings.TrimSpace(lower)
	upper = strings.TrimSpace(upper)
	if lower == "" || upper == "" {
		return DateRange{}, Invalid("date_range has to contain both 'lower' and 'upper' fields")
	}

	lowerT, err := time.Parse(dateLayout, lower)
	if err != nil {
		return DateRange{}, Invalid("the field lower does not follow YYYY-MM-DD format")
	}
	upperT, err := time.Parse(dateLayout, upper)
	if err != nil {
		return DateRange{}, Invalid("the field upper does not follow YYYY-MM-DD format")
	}
	if lowerT.After(upperT) {
		return DateRange{}, Invalid("the lower date cannot be higher than the upper date")
	}

	bounds := "[)"
	if lowerT.Equal(upperT) {
		bounds = "[]"
	}
	return DateRange{Lower: lower, Upper: upper, Bounds: bounds}, nil
}

// LowerTime returns the parsed lower bound. The range must have been built
// through NewDateRange.
func (r DateRange) LowerTime() time.Time {
	t, _ := time.Parse(dateLayout, r.Lower)
	return t
}

// UpperTime returns the parsed upper bound.
func (r DateRange) UpperTime() time.Time {
	t, _ := time.Parse(dateLayout, r.Upper)
	return t
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool { return r.Lower == "" && r.Upper == "" }

// Overlaps reports whether two ranges share at least one day, honoring the
// exclusive upper bound of proper ranges.
func (r DateRange) Overlaps(other DateRange) bool {
	if r.IsZero() || other.IsZero() {
		return true
	}
	rUpper := r.upperInclusive()
	oUpper := other.upperInclusive()
	return !r.LowerTime().After(oUpper) && !other.LowerTime().After(rUpper)
}

func (r DateRange) upperInclusive() time.Time {
	if r.Bounds == "[]" {
		return r.UpperTime()
	}
	return r.UpperTime().AddDate(0, 0, -1)
}

// ValidateName checks the project name constraints. Limits count characters,
// not bytes.
func ValidateName(name string) error {
	if name == "" {
		return Invalid("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return Invalid("name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// ValidateDescription checks the optional description constraints.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return Invalid("description must be at most %d characters", MaxDescriptionLength)
	}
	return nil
}

// BoundingBox is a lon/lat envelope used to filter project listings.
type BoundingBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// ParseBoundingBox parses the "minLon,minLat,maxLon,maxLat" query form.
func ParseBoundingBox(raw string) (BoundingBox, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return BoundingBox{}, Invalid("bbox must be minLon,minLat,maxLon,maxLat")
	}
	vals := make([]float64, 4)
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return BoundingBox{}, Invalid("bbox component %q is not a number", part)
		}
		vals[i] = v
	}
	box := BoundingBox{MinLon: vals[0], MinLat: vals[1], MaxLon: vals[2], MaxLat: vals[3]}
	if box.MinLon > box.MaxLon || box.MinLat > box.MaxLat {
		return BoundingBox{}, Invalid("bbox minimum corner must not exceed maximum corner")
	}
	if box.MinLon < -180 || box.MaxLon > 180 || box.MinLat < -90 || box.MaxLat > 90 {
		return BoundingBox{}, Invalid("bbox must lie within lon [-180,180] and lat [-90,90]")
	}
	return box, nil
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}

// Filter narrows project listings. Zero value selects everything.
type Filter struct {
	BBox  *BoundingBox
	Dates *DateRange
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool { return f.BBox == nil && f.Dates == nil }
