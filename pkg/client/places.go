package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Synchronous API routes.
const (
	APIGeocode             = "/v1/geocode/search"
	APIReverseGeocode      = "/v1/geocode/reverse"
	APIPlaces              = "/v2/places"
	APIPlaceDetails        = "/v2/place-details"
	APIIsoline             = "/v1/isoline"
	APIBoundariesPartOf    = "/v1/boundaries/part-of"
	APIBoundariesConsistOf = "/v1/boundaries/consists-of"
)

// PlacesQuery selects places by category.
type PlacesQuery struct {
	// Categories is required, e.g. []string{"catering.cafe"}.
	Categories []string

	// Filter restricts results to a geometry, e.g. "circle:13.4,52.5,5000".
	Filter string

	// Name filters by place name.
	Name string

	// Proximity orders results by distance to this point.
	Proximity *geom.Point

	// Conditions all must hold, e.g. "wheelchair".
	Conditions []string

	// Limit defaults to 20.
	Limit  int
	Offset int
	Lang   string
}

// PlaceDetailsQuery identifies a place by ID or by coordinates, not both.
type PlaceDetailsQuery struct {
	ID       string
	Point    *geom.Point
	Features []string
	Lang     string
}

// IsolineQuery describes a reachability area around a point.
type IsolineQuery struct {
	Point *geom.Point

	// Range is seconds for Type "time", meters for Type "distance".
	Range int

	// Mode defaults to "drive".
	Mode string

	// Type defaults to "time".
	Type string
}

// BoundariesQuery identifies a place by ID or by coordinates.
// BoundariesConsistsOf only accepts an ID.
type BoundariesQuery struct {
	ID    string
	Point *geom.Point

	// Boundary defaults to "administrative".
	Boundary string

	// Geometry defaults to "point"; geometry_1000/5000/10000 return shapes.
	Geometry string

	// Sublevel is the relative subdivision level for consists-of (default 1).
	Sublevel int

	Lang string
}

// Geocode searches for a free-text address. Additional params, such as
// structured fields (city, postcode) or filters, are passed through.
func (c *Client) Geocode(ctx context.Context, text string, params map[string]string) (*geojson.FeatureCollection, error) {
	q := url.Values{}
	for k, v := range params {
		if k == "format" {
			continue
		}
		q.Set(k, v)
	}
	if text != "" {
		q.Set("text", text)
	}
	if len(q) == 0 {
		return nil, fmt.Errorf("%w: geocode needs text or structured parameters", ErrInvalidArgument)
	}
	return c.featureCollection(ctx, APIGeocode, q)
}

// ReverseGeocode looks up the address at point (XY = lon, lat).
func (c *Client) ReverseGeocode(ctx context.Context, point *geom.Point, params map[string]string) (*geojson.FeatureCollection, error) {
	if point == nil {
		return nil, fmt.Errorf("%w: reverse geocode needs a point", ErrInvalidArgument)
	}
	q := url.Values{}
	for k, v := range params {
		if k == "format" {
			continue
		}
		q.Set(k, v)
	}
	setPoint(q, point)
	return c.featureCollection(ctx, APIReverseGeocode, q)
}

// Places lists places of the given categories.
func (c *Client) Places(ctx context.Context, query PlacesQuery) (*geojson.FeatureCollection, error) {
	if len(query.Categories) == 0 {
		return nil, fmt.Errorf("%w: places needs at least one category", ErrInvalidArgument)
	}

	q := url.Values{}
	q.Set("categories", strings.Join(query.Categories, ","))
	if query.Filter != "" {
		q.Set("filter", query.Filter)
	}
	if query.Name != "" {
		q.Set("name", query.Name)
	}
	if query.Proximity != nil {
		q.Set("bias", fmt.Sprintf("proximity:%s,%s", formatCoord(query.Proximity.X()), formatCoord(query.Proximity.Y())))
	}
	if len(query.Conditions) > 0 {
		q.Set("conditions", strings.Join(query.Conditions, ","))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	q.Set("limit", strconv.Itoa(limit))
	if query.Offset > 0 {
		q.Set("offset", strconv.Itoa(query.Offset))
	}
	if query.Lang != "" {
		q.Set("lang", query.Lang)
	}

	return c.featureCollection(ctx, APIPlaces, q)
}

// PlaceDetails returns details of one place.
func (c *Client) PlaceDetails(ctx context.Context, query PlaceDetailsQuery) (*geojson.FeatureCollection, error) {
	q := url.Values{}
	if err := setLocation(q, query.ID, query.Point); err != nil {
		return nil, err
	}
	if len(query.Features) > 0 {
		q.Set("features", strings.Join(query.Features, ","))
	}
	if query.Lang != "" {
		q.Set("lang", query.Lang)
	}
	return c.featureCollection(ctx, APIPlaceDetails, q)
}

// Isoline returns the area reachable from a point within a time or distance.
func (c *Client) Isoline(ctx context.Context, query IsolineQuery) (*geojson.FeatureCollection, error) {
	if query.Point == nil {
		return nil, fmt.Errorf("%w: isoline needs a point", ErrInvalidArgument)
	}
	if query.Range <= 0 {
		return nil, fmt.Errorf("%w: isoline range must be positive (got %d)", ErrInvalidArgument, query.Range)
	}
	mode := query.Mode
	if mode == "" {
		mode = "drive"
	}
	typ := query.Type
	if typ == "" {
		typ = "time"
	}
	if typ != "time" && typ != "distance" {
		return nil, fmt.Errorf("%w: isoline type must be time or distance (got %q)", ErrInvalidArgument, typ)
	}

	q := url.Values{}
	setPoint(q, query.Point)
	q.Set("range", strconv.Itoa(query.Range))
	q.Set("mode", mode)
	q.Set("type", typ)
	q.Set("format", "geojson")

	return c.featureCollection(ctx, APIIsoline, q)
}

// BoundariesPartOf returns the boundaries a location belongs to.
func (c *Client) BoundariesPartOf(ctx context.Context, query BoundariesQuery) (*geojson.FeatureCollection, error) {
	q := boundaryParams(query)
	if err := setLocation(q, query.ID, query.Point); err != nil {
		return nil, err
	}
	return c.featureCollection(ctx, APIBoundariesPartOf, q)
}

// BoundariesConsistsOf returns the subdivisions of the place with query.ID.
func (c *Client) BoundariesConsistsOf(ctx context.Context, query BoundariesQuery) (*geojson.FeatureCollection, error) {
	if query.ID == "" {
		return nil, fmt.Errorf("%w: consists-of needs a place id", ErrInvalidArgument)
	}
	if query.Point != nil {
		return nil, fmt.Errorf("%w: consists-of takes a place id only", ErrInvalidArgument)
	}
	q := boundaryParams(query)
	q.Set("id", query.ID)
	sublevel := query.Sublevel
	if sublevel <= 0 {
		sublevel = 1
	}
	q.Set("sublevel", strconv.Itoa(sublevel))
	return c.featureCollection(ctx, APIBoundariesConsistOf, q)
}

func (c *Client) featureCollection(ctx context.Context, api string, q url.Values) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := c.getJSON(ctx, api, q, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func boundaryParams(query BoundariesQuery) url.Values {
	q := url.Values{}
	boundary := query.Boundary
	if boundary == "" {
		boundary = "administrative"
	}
	geometry := query.Geometry
	if geometry == "" {
		geometry = "point"
	}
	q.Set("boundary", boundary)
	q.Set("geometry", geometry)
	if query.Lang != "" {
		q.Set("lang", query.Lang)
	}
	return q
}

// setLocation sets either id or lat/lon; exactly one must be given.
func setLocation(q url.Values, id string, point *geom.Point) error {
	switch {
	case id != "" && point != nil:
		return fmt.Errorf("%w: give either a place id or coordinates, not both", ErrInvalidArgument)
	case id != "":
		q.Set("id", id)
	case point != nil:
		setPoint(q, point)
	default:
		return fmt.Errorf("%w: either a place id or coordinates must be provided", ErrInvalidArgument)
	}
	return nil
}

func setPoint(q url.Values, p *geom.Point) {
	q.Set("lon", formatCoord(p.X()))
	q.Set("lat", formatCoord(p.Y()))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
