package client

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/huels-originals/geobatch/pkg/batch"
)

// PlaceDetailsBatch selects the inputs of a batch place details run: place
// IDs or points, not both.
type PlaceDetailsBatch struct {
	IDs      []string
	Points   []*geom.Point
	Features []string
	Lang     string
}

// BatchGeocode geocodes inputs (see batch.FromText / batch.FromParams) in
// jobs of at most batchLen items. Results are in input order.
func (c *Client) BatchGeocode(ctx context.Context, inputs []batch.Item, params map[string]string, batchLen int) ([]json.RawMessage, error) {
	return c.batch.SubmitAndCollect(ctx, batch.APIGeocode, inputs, params, batchLen)
}

// BatchReverseGeocode reverse geocodes XY points (lon, lat).
func (c *Client) BatchReverseGeocode(ctx context.Context, points []*geom.Point, params map[string]string, batchLen int) ([]json.RawMessage, error) {
	inputs, err := batch.FromPoints(points)
	if err != nil {
		return nil, err
	}
	return c.batch.SubmitAndCollect(ctx, batch.APIReverseGeocode, inputs, params, batchLen)
}

// BatchPlaceDetails fetches details for many places.
func (c *Client) BatchPlaceDetails(ctx context.Context, query PlaceDetailsBatch, batchLen int) ([]json.RawMessage, error) {
	var inputs []batch.Item
	switch {
	case len(query.IDs) > 0 && len(query.Points) > 0:
		return nil, fmt.Errorf("%w: give either place ids or points, not both", ErrInvalidArgument)
	case len(query.IDs) > 0:
		inputs = batch.FromPlaceIDs(query.IDs)
	case len(query.Points) > 0:
		var err error
		if inputs, err = batch.FromPoints(query.Points); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: either place ids or points must be provided", ErrInvalidArgument)
	}

	params := map[string]string{}
	if len(query.Features) > 0 {
		params["features"] = strings.Join(query.Features, ",")
	}
	if query.Lang != "" {
		params["lang"] = query.Lang
	}

	return c.batch.SubmitAndCollect(ctx, batch.APIPlaceDetails, inputs, params, batchLen)
}

// batchRecord is the envelope of one batch geocoding result.
type batchRecord struct {
	Result struct {
		Results []map[string]any `json:"results"`
		Query   map[string]any   `json:"query"`
	} `json:"result"`
}

// SimplifyGeocode flattens batch geocoding records to their best match with
// the parsed query attached under "query". Records without a match keep only
// the query.
func SimplifyGeocode(records []json.RawMessage) ([]map[string]any, error) {
	out := make([]map[string]any, len(records))
	for i, raw := range records {
		var rec batchRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		flat := map[string]any{}
		if len(rec.Result.Results) > 0 {
			maps.Copy(flat, rec.Result.Results[0])
		}
		flat["query"] = rec.Result.Query
		out[i] = flat
	}
	return out, nil
}

// SimplifyReverseGeocode flattens batch reverse geocoding records to their
// best match. Records without a match become empty maps.
func SimplifyReverseGeocode(records []json.RawMessage) ([]map[string]any, error) {
	out := make([]map[string]any, len(records))
	for i, raw := range records {
		var rec batchRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		flat := map[string]any{}
		if len(rec.Result.Results) > 0 {
			maps.Copy(flat, rec.Result.Results[0])
		}
		out[i] = flat
	}
	return out, nil
}
