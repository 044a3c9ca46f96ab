package batch

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/twpayne/go-geom"
)

// FromText wraps free-form addresses as {"text": s} items.
func FromText(texts []string) []Item {
	items := make([]Item, len(texts))
	for i, t := range texts {
		items[i] = Item{"text": t}
	}
	return items
}

// FromParams copies structured parameter records (e.g. {"city": ..., "postcode": ...}).
func FromParams(records []map[string]any) []Item {
	items := make([]Item, len(records))
	for i, r := range records {
		items[i] = Item(maps.Clone(r))
		if items[i] == nil {
			items[i] = Item{}
		}
	}
	return items
}

// FromPoints converts XY points (longitude, latitude) into reverse geocoding
// items.
func FromPoints(points []*geom.Point) ([]Item, error) {
	items := make([]Item, len(points))
	for i, p := range points {
		if p == nil {
			return nil, invalidArgument("point %d is nil", i)
		}
		items[i] = Item{"lon": p.X(), "lat": p.Y()}
	}
	return items, nil
}

// FromCoordinates converts [lon, lat] pairs into reverse geocoding items.
func FromCoordinates(coords [][2]float64) []Item {
	items := make([]Item, len(coords))
	for i, c := range coords {
		items[i] = Item{"lon": c[0], "lat": c[1]}
	}
	return items
}

// FromPlaceIDs wraps Geoapify place ids as {"id": s} items.
func FromPlaceIDs(ids []string) []Item {
	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = Item{"id": id}
	}
	return items
}

// FromJSON decodes a JSON array whose elements are all strings (free text),
// all objects (parameter records) or all [lon, lat] pairs.
func FromJSON(raw []byte) ([]Item, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, invalidArgument("inputs must be a JSON array: %v", err)
	}
	if len(elems) == 0 {
		return nil, invalidArgument("inputs array is empty")
	}

	switch firstByte(elems[0]) {
	case '"':
		texts := make([]string, len(elems))
		for i, e := range elems {
			if err := json.Unmarshal(e, &texts[i]); err != nil {
				return nil, invalidArgument("input %d: expected string: %v", i, err)
			}
		}
		return FromText(texts), nil

	case '{':
		records := make([]map[string]any, len(elems))
		for i, e := range elems {
			if firstByte(e) != '{' {
				return nil, invalidArgument("input %d: expected object", i)
			}
			if err := json.Unmarshal(e, &records[i]); err != nil {
				return nil, invalidArgument("input %d: %v", i, err)
			}
		}
		return FromParams(records), nil

	case '[':
		coords := make([][2]float64, len(elems))
		for i, e := range elems {
			var pair []float64
			if err := json.Unmarshal(e, &pair); err != nil || len(pair) != 2 {
				return nil, invalidArgument("input %d: expected [lon, lat]", i)
			}
			coords[i] = [2]float64{pair[0], pair[1]}
		}
		return FromCoordinates(coords), nil

	default:
		return nil, invalidArgument("input 0: expected string, object or [lon, lat]")
	}
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
