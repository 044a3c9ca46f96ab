package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/huels-originals/geobatch/pkg/batch"
	"github.com/huels-originals/geobatch/pkg/client"
)

// apiRoutes maps the --api names to Geoapify routes.
var apiRoutes = map[string]string{
	"geocode":       batch.APIGeocode,
	"reverse":       batch.APIReverseGeocode,
	"place-details": batch.APIPlaceDetails,
}

func routeFor(api string) (string, error) {
	route, ok := apiRoutes[api]
	if !ok {
		return "", fmt.Errorf("%w: unknown api %q (want geocode, reverse or place-details)", batch.ErrInvalidArgument, api)
	}
	return route, nil
}

// readInputs loads the input file. Free-text inputs to place-details are
// place ids.
func readInputs(path, api string) ([]batch.Item, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}
	items, err := batch.FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if api == "place-details" {
		for _, item := range items {
			if text, ok := item["text"]; ok && len(item) == 1 {
				delete(item, "text")
				item["id"] = text
			}
		}
	}
	return items, nil
}

// simplify flattens records of the geocoding APIs; other records are kept.
func simplify(api string, records []json.RawMessage) (any, error) {
	switch api {
	case "geocode":
		return client.SimplifyGeocode(records)
	case "reverse":
		return client.SimplifyReverseGeocode(records)
	default:
		return records, nil
	}
}

// writeResults writes v as indented JSON to path, or to stdout for "" or "-".
func writeResults(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}

// parseParams validates --param values.
func parseParams(params map[string]string) (map[string]string, error) {
	for k := range params {
		if strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: empty --param name", batch.ErrInvalidArgument)
		}
		if k == "apiKey" {
			return nil, fmt.Errorf("%w: pass the key with --key, not --param", batch.ErrInvalidArgument)
		}
	}
	return params, nil
}
