package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huels-originals/geobatch/pkg/batch"
	"github.com/huels-originals/geobatch/pkg/jobstore"
)

// jobFlags are shared by submit and run.
type jobFlags struct {
	api         string
	input       string
	batchLen    int
	params      map[string]string
	manifestDir string
}

func (f *jobFlags) register(cmd *cobra.Command, manifestDirDefault string) {
	cmd.Flags().StringVar(&f.api, "api", "geocode", "batch API: geocode, reverse or place-details")
	cmd.Flags().StringVar(&f.input, "input", "", "JSON array of strings, objects or [lon, lat] pairs")
	cmd.Flags().IntVar(&f.batchLen, "batch-len", batch.MaxBatchLen, "inputs per job, clamped to [2, 1000]")
	cmd.Flags().StringToStringVar(&f.params, "param", nil, "API parameter applied to every input (k=v, repeatable)")
	cmd.Flags().StringVar(&f.manifestDir, "manifest-dir", manifestDirDefault, "directory manifests are written to")
	_ = cmd.MarkFlagRequired("input")
}

// submitted is the outcome of submitting one input file.
type submitted struct {
	route    string
	manifest *jobstore.Manifest
}

func (a *app) submit(cmd *cobra.Command, f *jobFlags) (*submitted, error) {
	route, err := routeFor(f.api)
	if err != nil {
		return nil, err
	}
	params, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}
	items, err := readInputs(f.input, f.api)
	if err != nil {
		return nil, err
	}

	c, err := a.newClient()
	if err != nil {
		return nil, err
	}
	defer c.Close()

	jobs, err := c.Batch().Submit(cmd.Context(), route, items, params, f.batchLen)
	if err != nil {
		return nil, err
	}

	m := jobstore.NewManifest(f.api, route, batch.ClampBatchLen(f.batchLen), len(items), jobs)
	return &submitted{route: route, manifest: m}, nil
}

func newSubmitCmd(a *app) *cobra.Command {
	f := &jobFlags{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit inputs as batch jobs and write a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.submit(cmd, f)
			if err != nil {
				return err
			}

			store, closeStore, err := a.newStore(f.manifestDir)
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Save(cmd.Context(), s.manifest); err != nil {
				return fmt.Errorf("save manifest: %w", err)
			}

			a.logger.Info().
				Str("manifest", s.manifest.ID.String()).
				Int("jobs", len(s.manifest.Jobs)).
				Int("items", s.manifest.Items).
				Msg("Batch submitted")

			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.manifest.ID, describe(store, s.manifest))
			return nil
		},
	}

	f.register(cmd, ".")
	return cmd
}
