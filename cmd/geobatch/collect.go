package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/huels-originals/geobatch/pkg/jobstore"
)

// collectFlags are shared by collect and run.
type collectFlags struct {
	output   string
	interval time.Duration
	simplify bool
}

func (f *collectFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.output, "output", "-", "results file, - for stdout")
	cmd.Flags().DurationVar(&f.interval, "interval", 0, "poll interval (default derived from the batch size)")
	cmd.Flags().BoolVar(&f.simplify, "simplify", false, "flatten geocoding results to their best match")
}

func (a *app) collect(cmd *cobra.Command, m *jobstore.Manifest, f *collectFlags) error {
	c, err := a.newClient()
	if err != nil {
		return err
	}
	defer c.Close()

	records, err := c.Batch().Collect(cmd.Context(), m.Jobs, f.interval)
	if err != nil {
		return err
	}

	var out any = records
	if f.simplify {
		if out, err = simplify(m.API, records); err != nil {
			return err
		}
	}

	a.logger.Info().
		Str("manifest", m.ID.String()).
		Int("records", len(records)).
		Msg("Batch collected")

	return writeResults(cmd, f.output, out)
}

func newCollectCmd(a *app) *cobra.Command {
	f := &collectFlags{}
	var (
		manifestPath string
		manifestID   string
		manifestDir  string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Poll the jobs of a manifest and write their results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.loadManifest(cmd, manifestPath, manifestID, manifestDir)
			if err != nil {
				return err
			}
			return a.collect(cmd, m, f)
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "manifest file written by submit")
	cmd.Flags().StringVar(&manifestID, "manifest-id", "", "manifest id in the configured store")
	cmd.Flags().StringVar(&manifestDir, "manifest-dir", ".", "directory searched for --manifest-id")
	cmd.MarkFlagsMutuallyExclusive("manifest", "manifest-id")
	cmd.MarkFlagsOneRequired("manifest", "manifest-id")
	f.register(cmd)

	return cmd
}

func (a *app) loadManifest(cmd *cobra.Command, path, id, dir string) (*jobstore.Manifest, error) {
	if path != "" {
		return jobstore.ReadFile(path)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid --manifest-id: %w", err)
	}

	store, closeStore, err := a.newStore(dir)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	m, err := store.Load(cmd.Context(), parsed)
	if errors.Is(err, jobstore.ErrNotFound) {
		return nil, fmt.Errorf("no manifest %s in the configured store", parsed)
	}
	return m, err
}
