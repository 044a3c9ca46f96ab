package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	jf := &jobFlags{}
	cf := &collectFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit inputs and wait for the results",
		Long:  "Submits inputs and collects the results. With --manifest-dir the manifest is saved first so an interrupted run can be finished with collect.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.submit(cmd, jf)
			if err != nil {
				return err
			}

			if jf.manifestDir != "" {
				store, closeStore, err := a.newStore(jf.manifestDir)
				if err != nil {
					return err
				}
				err = store.Save(cmd.Context(), s.manifest)
				closeStore()
				if err != nil {
					return fmt.Errorf("save manifest: %w", err)
				}
				a.logger.Info().
					Str("manifest", s.manifest.ID.String()).
					Str("location", describe(store, s.manifest)).
					Msg("Manifest saved")
			}

			return a.collect(cmd, s.manifest, cf)
		},
	}

	jf.register(cmd, "")
	cf.register(cmd)
	return cmd
}
