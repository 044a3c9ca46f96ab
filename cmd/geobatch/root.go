package main

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/huels-originals/geobatch/pkg/client"
	"github.com/huels-originals/geobatch/pkg/jobstore"
	"github.com/huels-originals/geobatch/pkg/logging"
	"github.com/huels-originals/geobatch/pkg/metrics"
)

// app holds state shared by the subcommands of one invocation.
type app struct {
	cfg        *config
	configFile string
	logger     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	v := newViper()

	root := &cobra.Command{
		Use:          "geobatch",
		Short:        "Run Geoapify batch geocoding jobs",
		Long:         "Submits inputs to the Geoapify batch API in chunks, stores the job manifest and collects the results in input order.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cmd.Flags(), a.configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg

			level, _ := logging.ParseLevel(cfg.Log.Level)
			logging.Setup(logging.Config{
				Level:  level,
				Pretty: cfg.Log.Pretty,
				Output: cmd.ErrOrStderr(),
			})
			a.logger = logging.NewLogger("cli")

			if cfg.MetricsAddr != "" {
				go func() {
					if err := metrics.Serve(cmd.Context(), cfg.MetricsAddr, a.logger); err != nil {
						a.logger.Error().Err(err).Msg("Metrics server failed")
					}
				}()
			}
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default ./geobatch.yaml)")
	pf.String("key", "", "Geoapify API key (env GEOAPIFY_KEY)")
	pf.String("base-url", "", "API root (default https://api.geoapify.com)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-pretty", false, "human-readable logs")
	pf.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	pf.String("redis-addr", "", "store manifests in Redis at this address instead of files")

	root.AddCommand(newSubmitCmd(a), newCollectCmd(a), newRunCmd(a))
	return root
}

// newClient builds a Geoapify client from the loaded configuration.
func (a *app) newClient() (*client.Client, error) {
	if err := a.cfg.requireKey(); err != nil {
		return nil, err
	}

	cfg := client.DefaultConfig(a.cfg.Key)
	if a.cfg.BaseURL != "" {
		cfg.BaseURL = a.cfg.BaseURL
	}
	cfg.Batch.MaxConcurrency = a.cfg.Batch.Concurrency
	cfg.Batch.SubmitDelay = a.cfg.Batch.SubmitDelay
	cfg.Batch.MaxPollAttempts = a.cfg.Batch.MaxPollAttempts
	batchLogger := logging.NewLogger("batch")
	cfg.Batch.Logger = &batchLogger

	return client.New(cfg)
}

// newStore returns the manifest store: Redis when configured, else files
// in dir.
func (a *app) newStore(dir string) (jobstore.Store, func(), error) {
	if a.cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
		return jobstore.NewRedisStore(rdb, a.cfg.Redis.ManifestTTL), func() { rdb.Close() }, nil
	}

	fs, err := jobstore.NewFileStore(dir)
	if err != nil {
		return nil, nil, err
	}
	return fs, func() {}, nil
}

// describe returns where a saved manifest can be found.
func describe(store jobstore.Store, m *jobstore.Manifest) string {
	if fs, ok := store.(*jobstore.FileStore); ok {
		return fs.Path(m.ID)
	}
	return fmt.Sprintf("redis key geobatch:manifest:%s", m.ID)
}
