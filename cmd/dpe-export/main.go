package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dpehub_backend/internal/dpe/cache"
	"dpehub_backend/internal/dpe/catalog"
	"dpehub_backend/internal/dpe/client"
	"dpehub_backend/internal/dpe/service"
	"dpehub_backend/platform/config"
	"dpehub_backend/platform/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newEnv).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// env is what a run needs besides its flags.
type env struct {
	fetcher  exportFetcher
	communes *catalog.Catalog
	close    func() error
}

func newEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Env)

	communes, err := catalog.Load(cfg.GetCommunesFile())
	if err != nil {
		return nil, err
	}

	store, closeCache := cache.Open(ctx, cfg, log)
	svc := service.New(client.New(cfg, communes, log), service.Config{
		DatasetID: cfg.GetAdemeDatasetID(),
		FetchSize: cfg.GetAdemeFetchSize(),
		Cache:     store,
	}, log)

	return &env{fetcher: svc, communes: communes, close: closeCache}, nil
}

func newRootCommand(build func(context.Context) (*env, error)) *cobra.Command {
	var opts exportOptions
	cmd := &cobra.Command{
		Use:           "dpe-export",
		Short:         "Export DPE records of a commune as a spreadsheet-ready CSV",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("year-min") {
				opts.yearMin = &opts.rawYearMin
			}
			if cmd.Flags().Changed("year-max") {
				opts.yearMax = &opts.rawYearMax
			}
			if err := opts.validate(); err != nil {
				return err
			}

			e, err := build(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = e.close() }()

			if opts.all {
				return exportAll(cmd.Context(), e.fetcher, e.communes.Communes, opts, cmd.OutOrStdout())
			}
			return exportOne(cmd.Context(), e.fetcher, opts.commune, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.commune, "commune", "", "Commune to export")
	flags.IntVar(&opts.rawYearMin, "year-min", 0, "Oldest construction year to keep")
	flags.IntVar(&opts.rawYearMax, "year-max", 0, "Newest construction year to keep")
	flags.StringVar(&opts.out, "out", "", `Output file, "-" for stdout (default Export_<commune>.csv)`)
	flags.StringVar(&opts.dir, "dir", ".", "Output directory used with --all")
	flags.BoolVar(&opts.all, "all", false, "Export every catalog commune")
	cmd.MarkFlagsMutuallyExclusive("commune", "all")
	cmd.MarkFlagsOneRequired("commune", "all")
	return cmd
}
