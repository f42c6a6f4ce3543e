package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/internal/dpe/export"
	"dpehub_backend/internal/dpe/filter"
	"dpehub_backend/internal/dpe/service"
)

type exportFetcher interface {
	Fetch(ctx context.Context, commune string, opts ...service.FetchOption) service.FetchOutcome
}

type exportOptions struct {
	commune    string
	rawYearMin int
	rawYearMax int
	yearMin    *int
	yearMax    *int
	out        string
	dir        string
	all        bool
}

func (o exportOptions) validate() error {
	if o.all && o.out != "" {
		return errors.New("--out cannot be combined with --all; use --dir")
	}
	if o.yearMin != nil && o.yearMax != nil && *o.yearMin > *o.yearMax {
		return fmt.Errorf("--year-min %d is after --year-max %d", *o.yearMin, *o.yearMax)
	}
	return nil
}

func (o exportOptions) yearRange() filter.YearRange {
	return filter.NewYearRange(o.yearMin, o.yearMax)
}

// exportOne writes one commune. Upstream failures are reported as errors so
// the process exits non-zero instead of leaving an empty file behind.
func exportOne(ctx context.Context, f exportFetcher, commune string, opts exportOptions, stdout io.Writer) error {
	var fetchErr error
	outcome := f.Fetch(ctx, commune, service.WithFailureHook(func(err error) { fetchErr = err }))
	if fetchErr != nil {
		return fmt.Errorf("fetch %s: %w", commune, fetchErr)
	}

	records := filter.ApplyYearRange(outcome.Results, opts.yearRange())

	if opts.out == "-" {
		return export.WriteCSV(stdout, records)
	}

	path := opts.out
	if path == "" {
		path = filepath.Join(opts.dir, export.FileName(commune))
	}
	if err := writeFile(path, records); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(stdout, "%s: %d/%d records, %d thermal sieves -> %s\n",
		commune, len(records), outcome.Total, filter.ThermalSieveCount(records), path)
	return nil
}

// exportAll keeps going past failing communes and reports them together.
func exportAll(ctx context.Context, f exportFetcher, communes []string, opts exportOptions, stdout io.Writer) error {
	var errs []error
	for _, commune := range communes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		one := opts
		one.out = ""
		if err := exportOne(ctx, f, commune, one, stdout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func writeFile(path string, records []domain.DpeResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(file, records); err != nil {
		_ = file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
