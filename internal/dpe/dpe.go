// Package dpe provides the DPE prospection bounded context.
// This file defines the public interfaces exposed to other domains.
package dpe

import (
	"context"

	"dpehub_backend/internal/dpe/service"
)

// DpeService defines the public interface for DPE lookups.
// Other domains should depend on this interface, not the concrete implementation.
type DpeService interface {
	// Fetch returns the normalized records of a commune. It never fails;
	// use service.WithFailureHook to observe upstream errors.
	Fetch(ctx context.Context, commune string, opts ...service.FetchOption) service.FetchOutcome

	// Warm refreshes the cached response of a commune.
	Warm(ctx context.Context, commune string) error

	// Ping checks if the upstream dataset is available.
	Ping(ctx context.Context) error
}

var _ DpeService = (*service.Service)(nil)
