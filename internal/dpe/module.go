// Package dpe provides the DPE prospection bounded context.
// This file defines the module that encapsulates all DPE setup.
package dpe

import (
	"dpehub_backend/internal/dpe/cache"
	"dpehub_backend/internal/dpe/catalog"
	"dpehub_backend/internal/dpe/client"
	"dpehub_backend/internal/dpe/dashboard"
	"dpehub_backend/internal/dpe/handler"
	"dpehub_backend/internal/dpe/normalize"
	"dpehub_backend/internal/dpe/service"
	"dpehub_backend/internal/dpe/stream"
	apphttp "dpehub_backend/internal/http"
	"dpehub_backend/platform/config"
	"dpehub_backend/platform/events"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/metrics"
	"dpehub_backend/platform/validator"
)

// Deps groups the infrastructure the module is built on.
type Deps struct {
	Config    config.AdemeConfig
	Catalog   *catalog.Catalog
	Cache     cache.Store
	Metrics   *metrics.Recorder
	Bus       events.Bus
	Validator *validator.Validator
	Logger    *logger.Logger
	// Client overrides the upstream client, mainly for tests.
	Client service.LinesFetcher
}

// Module is the DPE bounded context module.
type Module struct {
	catalog   *catalog.Catalog
	service   *service.Service
	dashboard *dashboard.Dashboard
	hub       *stream.Hub
	handler   *handler.Handler
}

// NewModule creates and initializes the DPE module.
func NewModule(d Deps) *Module {
	upstream := d.Client
	if upstream == nil {
		upstream = client.New(d.Config, d.Catalog, d.Logger)
	}

	svc := service.New(upstream, service.Config{
		DatasetID:  d.Config.GetAdemeDatasetID(),
		FetchSize:  d.Config.GetAdemeFetchSize(),
		Cache:      d.Cache,
		Normalizer: normalize.New(),
		Metrics:    d.Metrics,
	}, d.Logger)

	dash := dashboard.New(svc, d.Bus, d.Logger, d.Catalog.First())

	hub := stream.NewHub(d.Logger)
	d.Bus.Subscribe(dashboard.EventMapFocusRequested, hub)
	d.Bus.Subscribe(dashboard.EventStatusChanged, hub)

	d.Logger.Info("dpe module initialized", "dataset", d.Config.GetAdemeDatasetID(), "communes", len(d.Catalog.Communes))

	return &Module{
		catalog:   d.Catalog,
		service:   svc,
		dashboard: dash,
		hub:       hub,
		handler:   handler.New(svc, d.Catalog, dash, hub, d.Validator, d.Logger),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "dpe"
}

// RegisterRoutes mounts the DPE routes on /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1)
}

// Service returns the DPE service for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// Dashboard returns the prospection session.
func (m *Module) Dashboard() *dashboard.Dashboard {
	return m.dashboard
}

// Catalog returns the commune catalog.
func (m *Module) Catalog() *catalog.Catalog {
	return m.catalog
}

// Close disconnects stream clients.
func (m *Module) Close() {
	m.hub.Close()
}

var _ apphttp.Module = (*Module)(nil)
