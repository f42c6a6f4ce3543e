package handler

import (
	"bytes"
	"context"
	"net/http"

	"dpehub_backend/internal/dpe/catalog"
	"dpehub_backend/internal/dpe/dashboard"
	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/internal/dpe/export"
	"dpehub_backend/internal/dpe/filter"
	"dpehub_backend/internal/dpe/service"
	"dpehub_backend/internal/dpe/transport"
	"dpehub_backend/platform/apperr"
	"dpehub_backend/platform/httpkit"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Fetcher loads the normalized records of a commune without failing.
type Fetcher interface {
	Fetch(ctx context.Context, commune string, opts ...service.FetchOption) service.FetchOutcome
	ClearCache(ctx context.Context) error
}

// Streamer serves the dashboard event stream.
type Streamer interface {
	Handler() gin.HandlerFunc
}

type Handler struct {
	svc       Fetcher
	catalog   *catalog.Catalog
	dashboard *dashboard.Dashboard
	stream    Streamer
	val       *validator.Validator
	log       *logger.Logger
}

func New(svc Fetcher, cat *catalog.Catalog, dash *dashboard.Dashboard, stream Streamer, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, catalog: cat, dashboard: dash, stream: stream, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/communes", h.ListCommunes)
	rg.GET("/dpe", h.Search)
	rg.GET("/dpe/export", h.Export)
	rg.DELETE("/dpe/cache", h.ClearCache)

	dash := rg.Group("/dashboard")
	dash.GET("", h.GetDashboard)
	dash.PUT("/commune", h.SelectCommune)
	dash.POST("/reload", h.Reload)
	dash.PUT("/years", h.SetYearBounds)
	dash.PUT("/view", h.SetView)
	dash.POST("/focus", h.Focus)
	dash.GET("/export", h.ExportDashboard)
	if h.stream != nil {
		dash.GET("/events", h.stream.Handler())
	}
}

func (h *Handler) ListCommunes(c *gin.Context) {
	httpkit.OK(c, transport.ToCommunes(h.catalog.List()))
}

// Search fetches a commune and returns the year-filtered records. Upstream
// failures are reported through the failed flag, never as an HTTP error.
func (h *Handler) Search(c *gin.Context) {
	req, ok := h.bindCommuneQuery(c)
	if !ok {
		return
	}

	records, outcome, failed := h.fetchFiltered(c, req)
	httpkit.OK(c, transport.ListResponse{
		Commune: req.Commune,
		Total:   outcome.Total,
		Failed:  failed,
		Summary: transport.ToSummary(filter.Summarize(records)),
		Results: transport.ToRecords(records),
	})
}

func (h *Handler) Export(c *gin.Context) {
	req, ok := h.bindCommuneQuery(c)
	if !ok {
		return
	}

	records, _, _ := h.fetchFiltered(c, req)
	h.writeCSV(c, req.Commune, records)
}

// ClearCache drops every cached upstream response, for use after the
// upstream dataset is republished.
func (h *Handler) ClearCache(c *gin.Context) {
	if err := h.svc.ClearCache(c.Request.Context()); err != nil {
		h.log.CacheError("clear", err)
		httpkit.HandleError(c, apperr.Unavailable("cache unavailable"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	h.respondDashboard(c)
}

func (h *Handler) SelectCommune(c *gin.Context) {
	var req transport.SelectCommuneRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.dashboard.SelectCommune(c.Request.Context(), req.Commune)
	h.respondDashboard(c)
}

func (h *Handler) Reload(c *gin.Context) {
	h.dashboard.Reload(c.Request.Context())
	h.respondDashboard(c)
}

func (h *Handler) SetYearBounds(c *gin.Context) {
	var req transport.YearBoundsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.dashboard.SetYearBounds(req.YearMin, req.YearMax)
	h.respondDashboard(c)
}

func (h *Handler) SetView(c *gin.Context) {
	var req transport.ViewRequest
	if !h.bindJSON(c, &req) {
		return
	}
	view, err := dashboard.ParseViewMode(req.View)
	if err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(err.Error()))
		return
	}

	h.dashboard.SetView(view)
	h.respondDashboard(c)
}

// Focus switches to the map and relays the focus request to stream
// subscribers. It has no payload of its own.
func (h *Handler) Focus(c *gin.Context) {
	var req transport.FocusRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.dashboard.FocusOn(c.Request.Context(), *req.Latitude, *req.Longitude, req.ID)
	c.Status(http.StatusAccepted)
}

func (h *Handler) ExportDashboard(c *gin.Context) {
	state := h.dashboard.State()
	h.writeCSV(c, state.Commune, h.dashboard.View().Records)
}

func (h *Handler) respondDashboard(c *gin.Context) {
	httpkit.OK(c, transport.ToDashboard(h.dashboard.State(), h.dashboard.View()))
}

func (h *Handler) fetchFiltered(c *gin.Context, req transport.CommuneQuery) ([]domain.DpeResult, service.FetchOutcome, bool) {
	failed := false
	outcome := h.svc.Fetch(c.Request.Context(), req.Commune, service.WithFailureHook(func(error) {
		failed = true
	}))
	records := filter.ApplyYearRange(outcome.Results, filter.NewYearRange(req.YearMin, req.YearMax))
	return records, outcome, failed
}

func (h *Handler) writeCSV(c *gin.Context, commune string, records []domain.DpeResult) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		h.log.Error("csv export failed", "commune", commune, "error", err)
		httpkit.HandleError(c, apperr.Internal("export failed"))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(commune)+`"`)
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}

func (h *Handler) bindCommuneQuery(c *gin.Context) (transport.CommuneQuery, bool) {
	var req transport.CommuneQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest).WithDetails(err.Error()))
		return req, false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, err)
		return req, false
	}
	return req, true
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest(msgInvalidRequest).WithDetails(err.Error()))
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, err)
		return false
	}
	return true
}
