package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dpehub_backend/internal/dpe/catalog"
	"dpehub_backend/internal/dpe/dashboard"
	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/internal/dpe/export"
	"dpehub_backend/internal/dpe/service"
	"dpehub_backend/internal/dpe/transport"
	"dpehub_backend/platform/events"
	"dpehub_backend/platform/logger"
	"dpehub_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubService struct {
	outcome  service.FetchOutcome
	err      error
	calls    []string
	clearErr error
	clears   int
}

func (s *stubService) ClearCache(context.Context) error {
	s.clears++
	return s.clearErr
}

func (s *stubService) Fetch(_ context.Context, commune string, opts ...service.FetchOption) service.FetchOutcome {
	s.calls = append(s.calls, commune)
	if s.err != nil {
		service.ApplyFailureHook(s.err, opts...)
		return service.FetchOutcome{Results: []domain.DpeResult{}}
	}
	return s.outcome
}

func sampleOutcome() service.FetchOutcome {
	return service.FetchOutcome{
		Total: 3,
		Results: []domain.DpeResult{
			{ID: "a", ConstructionYear: "1990", DPEGrade: "F", GESGrade: "E", Address: `1 rue "A"`, Latitude: 49.4, Longitude: 5.9},
			{ID: "b", ConstructionYear: "2005", DPEGrade: "G", GESGrade: "F", Latitude: 49.5, Longitude: 5.8},
			{ID: "c", ConstructionYear: domain.YearUnknown, DPEGrade: "C", GESGrade: "B", Latitude: 49.6, Longitude: 5.7},
		},
	}
}

type setup struct {
	engine *gin.Engine
	svc    *stubService
	bus    *events.InMemoryBus
	dash   *dashboard.Dashboard
}

func newSetup(t *testing.T) *setup {
	t.Helper()
	svc := &stubService{outcome: sampleOutcome()}
	bus := events.NewInMemoryBus(logger.Discard())
	dash := dashboard.New(svc, bus, logger.Discard(), "Villerupt")
	h := New(svc, catalog.Default(), dash, nil, validator.New(), logger.Discard())

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/api/v1"))
	return &setup{engine: engine, svc: svc, bus: bus, dash: dash}
}

func (s *setup) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func TestListCommunes(t *testing.T) {
	s := newSetup(t)
	rec := s.do(http.MethodGet, "/api/v1/communes", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []transport.CommuneResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotEmpty(t, got)
	assert.Equal(t, "Villerupt", got[0].Name)
	assert.Equal(t, "54", got[0].Department)
}

func TestSearch_FiltersByYear(t *testing.T) {
	s := newSetup(t)
	rec := s.do(http.MethodGet, "/api/v1/dpe?commune=Thil&yearMin=2000&yearMax=2010", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got transport.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 3, got.Total)
	assert.False(t, got.Failed)
	require.Len(t, got.Results, 1)
	assert.Equal(t, "b", got.Results[0].ID)
	assert.Equal(t, 1, got.Summary.ThermalSieve)
	assert.Equal(t, []string{"Thil"}, s.svc.calls)
}

func TestSearch_UpstreamFailureIsNotAnHTTPError(t *testing.T) {
	s := newSetup(t)
	s.svc.err = errors.New("status 500")

	rec := s.do(http.MethodGet, "/api/v1/dpe?commune=Thil", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got transport.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Failed)
	assert.Equal(t, 0, got.Total)
	assert.Empty(t, got.Results)
}

func TestSearch_ValidatesInput(t *testing.T) {
	s := newSetup(t)
	for _, path := range []string{
		"/api/v1/dpe",
		"/api/v1/dpe?commune=" + `Thil%22%20OR%20*`,
		"/api/v1/dpe?commune=Thil&yearMin=abc",
		"/api/v1/dpe?commune=Thil&yearMax=99999",
	} {
		rec := s.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
	assert.Empty(t, s.svc.calls)
}

func TestExport_WritesAttachment(t *testing.T) {
	s := newSetup(t)
	rec := s.do(http.MethodGet, "/api/v1/dpe/export?commune=Audun-le-Tiche", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Export_audun-le-tiche.csv")

	records, err := export.ReadCSV(rec.Body)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, `1 rue "A"`, records[0].Address)
}

func TestDashboard_Flow(t *testing.T) {
	s := newSetup(t)

	rec := s.do(http.MethodGet, "/api/v1/dashboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got transport.DashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "idle", got.Status)
	assert.Equal(t, "Villerupt", got.Commune)

	rec = s.do(http.MethodPut, "/api/v1/dashboard/commune", map[string]string{"commune": "Thil"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "success", got.Status)
	assert.Equal(t, 3, got.Summary.Displayed)
	assert.Equal(t, 2, got.Summary.ThermalSieve)

	rec = s.do(http.MethodPut, "/api/v1/dashboard/years", map[string]any{"yearMin": 2000, "yearMax": 2010})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Summary.Displayed)
	assert.Equal(t, 2000, *got.YearMin)

	rec = s.do(http.MethodPut, "/api/v1/dashboard/view", map[string]string{"view": "map"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "map", got.View)

	rec = s.do(http.MethodGet, "/api/v1/dashboard/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Export_thil.csv")
	records, err := export.ReadCSV(rec.Body)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	s.svc.err = errors.New("timeout")
	rec = s.do(http.MethodPost, "/api/v1/dashboard/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "error", got.Status)
	assert.Empty(t, got.Rows)
}

func TestDashboard_RejectsInvalidBodies(t *testing.T) {
	s := newSetup(t)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPut, "/api/v1/dashboard/commune", map[string]string{}},
		{http.MethodPut, "/api/v1/dashboard/years", map[string]any{"yearMin": 12}},
		{http.MethodPut, "/api/v1/dashboard/view", map[string]string{"view": "grid"}},
		{http.MethodPost, "/api/v1/dashboard/focus", map[string]any{"lat": 120, "lon": 5, "id": "x"}},
		{http.MethodPost, "/api/v1/dashboard/focus", map[string]any{"lat": 49}},
	}
	for _, tc := range cases {
		rec := s.do(tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/dashboard/view", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFocus_PublishesAndSwitchesView(t *testing.T) {
	s := newSetup(t)

	var got []dashboard.MapFocusRequested
	done := make(chan struct{}, 1)
	s.bus.Subscribe(dashboard.EventMapFocusRequested, events.HandlerFunc(func(_ context.Context, e events.Event) error {
		got = append(got, e.(dashboard.MapFocusRequested))
		done <- struct{}{}
		return nil
	}))

	rec := s.do(http.MethodPost, "/api/v1/dashboard/focus", map[string]any{"lat": 49.47, "lon": 5.9, "id": "b"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	<-done
	s.bus.Wait()
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].RecordID)
	assert.Equal(t, dashboard.ViewMap, s.dash.State().View)
}

func TestClearCache(t *testing.T) {
	s := newSetup(t)

	rec := s.do(http.MethodDelete, "/api/v1/dpe/cache", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, s.svc.clears)

	s.svc.clearErr = errors.New("redis down")
	rec = s.do(http.MethodDelete, "/api/v1/dpe/cache", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "cache unavailable")
}

func TestBindErrorsCarryDetails(t *testing.T) {
	s := newSetup(t)

	rec := s.do(http.MethodGet, "/api/v1/dpe?commune=Thil&yearMin=abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "invalid request", body["error"])
	assert.NotEmpty(t, body["details"])

	rec = s.do(http.MethodPut, "/api/v1/dashboard/view", map[string]string{"view": "grid"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation failed", body["error"])
}
