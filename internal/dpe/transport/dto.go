// Package transport provides DTOs for the DPE domain.
package transport

import (
	"math"

	"dpehub_backend/internal/dpe/catalog"
	"dpehub_backend/internal/dpe/dashboard"
	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/internal/dpe/filter"
)

// Record is the wire shape of a DPE record. Keys follow the upstream
// dataset so existing consumers keep working.
type Record struct {
	ID               string   `json:"n_dpe"`
	EstablishedAt    string   `json:"date_etablissement_dpe"`
	DPEGrade         string   `json:"etiquette_dpe"`
	GESGrade         string   `json:"etiquette_ges"`
	EnergyPerM2      float64  `json:"conso_5_usages_m2_an"`
	EmissionPerM2    float64  `json:"emission_ges_5_usages_m2_an"`
	Address          string   `json:"adresse_brut"`
	Municipality     string   `json:"commune_brut"`
	PostalCode       string   `json:"code_postal"`
	ConstructionYear string   `json:"annee_construction"`
	Surface          float64  `json:"surface_habitable"`
	TotalCost        float64  `json:"cout_total_5_usages"`
	BuildingType     string   `json:"type_batiment"`
	HeatingType      string   `json:"type_chauffage,omitempty"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
}

// CommuneQuery selects a commune and optional year bounds.
type CommuneQuery struct {
	Commune string `form:"commune" validate:"required,commune,max=80"`
	YearMin *int   `form:"yearMin" validate:"omitempty,gte=1000,lte=2100"`
	YearMax *int   `form:"yearMax" validate:"omitempty,gte=1000,lte=2100"`
}

// SelectCommuneRequest switches the dashboard commune.
type SelectCommuneRequest struct {
	Commune string `json:"commune" validate:"required,commune,max=80"`
}

// YearBoundsRequest sets the dashboard year filter. Null bounds are open.
type YearBoundsRequest struct {
	YearMin *int `json:"yearMin" validate:"omitempty,gte=1000,lte=2100"`
	YearMax *int `json:"yearMax" validate:"omitempty,gte=1000,lte=2100"`
}

// ViewRequest switches between table and map.
type ViewRequest struct {
	View string `json:"view" validate:"required"`
}

// FocusRequest centers the map on a record.
type FocusRequest struct {
	Latitude  *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
	ID        string   `json:"id" validate:"required,max=64"`
}

// Summary is the aggregate panel of a filtered collection.
type Summary struct {
	Displayed    int            `json:"displayed"`
	ThermalSieve int            `json:"thermalSieve"`
	DPEGrades    map[string]int `json:"dpeGrades"`
	GESGrades    map[string]int `json:"gesGrades"`
}

// ListResponse is returned by the DPE search endpoint.
type ListResponse struct {
	Commune string   `json:"commune"`
	Total   int      `json:"total"`
	Failed  bool     `json:"failed"`
	Summary Summary  `json:"summary"`
	Results []Record `json:"results"`
}

// CommuneResponse is one catalog entry.
type CommuneResponse struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// FocusPoint is the last map focus request.
type FocusPoint struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	ID        string  `json:"id"`
}

// DashboardResponse is the session state with its current projection.
type DashboardResponse struct {
	Commune       string      `json:"commune"`
	Status        string      `json:"status"`
	Total         int         `json:"total"`
	Loaded        int         `json:"loaded"`
	YearMin       *int        `json:"yearMin"`
	YearMax       *int        `json:"yearMax"`
	View          string      `json:"view"`
	Focus         *FocusPoint `json:"focus,omitempty"`
	Summary       Summary     `json:"summary"`
	TableRowLimit int         `json:"tableRowLimit"`
	Rows          []Record    `json:"rows"`
	Markers       []Record    `json:"markers"`
}

// ToRecord maps a domain record to its wire shape. NaN coordinates become
// null.
func ToRecord(r domain.DpeResult) Record {
	return Record{
		ID:               r.ID,
		EstablishedAt:    r.EstablishedAt,
		DPEGrade:         r.DPEGrade,
		GESGrade:         r.GESGrade,
		EnergyPerM2:      r.EnergyPerM2,
		EmissionPerM2:    r.EmissionPerM2,
		Address:          r.Address,
		Municipality:     r.Municipality,
		PostalCode:       r.PostalCode,
		ConstructionYear: r.ConstructionYear,
		Surface:          r.Surface,
		TotalCost:        r.TotalCost,
		BuildingType:     r.BuildingType,
		HeatingType:      r.HeatingType,
		Latitude:         coordinate(r.Latitude),
		Longitude:        coordinate(r.Longitude),
	}
}

// ToRecords maps a collection, never returning nil.
func ToRecords(records []domain.DpeResult) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		out = append(out, ToRecord(r))
	}
	return out
}

// ToSummary maps filter aggregates.
func ToSummary(s filter.Summary) Summary {
	return Summary{
		Displayed:    s.Displayed,
		ThermalSieve: s.ThermalSieve,
		DPEGrades:    s.DPEGrades,
		GESGrades:    s.GESGrades,
	}
}

// ToCommunes maps the catalog list.
func ToCommunes(communes []catalog.Commune) []CommuneResponse {
	out := make([]CommuneResponse, 0, len(communes))
	for _, c := range communes {
		out = append(out, CommuneResponse{Name: c.Name, Department: c.Department})
	}
	return out
}

// ToDashboard maps a session state and view.
func ToDashboard(s dashboard.State, v dashboard.View) DashboardResponse {
	resp := DashboardResponse{
		Commune:       s.Commune,
		Status:        string(s.Status),
		Total:         s.Total,
		Loaded:        s.Loaded,
		YearMin:       s.Bounds.Min,
		YearMax:       s.Bounds.Max,
		View:          string(s.View),
		Summary:       ToSummary(v.Summary),
		TableRowLimit: dashboard.TableRowLimit,
		Rows:          ToRecords(v.Rows),
		Markers:       ToRecords(v.Mapped),
	}
	if s.Focus != nil {
		resp.Focus = &FocusPoint{Latitude: s.Focus.Latitude, Longitude: s.Focus.Longitude, ID: s.Focus.RecordID}
	}
	return resp
}

func coordinate(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
