// Package domain holds the canonical DPE record shared by every layer of the
// dpe bounded context.
package domain

import "math"

// Sentinel values used when upstream data is missing.
const (
	GradeUnknown        = "N/A"
	YearUnknown         = "N/A"
	AddressUnknown      = "Adresse non renseignée"
	BuildingTypeDefault = "Bâtiment"
)

// Grades lists the valid DPE/GES letters from best to worst.
var Grades = []string{"A", "B", "C", "D", "E", "F", "G"}

// DpeResult is one energy performance diagnostic normalized from any of the
// upstream schema generations. Values are never mutated after creation.
type DpeResult struct {
	ID               string
	EstablishedAt    string
	DPEGrade         string
	GESGrade         string
	EnergyPerM2      float64
	EmissionPerM2    float64
	Address          string
	Municipality     string
	PostalCode       string
	ConstructionYear string
	Surface          float64
	TotalCost        float64
	BuildingType     string
	HeatingType      string
	Latitude         float64
	Longitude        float64
}

// HasPosition reports whether the record can be placed on a map.
func (r DpeResult) HasPosition() bool {
	return !math.IsNaN(r.Latitude) && !math.IsNaN(r.Longitude)
}

// IsThermalSieve reports whether the DPE grade is F or G.
func (r DpeResult) IsThermalSieve() bool {
	return IsThermalSieveGrade(r.DPEGrade)
}

// IsThermalSieveGrade reports whether grade belongs to the critical set {F, G}.
func IsThermalSieveGrade(grade string) bool {
	return grade == "F" || grade == "G"
}

// IsGrade reports whether s is one of A through G.
func IsGrade(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'G'
}
