// Package normalize converts raw upstream DPE records of any schema
// generation into the canonical domain.DpeResult.
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"dpehub_backend/internal/dpe/domain"
	"dpehub_backend/platform/sanitize"

	"github.com/tidwall/gjson"
)

// Normalizer maps raw records to DpeResult. It never fails: malformed or
// missing values fall back to the documented defaults.
type Normalizer struct {
	ids IDGenerator
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithIDGenerator replaces the random fallback identifier source.
func WithIDGenerator(g IDGenerator) Option {
	return func(n *Normalizer) {
		if g != nil {
			n.ids = g
		}
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{ids: RandomIDGenerator{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeAll normalizes every raw record, preserving order.
func (n *Normalizer) NormalizeAll(raws []json.RawMessage, commune string) []domain.DpeResult {
	out := make([]domain.DpeResult, 0, len(raws))
	for _, raw := range raws {
		out = append(out, n.Normalize(raw, commune))
	}
	return out
}

// Normalize converts one raw record. commune is the queried municipality,
// used when the record names none.
func (n *Normalizer) Normalize(raw []byte, commune string) domain.DpeResult {
	fields := parseFields(raw)

	id, ok := fields.text(idKeys)
	if !ok {
		id = n.ids.NewID()
	}

	return domain.DpeResult{
		ID:               id,
		EstablishedAt:    fields.textOr(dateKeys, ""),
		DPEGrade:         grade(fields, dpeGradeKeys),
		GESGrade:         grade(fields, gesGradeKeys),
		EnergyPerM2:      fields.amount(energyKeys),
		EmissionPerM2:    fields.amount(emissionKeys),
		Address:          fields.displayTextOr(addressKeys, domain.AddressUnknown),
		Municipality:     fields.displayTextOr(municipalityKeys, commune),
		PostalCode:       fields.textOr(postalCodeKeys, ""),
		ConstructionYear: fields.textOr(yearKeys, domain.YearUnknown),
		Surface:          fields.amount(surfaceKeys),
		TotalCost:        fields.amount(costKeys),
		BuildingType:     fields.displayTextOr(buildingTypeKeys, domain.BuildingTypeDefault),
		HeatingType:      fields.displayTextOr(heatingKeys, ""),
		Latitude:         fields.coordinate(latitudeKeys),
		Longitude:        fields.coordinate(longitudeKeys),
	}
}

// recordFields indexes the top-level keys of one raw record.
type recordFields map[string]gjson.Result

func parseFields(raw []byte) recordFields {
	if !gjson.ValidBytes(raw) {
		return recordFields{}
	}
	parsed := gjson.ParseBytes(raw)
	if !parsed.IsObject() {
		return recordFields{}
	}
	return parsed.Map()
}

// lookup returns the value of the first candidate key that is present and
// not JSON null.
func (f recordFields) lookup(keys []string) (gjson.Result, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok && v.Type != gjson.Null {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// text resolves a string field as sent upstream. Numbers are rendered
// without exponent; blank strings, booleans and nested values count as no
// value.
func (f recordFields) text(keys []string) (string, bool) {
	v, ok := f.lookup(keys)
	if !ok {
		return "", false
	}
	switch v.Type {
	case gjson.String:
		return v.Str, strings.TrimSpace(v.Str) != ""
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64), true
	default:
		return "", false
	}
}

func (f recordFields) textOr(keys []string, fallback string) string {
	if s, ok := f.text(keys); ok {
		return s
	}
	return fallback
}

// displayTextOr is textOr for free text shown to users: markup and control
// characters are removed first.
func (f recordFields) displayTextOr(keys []string, fallback string) string {
	s, ok := f.text(keys)
	if !ok {
		return fallback
	}
	if s = sanitize.Text(s); s == "" {
		return fallback
	}
	return s
}

// amount resolves a non-negative numeric field, defaulting to 0.
func (f recordFields) amount(keys []string) float64 {
	v, ok := f.number(keys)
	if !ok || v < 0 {
		return 0
	}
	return v
}

// coordinate resolves a latitude or longitude, NaN when unknown.
func (f recordFields) coordinate(keys []string) float64 {
	v, ok := f.number(keys)
	if !ok {
		return math.NaN()
	}
	return v
}

func (f recordFields) number(keys []string) (float64, bool) {
	v, ok := f.lookup(keys)
	if !ok {
		return 0, false
	}
	var n float64
	switch v.Type {
	case gjson.Number:
		n = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v.Str), ",", "."), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// grade keeps the first letter, uppercased. Missing values and letters
// outside A-G become "N/A".
func grade(f recordFields, keys []string) string {
	s, ok := f.text(keys)
	if !ok {
		return domain.GradeUnknown
	}
	r, _ := utf8.DecodeRuneInString(s)
	letter := string(unicode.ToUpper(r))
	if !domain.IsGrade(letter) {
		return domain.GradeUnknown
	}
	return letter
}
