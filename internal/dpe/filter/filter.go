// Package filter narrows a DPE record collection by construction year and
// computes the aggregates shown next to the table and map.
package filter

import (
	"regexp"
	"strconv"

	"dpehub_backend/internal/dpe/domain"
)

var (
	yearPattern    = regexp.MustCompile(`\d{4}`)
	numericPattern = regexp.MustCompile(`^\d+$`)
)

// ParseYear extracts the first run of four digits from a construction year
// value such as "avant 1948" or "1975-1977". A purely numeric value is taken
// as the year itself, so 985 stays 985. Zero means no year.
func ParseYear(token string) (int, bool) {
	if numericPattern.MatchString(token) {
		year, err := strconv.Atoi(token)
		if err != nil || year == 0 {
			return 0, false
		}
		return year, true
	}
	match := yearPattern.FindString(token)
	if match == "" {
		return 0, false
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0, false
	}
	return year, true
}

// YearRange is an inclusive construction year range. A nil bound is open.
type YearRange struct {
	Min *int
	Max *int
}

// NewYearRange builds a range from optional bounds.
func NewYearRange(min, max *int) YearRange {
	return YearRange{Min: min, Max: max}
}

// Bounded reports whether at least one bound is set.
func (r YearRange) Bounded() bool {
	return r.Min != nil || r.Max != nil
}

// Contains reports whether a construction year value satisfies the range.
// Values without a parseable year only pass an unbounded range.
func (r YearRange) Contains(constructionYear string) bool {
	year, ok := ParseYear(constructionYear)
	if !ok {
		return !r.Bounded()
	}
	if r.Min != nil && year < *r.Min {
		return false
	}
	if r.Max != nil && year > *r.Max {
		return false
	}
	return true
}

// ApplyYearRange returns the records whose construction year falls in rng,
// preserving order. The input slice is not modified.
func ApplyYearRange(records []domain.DpeResult, rng YearRange) []domain.DpeResult {
	out := make([]domain.DpeResult, 0, len(records))
	for _, r := range records {
		if rng.Contains(r.ConstructionYear) {
			out = append(out, r)
		}
	}
	return out
}

// ThermalSieveCount counts records graded F or G.
func ThermalSieveCount(records []domain.DpeResult) int {
	n := 0
	for _, r := range records {
		if r.IsThermalSieve() {
			n++
		}
	}
	return n
}

// GradeDistribution counts records per grade, A to G plus N/A.
type GradeDistribution map[string]int

// Summary holds the aggregates of a filtered collection.
type Summary struct {
	Displayed    int
	ThermalSieve int
	DPEGrades    GradeDistribution
	GESGrades    GradeDistribution
}

// Summarize computes the aggregates of records. Every grade key is present,
// zero when unused.
func Summarize(records []domain.DpeResult) Summary {
	s := Summary{
		Displayed: len(records),
		DPEGrades: emptyDistribution(),
		GESGrades: emptyDistribution(),
	}
	for _, r := range records {
		if r.IsThermalSieve() {
			s.ThermalSieve++
		}
		s.DPEGrades[bucket(r.DPEGrade)]++
		s.GESGrades[bucket(r.GESGrade)]++
	}
	return s
}

func emptyDistribution() GradeDistribution {
	d := make(GradeDistribution, len(domain.Grades)+1)
	for _, g := range domain.Grades {
		d[g] = 0
	}
	d[domain.GradeUnknown] = 0
	return d
}

func bucket(grade string) string {
	if domain.IsGrade(grade) {
		return grade
	}
	return domain.GradeUnknown
}
