// Package catalog loads the prospection communes and the department
// heuristic used to scope upstream queries by postal code prefix.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed communes.yaml
var defaultCatalog []byte

// DepartmentRule selects Code when a lower-cased commune name contains any
// Match fragment.
type DepartmentRule struct {
	Code  string   `yaml:"code"`
	Match []string `yaml:"match"`
}

// Catalog is the list of selectable communes plus department rules.
type Catalog struct {
	DefaultDepartment string           `yaml:"default_department"`
	Departments       []DepartmentRule `yaml:"departments"`
	Communes          []string         `yaml:"communes"`
}

// Commune pairs a catalog entry with its resolved department.
type Commune struct {
	Name       string
	Department string
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic("embedded communes catalog is invalid: " + err.Error())
	}
	return c
}

// Load reads a catalog file, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read communes catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode communes catalog: %w", err)
	}
	if c.DefaultDepartment == "" {
		return nil, fmt.Errorf("communes catalog: default_department is required")
	}
	for i, rule := range c.Departments {
		if rule.Code == "" {
			return nil, fmt.Errorf("communes catalog: department rule %d has no code", i)
		}
		for j, m := range rule.Match {
			c.Departments[i].Match[j] = lower(strings.TrimSpace(m))
		}
	}
	return &c, nil
}

// DepartmentFor returns the department code whose rule matches commune,
// falling back to the default department. Matching is a case-insensitive
// substring test.
func (c *Catalog) DepartmentFor(commune string) string {
	name := lower(commune)
	for _, rule := range c.Departments {
		for _, fragment := range rule.Match {
			if fragment != "" && strings.Contains(name, fragment) {
				return rule.Code
			}
		}
	}
	return c.DefaultDepartment
}

// List returns every catalog commune with its department.
func (c *Catalog) List() []Commune {
	out := make([]Commune, 0, len(c.Communes))
	for _, name := range c.Communes {
		out = append(out, Commune{Name: name, Department: c.DepartmentFor(name)})
	}
	return out
}

// First returns the initially selected commune, or "" for an empty catalog.
func (c *Catalog) First() string {
	if len(c.Communes) == 0 {
		return ""
	}
	return c.Communes[0]
}

// lower folds with French rules. Casers are stateful, so one is built per call.
func lower(s string) string {
	return cases.Lower(language.French).String(s)
}
