package importer

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// ColumnMapping copies Source into Target when the export has Source.
type ColumnMapping struct {
	Target string `yaml:"target" json:"target"`
	Source string `yaml:"source" json:"source"`
}

// CountryRules are the country specific adaptations.
type CountryRules struct {
	Unit          string          `yaml:"unit,omitempty" json:"unit,omitempty"`
	Costs         []ColumnMapping `yaml:"costs" json:"costs"`
	DeriveFOBUnit bool            `yaml:"deriveFobUnit,omitempty" json:"deriveFobUnit,omitempty"`
	Copies        []ColumnMapping `yaml:"copies" json:"copies"`
}

// Rules holds the rules for every country, keyed by country name.
type Rules struct {
	Countries map[string]CountryRules `yaml:"countries" json:"countries"`
}

// For returns the rules of a country. Unknown countries get no adaptations.
func (r *Rules) For(country string) CountryRules {
	if r == nil {
		return CountryRules{}
	}
	return r.Countries[country]
}

// DefaultRules returns the built-in rules.
func DefaultRules() *Rules {
	rules, err := parseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in rules are invalid: %v", err))
	}
	return rules
}

// LoadRules reads a rules file. An empty path yields the built-in rules.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadRulesFromReader(file)
}

// LoadRulesFromReader parses rules from an io.Reader.
func LoadRulesFromReader(r io.Reader) (*Rules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parseRules(data)
}

func parseRules(data []byte) (*Rules, error) {
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if rules.Countries == nil {
		rules.Countries = make(map[string]CountryRules)
	}
	for country, cr := range rules.Countries {
		for _, m := range append(cr.Costs, cr.Copies...) {
			if m.Target == "" || m.Source == "" {
				return nil, fmt.Errorf("country %s: mapping needs target and source", country)
			}
		}
	}
	return &rules, nil
}
