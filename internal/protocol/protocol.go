package protocol

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed protocol.yaml
var protocolYAML []byte

// SearchMode selects between the internal search zones and the external search routes.
type SearchMode string

const (
	SearchInternal SearchMode = "internal"
	SearchExternal SearchMode = "external"
)

// AllUnits is the unit filter that matches every unit.
const AllUnits = "all"

var (
	ErrUnknownMode = errors.New("unknown search mode")
	ErrUnknownUnit = errors.New("unknown unit")
)

// Step is one stage of the response procedure.
type Step struct {
	Index       int      `yaml:"-" json:"index"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Actions     []string `yaml:"actions" json:"actions"`
	Warnings    []string `yaml:"warnings" json:"warnings"`
	Example     string   `yaml:"example,omitempty" json:"example,omitempty"`
	Branch      bool     `yaml:"branch,omitempty" json:"branch,omitempty"`
}

type Unit struct {
	Key       string `yaml:"key" json:"key"`
	Label     string `yaml:"label" json:"label"`
	FullLabel string `yaml:"full_label" json:"full_label"`
}

type Route struct {
	ID     string `yaml:"id" json:"id"`
	Path   string `yaml:"path" json:"path"`
	MapURL string `yaml:"map_url,omitempty" json:"map_url,omitempty"`
}

// UnitRoutes groups the routes assigned to one unit.
type UnitRoutes struct {
	Unit   Unit    `json:"unit"`
	Routes []Route `json:"routes"`
}

type RoleGroup struct {
	Title  string   `yaml:"title" json:"title"`
	Duties []string `yaml:"duties" json:"duties"`
}

type Role struct {
	Code     string      `yaml:"code" json:"code"`
	Name     string      `yaml:"name" json:"name"`
	Summary  string      `yaml:"summary" json:"summary"`
	Units    string      `yaml:"units,omitempty" json:"units,omitempty"`
	Groups   []RoleGroup `yaml:"groups" json:"groups"`
	Cautions []string    `yaml:"cautions,omitempty" json:"cautions,omitempty"`
}

// Protocol is the immutable reference data of the elopement procedure.
type Protocol struct {
	steps  []Step
	units  []Unit
	routes map[SearchMode]map[string][]Route
	roles  []Role
}

type document struct {
	Steps  []Step                        `yaml:"steps"`
	Units  []Unit                        `yaml:"units"`
	Routes map[string]map[string][]Route `yaml:"routes"`
	Roles  []Role                        `yaml:"roles"`
}

// Load parses the embedded protocol file.
func Load() (*Protocol, error) {
	return Parse(protocolYAML)
}

// Parse builds a Protocol from YAML and checks that every route belongs to a known unit.
func Parse(data []byte) (*Protocol, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse protocol: %w", err)
	}
	if len(doc.Steps) == 0 {
		return nil, errors.New("protocol has no steps")
	}

	p := &Protocol{
		steps:  doc.Steps,
		units:  doc.Units,
		routes: make(map[SearchMode]map[string][]Route, len(doc.Routes)),
		roles:  doc.Roles,
	}
	for i := range p.steps {
		p.steps[i].Index = i
	}

	for mode, byUnit := range doc.Routes {
		m := SearchMode(mode)
		if m != SearchInternal && m != SearchExternal {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
		for key := range byUnit {
			if _, ok := p.unit(key); !ok {
				return nil, fmt.Errorf("%s routes: %w: %q", mode, ErrUnknownUnit, key)
			}
		}
		p.routes[m] = byUnit
	}
	return p, nil
}

func (p *Protocol) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

func (p *Protocol) Step(i int) (Step, bool) {
	if i < 0 || i >= len(p.steps) {
		return Step{}, false
	}
	return p.steps[i], true
}

func (p *Protocol) Roles() []Role {
	return p.roles
}

// Units lists the units that have at least one route in the given mode, in protocol order.
func (p *Protocol) Units(mode SearchMode) []Unit {
	var out []Unit
	for _, u := range p.units {
		if len(p.routes[mode][u.Key]) > 0 {
			out = append(out, u)
		}
	}
	return out
}

// Routes returns the routes of the given mode, filtered to one unit unless unit is AllUnits.
func (p *Protocol) Routes(mode SearchMode, unit string) ([]UnitRoutes, error) {
	byUnit, ok := p.routes[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if unit == "" {
		unit = AllUnits
	}
	if unit != AllUnits {
		if _, ok := byUnit[unit]; !ok {
			return nil, fmt.Errorf("%w: %q has no %s routes", ErrUnknownUnit, unit, mode)
		}
	}

	var out []UnitRoutes
	for _, u := range p.units {
		if unit != AllUnits && u.Key != unit {
			continue
		}
		if routes := byUnit[u.Key]; len(routes) > 0 {
			out = append(out, UnitRoutes{Unit: u, Routes: routes})
		}
	}
	return out, nil
}

func (p *Protocol) unit(key string) (Unit, bool) {
	for _, u := range p.units {
		if u.Key == key {
			return u, true
		}
	}
	return Unit{}, false
}
