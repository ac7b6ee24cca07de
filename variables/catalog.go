package variables

import (
	"fmt"
	"strconv"

	"meteostations.app/pkg/errors"
)

// ECV is an essential climate variable, the fixed cross-provider vocabulary
// for querying observations without knowing provider-specific codes.
// https://public.wmo.int/en/programmes/global-climate-observing-system/essential-climate-variables
type ECV string

const (
	Precipitation             ECV = "precipitation"
	Pressure                  ECV = "pressure"
	SurfaceRadiationLongwave  ECV = "surface_radiation_longwave"
	SurfaceRadiationShortwave ECV = "surface_radiation_shortwave"
	SurfaceWindSpeed          ECV = "surface_wind_speed"
	SurfaceWindDirection      ECV = "surface_wind_direction"
	Temperature               ECV = "temperature"
	WaterVapour               ECV = "water_vapour"
)

// ECVs returns the fixed 8-entry vocabulary
func ECVs() []ECV {
	return []ECV{
		Precipitation,
		Pressure,
		SurfaceRadiationLongwave,
		SurfaceRadiationShortwave,
		SurfaceWindSpeed,
		SurfaceWindDirection,
		Temperature,
		WaterVapour,
	}
}

// IsECV reports whether s belongs to the ECV vocabulary
func IsECV(s string) bool {
	for _, ecv := range ECVs() {
		if string(ecv) == s {
			return true
		}
	}
	return false
}

// Variable describes one provider-native variable. A code maps to at most
// one ECV tag; the zero ECV means the variable carries no tag.
type Variable struct {
	Code string
	Name string
	ECV  ECV
	Unit string
}

// Table is the bidirectional mapping between a provider's native variable
// identifiers and the ECV vocabulary.
type Table struct {
	variables []Variable
	byCode    map[string]Variable
	byName    map[string]Variable
	byECV     map[ECV][]Variable
	primary   map[ECV]string
}

// NewTable builds a catalog from the provider's variables. primary declares
// the provider's documented default code per ECV and may be nil.
func NewTable(vars []Variable, primary map[ECV]string) *Table {
	t := &Table{
		variables: vars,
		byCode:    make(map[string]Variable, len(vars)),
		byName:    make(map[string]Variable, len(vars)),
		byECV:     make(map[ECV][]Variable),
		primary:   primary,
	}
	for _, v := range vars {
		t.byCode[v.Code] = v
		if v.Name != "" {
			t.byName[v.Name] = v
		}
		if v.ECV != "" {
			t.byECV[v.ECV] = append(t.byECV[v.ECV], v)
		}
	}
	return t
}

// Variables returns the catalog entries in provider order
func (t *Table) Variables() []Variable {
	return t.variables
}

// Resolve maps one variable input to provider variables. Accepted inputs:
// a provider-native code (string or int), an ECV vocabulary string, or a
// provider variable name. An ECV resolves to the provider's primary code
// when one is declared, otherwise to every code tagged with that ECV.
func (t *Table) Resolve(input interface{}) ([]Variable, error) {
	switch v := input.(type) {
	case int:
		return t.resolveString(strconv.Itoa(v))
	case string:
		return t.resolveString(v)
	case ECV:
		return t.resolveECV(v)
	case Variable:
		return t.resolveString(v.Code)
	default:
		return nil, errors.NewUnknownVariableError(
			fmt.Sprintf("unsupported variable input type %T", input))
	}
}

func (t *Table) resolveString(s string) ([]Variable, error) {
	if v, ok := t.byCode[s]; ok {
		return []Variable{v}, nil
	}
	if IsECV(s) {
		return t.resolveECV(ECV(s))
	}
	if v, ok := t.byName[s]; ok {
		return []Variable{v}, nil
	}
	return nil, errors.NewUnknownVariableError(
		fmt.Sprintf("%q is not a variable code, name or ECV of this provider", s))
}

func (t *Table) resolveECV(ecv ECV) ([]Variable, error) {
	matches := t.byECV[ecv]
	if len(matches) == 0 {
		return nil, errors.NewUnknownVariableError(
			fmt.Sprintf("no provider code tagged with ECV %q", ecv))
	}
	if len(matches) == 1 {
		return matches, nil
	}
	if code, ok := t.primary[ecv]; ok {
		if v, found := t.byCode[code]; found {
			return []Variable{v}, nil
		}
	}
	// ambiguous ECV without a declared primary: surface every match and let
	// the caller request all of them, merging results column-wise
	return matches, nil
}

// ResolveInput normalizes a single variable value or a sequence of values
// into a deduplicated, order-preserving variable set.
func (t *Table) ResolveInput(input interface{}) ([]Variable, error) {
	var items []interface{}
	switch v := input.(type) {
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	case []int:
		for _, n := range v {
			items = append(items, n)
		}
	case []ECV:
		for _, e := range v {
			items = append(items, e)
		}
	case []interface{}:
		items = v
	case nil:
		return nil, errors.NewUnknownVariableError("no variables requested")
	default:
		items = []interface{}{input}
	}
	if len(items) == 0 {
		return nil, errors.NewUnknownVariableError("no variables requested")
	}

	var resolved []Variable
	seen := make(map[string]bool)
	for _, item := range items {
		vars, err := t.Resolve(item)
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			if !seen[v.Code] {
				seen[v.Code] = true
				resolved = append(resolved, v)
			}
		}
	}
	return resolved, nil
}
