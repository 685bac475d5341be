package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFilter is returned for filters that name no known selection.
var ErrUnknownFilter = errors.New("unknown filter")

// FilterKind is the kind of selection a Filter makes.
type FilterKind string

const (
	FilterAll      FilterKind = "all"
	FilterSuite    FilterKind = "suite"
	FilterAction   FilterKind = "action"
	FilterCategory FilterKind = "category"
	// FilterName is a bare word, resolved against suites first, then actions.
	FilterName FilterKind = "name"
)

// Filter selects a subset of the catalog.
type Filter struct {
	Kind  FilterKind
	Value string
}

func (f Filter) String() string {
	switch f.Kind {
	case FilterAll:
		return "all"
	case FilterName:
		return f.Value
	default:
		return string(f.Kind) + ":" + f.Value
	}
}

// ParseFilter parses "all", "suite:<tag>", "action:<name>",
// "category:<name>" or a bare word. An empty string means all.
func ParseFilter(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "all" {
		return Filter{Kind: FilterAll}, nil
	}

	prefix, value, ok := strings.Cut(s, ":")
	if !ok {
		return Filter{Kind: FilterName, Value: s}, nil
	}
	if value == "" {
		return Filter{}, fmt.Errorf("%w: %q has an empty value", ErrUnknownFilter, s)
	}
	switch kind := FilterKind(prefix); kind {
	case FilterSuite, FilterAction, FilterCategory:
		return Filter{Kind: kind, Value: value}, nil
	default:
		return Filter{}, fmt.Errorf("%w: unknown prefix %q", ErrUnknownFilter, prefix)
	}
}

// Select returns the scenarios matching f in catalog order. A prefixed
// filter that matches nothing yields an empty selection; a bare word that
// names neither a suite nor an action is ErrUnknownFilter.
func (x *Index) Select(f Filter) ([]Scenario, error) {
	switch f.Kind {
	case FilterAll:
		return x.All(), nil
	case FilterSuite:
		return x.BySuite(f.Value), nil
	case FilterAction:
		return x.ByAction(f.Value), nil
	case FilterCategory:
		return x.ByCategory(f.Value), nil
	case FilterName:
		if _, ok := x.bySuite[f.Value]; ok {
			return x.BySuite(f.Value), nil
		}
		if _, ok := x.byAction[f.Value]; ok {
			return x.ByAction(f.Value), nil
		}
		return nil, fmt.Errorf("%w: %q is neither a suite nor an action", ErrUnknownFilter, f.Value)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnknownFilter, f.Kind)
	}
}

// SelectString parses s and selects.
func (x *Index) SelectString(s string) ([]Scenario, error) {
	f, err := ParseFilter(s)
	if err != nil {
		return nil, err
	}
	return x.Select(f)
}
