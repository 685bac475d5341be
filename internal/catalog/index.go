package catalog

import "sort"

// Index answers selection queries over a loaded catalog. It is built once
// per load and is read-only afterwards.
type Index struct {
	catalog    *Catalog
	byID       map[string]int
	bySuite    map[string][]int
	byCategory map[string][]int
	byAction   map[string][]int
}

// NewIndex precomputes the suite, category and action groupings. Groupings
// preserve catalog order. For duplicate ids the first scenario wins.
func NewIndex(c *Catalog) *Index {
	if c == nil {
		c = &Catalog{}
	}
	x := &Index{
		catalog:    c,
		byID:       make(map[string]int, len(c.Scenarios)),
		bySuite:    make(map[string][]int),
		byCategory: make(map[string][]int),
		byAction:   make(map[string][]int),
	}
	for i, s := range c.Scenarios {
		if _, dup := x.byID[s.ID]; !dup {
			x.byID[s.ID] = i
		}
		if s.Suite != "" {
			x.bySuite[s.Suite] = append(x.bySuite[s.Suite], i)
		}
		if s.Category != "" {
			x.byCategory[s.Category] = append(x.byCategory[s.Category], i)
		}
		if action := c.ActionFor(s.ID); action != "" {
			x.byAction[action] = append(x.byAction[action], i)
		}
	}
	return x
}

// Catalog returns the indexed catalog.
func (x *Index) Catalog() *Catalog { return x.catalog }

// All returns every scenario in catalog order.
func (x *Index) All() []Scenario {
	return append([]Scenario(nil), x.catalog.Scenarios...)
}

// Lookup finds a scenario by id.
func (x *Index) Lookup(id string) (Scenario, bool) {
	i, ok := x.byID[id]
	if !ok {
		return Scenario{}, false
	}
	return x.catalog.Scenarios[i], true
}

// BySuite returns the scenarios tagged with suite.
func (x *Index) BySuite(suite string) []Scenario { return x.pick(x.bySuite[suite]) }

// ByCategory returns the scenarios in category.
func (x *Index) ByCategory(category string) []Scenario { return x.pick(x.byCategory[category]) }

// ByAction returns the scenarios whose primary intent routes to action.
func (x *Index) ByAction(action string) []Scenario { return x.pick(x.byAction[action]) }

// ActionFor returns the routed action of a scenario, or "".
func (x *Index) ActionFor(id string) string { return x.catalog.ActionFor(id) }

// Suites returns the known suite tags, sorted.
func (x *Index) Suites() []string { return keys(x.bySuite) }

// Categories returns the known categories, sorted.
func (x *Index) Categories() []string { return keys(x.byCategory) }

// Actions returns the routed actions that have at least one scenario, sorted.
func (x *Index) Actions() []string { return keys(x.byAction) }

func (x *Index) pick(idx []int) []Scenario {
	out := make([]Scenario, len(idx))
	for i, j := range idx {
		out[i] = x.catalog.Scenarios[j]
	}
	return out
}

func keys(m map[string][]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
