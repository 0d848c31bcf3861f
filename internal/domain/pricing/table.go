// Package pricing holds the immutable material -> award rule table and the
// category tree the front end walks.
package pricing

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("pricing: material not found")

type Table struct {
	rules      map[string]Rule
	categories []Category
}

// NewTable builds the table from the category tree. Every material must appear
// once, with positive points and a known unit.
func NewTable(specs []CategorySpec) (*Table, error) {
	if len(specs) == 0 {
		return nil, errors.New("pricing: no categories")
	}
	t := &Table{
		rules:      make(map[string]Rule),
		categories: make([]Category, 0, len(specs)),
	}
	seenCat := make(map[string]struct{}, len(specs))
	for _, cs := range specs {
		name := strings.TrimSpace(cs.Name)
		if name == "" {
			return nil, errors.New("pricing: category without name")
		}
		if _, dup := seenCat[name]; dup {
			return nil, fmt.Errorf("pricing: duplicate category %q", name)
		}
		seenCat[name] = struct{}{}
		if len(cs.Materials) == 0 {
			return nil, fmt.Errorf("pricing: category %q has no materials", name)
		}

		cat := Category{Name: name, Materials: make([]string, 0, len(cs.Materials))}
		for _, ms := range cs.Materials {
			id := strings.TrimSpace(ms.Name)
			switch {
			case id == "":
				return nil, fmt.Errorf("pricing: material without name in %q", name)
			case ms.Points <= 0:
				return nil, fmt.Errorf("pricing: material %q: points must be positive, got %d", id, ms.Points)
			case !ms.Type.Valid():
				return nil, fmt.Errorf("pricing: material %q: unknown type %q", id, ms.Type)
			}
			if prev, dup := t.rules[id]; dup {
				return nil, fmt.Errorf("pricing: material %q listed in %q and %q", id, prev.Category, name)
			}
			t.rules[id] = Rule{MaterialID: id, Category: name, PointsPerUnit: ms.Points, Unit: ms.Type}
			cat.Materials = append(cat.Materials, id)
		}
		t.categories = append(t.categories, cat)
	}
	return t, nil
}

func (t *Table) Lookup(materialID string) (Rule, error) {
	r, ok := t.rules[materialID]
	if !ok {
		return Rule{}, fmt.Errorf("%w: %q", ErrNotFound, materialID)
	}
	return r, nil
}

// Categories returns a copy of the category tree.
func (t *Table) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = Category{Name: c.Name, Materials: append([]string(nil), c.Materials...)}
	}
	return out
}

// Materials lists the rules of one category in display order.
func (t *Table) Materials(category string) ([]Rule, error) {
	for _, c := range t.categories {
		if c.Name != category {
			continue
		}
		out := make([]Rule, 0, len(c.Materials))
		for _, id := range c.Materials {
			out = append(out, t.rules[id])
		}
		return out, nil
	}
	return nil, fmt.Errorf("pricing: category %q not found", category)
}

func (t *Table) Len() int { return len(t.rules) }
