// Package hierarchy keeps the administrative unit forest as a flat arena with
// precomputed ancestor chains and descendant sets. An Index is immutable once
// built; callers rebuild it when the unit table changes.
package hierarchy

import (
	"fmt"

	"github.com/ougirez/maturity/internal/domain"
	"github.com/ougirez/maturity/internal/pkg/constants"
)

type node struct {
	unit     domain.AdministrativeUnit
	parent   int
	children []int
	// ancestors from the direct parent up to the root.
	ancestors   []int
	descendants map[string]struct{}
}

type Index struct {
	nodes []node
	slots map[string]int
	roots []int
}

// Build indexes units. It fails on duplicate ids, unknown parents and cycles.
func Build(units []domain.AdministrativeUnit) (*Index, error) {
	idx := &Index{
		nodes: make([]node, 0, len(units)),
		slots: make(map[string]int, len(units)),
	}

	for _, u := range units {
		if _, dup := idx.slots[u.ID]; dup {
			return nil, constants.FieldInvalid("id", fmt.Sprintf("duplicate unit %s", u.ID))
		}
		idx.slots[u.ID] = len(idx.nodes)
		idx.nodes = append(idx.nodes, node{unit: u, parent: -1})
	}

	for i := range idx.nodes {
		pid := idx.nodes[i].unit.ParentID
		if pid == nil || *pid == "" {
			idx.roots = append(idx.roots, i)
			continue
		}
		p, ok := idx.slots[*pid]
		if !ok {
			return nil, constants.FieldInvalid("parent_id", fmt.Sprintf("unit %s has unknown parent %s", idx.nodes[i].unit.ID, *pid))
		}
		idx.nodes[i].parent = p
		idx.nodes[p].children = append(idx.nodes[p].children, i)
	}

	for i := range idx.nodes {
		seen := map[int]bool{i: true}
		for p := idx.nodes[i].parent; p >= 0; p = idx.nodes[p].parent {
			if seen[p] {
				return nil, constants.FieldInvalid("parent_id", fmt.Sprintf("cycle through unit %s", idx.nodes[i].unit.ID))
			}
			seen[p] = true
			idx.nodes[i].ancestors = append(idx.nodes[i].ancestors, p)
		}
	}

	for i := range idx.nodes {
		idx.nodes[i].descendants = make(map[string]struct{})
	}
	for i := range idx.nodes {
		for _, a := range idx.nodes[i].ancestors {
			idx.nodes[a].descendants[idx.nodes[i].unit.ID] = struct{}{}
		}
	}

	return idx, nil
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.nodes)
}

func (idx *Index) slot(id string) (int, bool) {
	if idx == nil {
		return 0, false
	}
	s, ok := idx.slots[id]
	return s, ok
}

func (idx *Index) Has(id string) bool {
	_, ok := idx.slot(id)
	return ok
}

func (idx *Index) Unit(id string) (domain.AdministrativeUnit, bool) {
	s, ok := idx.slot(id)
	if !ok {
		return domain.AdministrativeUnit{}, false
	}
	return idx.nodes[s].unit, true
}

func (idx *Index) Children(id string) []string {
	s, ok := idx.slot(id)
	if !ok {
		return nil
	}
	res := make([]string, 0, len(idx.nodes[s].children))
	for _, c := range idx.nodes[s].children {
		res = append(res, idx.nodes[c].unit.ID)
	}
	return res
}

// Ancestors returns the ids from the direct parent up to the root.
func (idx *Index) Ancestors(id string) []string {
	s, ok := idx.slot(id)
	if !ok {
		return nil
	}
	res := make([]string, 0, len(idx.nodes[s].ancestors))
	for _, a := range idx.nodes[s].ancestors {
		res = append(res, idx.nodes[a].unit.ID)
	}
	return res
}

// Depth is 0 for roots.
func (idx *Index) Depth(id string) int {
	s, ok := idx.slot(id)
	if !ok {
		return -1
	}
	return len(idx.nodes[s].ancestors)
}

// Descendants returns every unit strictly below id. The returned set must not be modified.
func (idx *Index) Descendants(id string) map[string]struct{} {
	s, ok := idx.slot(id)
	if !ok {
		return nil
	}
	return idx.nodes[s].descendants
}

// IsDescendant reports whether id lies strictly below ancestor.
func (idx *Index) IsDescendant(ancestor, id string) bool {
	s, ok := idx.slot(ancestor)
	if !ok {
		return false
	}
	_, ok = idx.nodes[s].descendants[id]
	return ok
}

func (idx *Index) All() []domain.AdministrativeUnit {
	if idx == nil {
		return nil
	}
	res := make([]domain.AdministrativeUnit, 0, len(idx.nodes))
	for i := range idx.nodes {
		res = append(res, idx.nodes[i].unit)
	}
	return res
}

// TopLevel returns the regions and city administrations in index order.
func (idx *Index) TopLevel() []domain.AdministrativeUnit {
	if idx == nil {
		return nil
	}
	var res []domain.AdministrativeUnit
	for i := range idx.nodes {
		if idx.nodes[i].unit.Type.IsTopLevel() {
			res = append(res, idx.nodes[i].unit)
		}
	}
	return res
}
