package dataset

import (
	"slices"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/expr"
)

// AddVirtualColumn defines or replaces a column computed from formula.
// Every identifier must resolve and the virtual columns must stay acyclic.
func (ds *Dataset) AddVirtualColumn(name, formula string) error {
	if err := ds.checkMutable("AddVirtualColumn"); err != nil {
		return err
	}
	node, err := ds.evaluator.Parse(formula)
	if err != nil {
		return err
	}

	ds.mu.Lock()
	for _, fn := range expr.Functions(node) {
		if _, ok := ds.functions[fn]; !ok && !expr.IsBuiltin(fn) {
			names := ds.namesLocked()
			ds.mu.Unlock()
			return errors.NewNameErrorWithSuggestions("AddVirtualColumn", fn, names)
		}
	}
	for _, ident := range expr.Identifiers(node) {
		if ident != name && !ds.resolvableLocked(ident) {
			names := ds.namesLocked()
			ds.mu.Unlock()
			return errors.NewNameErrorWithSuggestions("AddVirtualColumn", ident, names)
		}
	}

	previous := slices.Clone(ds.virtual)
	if i := ds.virtualIndexLocked(name); i >= 0 {
		ds.virtual[i].formula = formula
	} else {
		ds.virtual = append(ds.virtual, virtualColumn{name: name, formula: formula})
	}
	if path := ds.cycleLocked(); path != nil {
		ds.virtual = previous
		ds.mu.Unlock()
		return errors.NewCycleError("AddVirtualColumn", path)
	}
	ds.mu.Unlock()

	ds.mutated("AddVirtualColumn", name)
	return nil
}

// RemoveVirtualColumn deletes a virtual column.
func (ds *Dataset) RemoveVirtualColumn(name string) error {
	if err := ds.checkMutable("RemoveVirtualColumn"); err != nil {
		return err
	}
	ds.mu.Lock()
	i := ds.virtualIndexLocked(name)
	if i < 0 {
		ds.mu.Unlock()
		return errors.NewNameError("RemoveVirtualColumn", name)
	}
	ds.virtual = slices.Delete(ds.virtual, i, i+1)
	ds.mu.Unlock()

	ds.mutated("RemoveVirtualColumn", name)
	return nil
}

// VirtualColumns returns the virtual columns in definition order.
func (ds *Dataset) VirtualColumns() [][2]string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	out := make([][2]string, len(ds.virtual))
	for i, v := range ds.virtual {
		out[i] = [2]string{v.name, v.formula}
	}
	return out
}

func (ds *Dataset) virtualIndexLocked(name string) int {
	for i, v := range ds.virtual {
		if v.name == name {
			return i
		}
	}
	return -1
}

const (
	white = iota
	grey
	black
)

// cycleLocked returns a dependency path that closes a cycle among virtual
// columns, or nil. Storage columns shadow virtual columns of the same name
// and end the walk.
func (ds *Dataset) cycleLocked() []string {
	deps := make(map[string][]string, len(ds.virtual))
	for _, v := range ds.virtual {
		node, err := ds.evaluator.Parse(v.formula)
		if err != nil {
			continue
		}
		for _, ident := range expr.Identifiers(node) {
			if ds.columnIndexLocked(ident) >= 0 {
				continue
			}
			if _, ok := ds.variables[ident]; ok {
				continue
			}
			if ds.virtualIndexLocked(ident) >= 0 {
				deps[v.name] = append(deps[v.name], ident)
			}
		}
	}

	color := make(map[string]int, len(deps))
	var stack []string
	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = grey
		stack = append(stack, name)
		for _, dep := range deps[name] {
			switch color[dep] {
			case grey:
				start := slices.Index(stack, dep)
				return append(slices.Clone(stack[start:]), dep)
			case white:
				if path := visit(dep); path != nil {
					return path
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}
	for _, v := range ds.virtual {
		if color[v.name] == white {
			if path := visit(v.name); path != nil {
				return path
			}
		}
	}
	return nil
}
