package dataset

import (
	"fmt"
	"maps"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/expr"
	"github.com/paveg/colstat/internal/selection"
	"github.com/paveg/colstat/internal/state"
)

// VirtualColumnState is a virtual column definition.
type VirtualColumnState struct {
	Name    string `json:"name" yaml:"name"`
	Formula string `json:"formula" yaml:"formula"`
}

// FunctionState is a stateful user function.
type FunctionState struct {
	Kind  string         `json:"kind" yaml:"kind"`
	State map[string]any `json:"state,omitempty" yaml:"state,omitempty"`
}

// State is everything about a dataset that is not storage data.
type State struct {
	VirtualColumns []VirtualColumnState      `json:"virtual_columns,omitempty" yaml:"virtual_columns,omitempty"`
	Variables      map[string]float64        `json:"variables,omitempty" yaml:"variables,omitempty"`
	Functions      map[string]FunctionState  `json:"functions,omitempty" yaml:"functions,omitempty"`
	Selections     map[string]map[string]any `json:"selections,omitempty" yaml:"selections,omitempty"`
	Favorites      map[string]map[string]any `json:"favorites,omitempty" yaml:"favorites,omitempty"`
	ActiveFraction float64                   `json:"active_fraction" yaml:"active_fraction"`
}

// State captures the dataset state. Functions that do not implement
// expr.StatefulFunction are left out.
func (ds *Dataset) State() State {
	ds.mu.RLock()
	st := State{
		Variables:      maps.Clone(ds.variables),
		Functions:      map[string]FunctionState{},
		ActiveFraction: ds.activeFraction,
	}
	for _, v := range ds.virtual {
		st.VirtualColumns = append(st.VirtualColumns, VirtualColumnState{Name: v.name, Formula: v.formula})
	}
	for name, fn := range ds.functions {
		if sf, ok := fn.(expr.StatefulFunction); ok {
			st.Functions[name] = FunctionState{Kind: sf.Kind(), State: sf.State()}
		}
	}
	ds.mu.RUnlock()

	sel := ds.selections.State()
	st.Selections = sel.Selections
	st.Favorites = sel.Favorites
	return st
}

// SetState replaces virtual columns and variables with those in st,
// restores its functions and pushes its selections onto their histories.
// Functions already on the dataset that st does not name are kept.
func (ds *Dataset) SetState(st State) error {
	if err := ds.checkMutable("SetState"); err != nil {
		return err
	}
	functions := make(map[string]expr.Function, len(st.Functions))
	for name, fs := range st.Functions {
		fn, err := expr.NewStateful(fs.Kind, fs.State)
		if err != nil {
			return fmt.Errorf("restoring function %s: %w", name, err)
		}
		functions[name] = fn
	}
	virtual := make([]virtualColumn, 0, len(st.VirtualColumns))
	for _, v := range st.VirtualColumns {
		if _, err := ds.evaluator.Parse(v.Formula); err != nil {
			return err
		}
		virtual = append(virtual, virtualColumn{name: v.Name, formula: v.Formula})
	}

	ds.mu.Lock()
	previous := ds.virtual
	ds.virtual = virtual
	if path := ds.cycleLocked(); path != nil {
		ds.virtual = previous
		ds.mu.Unlock()
		return errors.NewCycleError("SetState", path)
	}
	if st.Variables != nil {
		ds.variables = maps.Clone(st.Variables)
	}
	maps.Copy(ds.functions, functions)
	ds.mu.Unlock()
	ds.mutated("SetState", "")

	if st.ActiveFraction > 0 {
		if err := ds.SetActiveFraction(st.ActiveFraction); err != nil {
			return err
		}
	}
	return ds.selections.SetState(selection.State{Selections: st.Selections, Favorites: st.Favorites})
}

// SaveState writes the state to path as YAML or JSON, chosen by the file
// extension. A trailing .zst compresses it.
func (ds *Dataset) SaveState(path string) error {
	return state.Save(path, ds.State())
}

// LoadState reads a file written by SaveState and applies it.
func (ds *Dataset) LoadState(path string) error {
	var st State
	if err := state.Load(path, &st); err != nil {
		return err
	}
	return ds.SetState(st)
}
