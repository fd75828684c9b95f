package selection

import (
	"context"
	"sort"
	"sync"

	errors "github.com/paveg/colstat/internal/errors"
	"github.com/paveg/colstat/internal/logging"
)

// Default is the selection name used when a caller passes true.
const Default = "default"

// Observer is called with the selection name after its history changes.
type Observer func(name string)

// history holds undo and redo stacks. A nil entry records SelectNothing.
type history struct {
	undo []Selection
	redo []Selection
}

func (h *history) current() Selection {
	if len(h.undo) == 0 {
		return nil
	}
	return h.undo[len(h.undo)-1]
}

// maskEntry caches the mask of one selection node. values holds the
// selected rows among computed.
type maskEntry struct {
	sel      Selection
	values   *RowSet
	computed *RowSet
}

// Engine owns the named selection histories of a dataset.
type Engine struct {
	mu        sync.Mutex
	ctx       Context
	histories map[string]*history
	favorites map[string]Selection
	cache     map[string]*maskEntry
	observers []Observer
	logger    *logging.Logger
}

// NewEngine creates an engine evaluating masks against ctx.
func NewEngine(ctx Context, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NoopLogger()
	}
	return &Engine{
		ctx:       ctx,
		histories: make(map[string]*history),
		favorites: make(map[string]Selection),
		cache:     make(map[string]*maskEntry),
		logger:    logger,
	}
}

// AddObserver registers fn; observers run in registration order.
func (e *Engine) AddObserver(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) notify(name, action string) {
	e.mu.Lock()
	observers := append([]Observer(nil), e.observers...)
	e.mu.Unlock()

	e.logger.LogSelection(context.Background(), name, action, nil)
	for _, fn := range observers {
		fn(name)
	}
}

func (e *Engine) historyLocked(name string) *history {
	h, ok := e.histories[name]
	if !ok {
		h = &history{}
		e.histories[name] = h
	}
	return h
}

// Current returns the active selection for name, or nil.
func (e *Engine) Current(name string) Selection {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h, ok := e.histories[name]; ok {
		return h.current()
	}
	return nil
}

// Select makes sel the current selection of name and clears its redo stack.
// A nil sel records an explicit "nothing selected" step, unless nothing is
// selected already.
func (e *Engine) Select(name string, sel Selection) {
	e.mu.Lock()
	h := e.historyLocked(name)
	if sel == nil && h.current() == nil {
		e.mu.Unlock()
		return
	}
	h.undo = append(h.undo, sel)
	h.redo = nil
	e.mu.Unlock()

	e.notify(name, "select")
}

// SelectExpression selects rows where expr holds, combined with the current
// selection by mode.
func (e *Engine) SelectExpression(name, expr string, mode Mode) error {
	if err := e.ctx.Validate(expr); err != nil {
		e.logger.LogSelection(context.Background(), name, "select", err)
		return err
	}
	e.Select(name, NewExpression(expr, e.Current(name), mode))
	return nil
}

// SelectLasso selects points of (x, y) inside the polygon (xs, ys).
func (e *Engine) SelectLasso(name, x, y string, xs, ys []float64, mode Mode) error {
	if err := e.validate(x, y); err != nil {
		return err
	}
	sel, err := NewLasso(x, y, xs, ys, e.Current(name), mode)
	if err != nil {
		return err
	}
	e.Select(name, sel)
	return nil
}

// SelectCircle selects points of (x, y) within r of (xc, yc).
func (e *Engine) SelectCircle(name, x, y string, xc, yc, r float64, mode Mode) error {
	if err := e.validate(x, y); err != nil {
		return err
	}
	e.Select(name, NewCircle(x, y, xc, yc, r, e.Current(name), mode))
	return nil
}

// SelectEllipse selects points of (x, y) inside a rotated ellipse.
func (e *Engine) SelectEllipse(name, x, y string, xc, yc, width, height, angle float64, mode Mode) error {
	if err := e.validate(x, y); err != nil {
		return err
	}
	e.Select(name, NewEllipse(x, y, xc, yc, width, height, angle, e.Current(name), mode))
	return nil
}

// SelectNonMissing selects rows where none of columns is missing.
func (e *Engine) SelectNonMissing(name string, columns []string, dropNaN, dropMasked bool, mode Mode) error {
	if err := e.validate(columns...); err != nil {
		return err
	}
	e.Select(name, NewNonMissing(columns, dropNaN, dropMasked, e.Current(name), mode))
	return nil
}

func (e *Engine) validate(exprs ...string) error {
	for _, x := range exprs {
		if err := e.ctx.Validate(x); err != nil {
			return err
		}
	}
	return nil
}

// SelectNothing records an empty selection step.
func (e *Engine) SelectNothing(name string) {
	e.Select(name, nil)
}

// SelectInverse replaces the current selection by its negation.
func (e *Engine) SelectInverse(name string) {
	e.Select(name, NewInverse(e.Current(name)))
}

// Undo steps back one history entry. It is a no-op without history.
func (e *Engine) Undo(name string) bool {
	e.mu.Lock()
	h, ok := e.histories[name]
	if !ok || len(h.undo) == 0 {
		e.mu.Unlock()
		return false
	}
	last := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, last)
	e.mu.Unlock()

	e.notify(name, "undo")
	return true
}

// Redo re-applies the last undone entry. It is a no-op without one.
func (e *Engine) Redo(name string) bool {
	e.mu.Lock()
	h, ok := e.histories[name]
	if !ok || len(h.redo) == 0 {
		e.mu.Unlock()
		return false
	}
	next := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, next)
	e.mu.Unlock()

	e.notify(name, "redo")
	return true
}

// CanUndo reports whether Undo would change the history.
func (e *Engine) CanUndo(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[name]
	return ok && len(h.undo) > 0
}

// CanRedo reports whether Redo would change the history.
func (e *Engine) CanRedo(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.histories[name]
	return ok && len(h.redo) > 0
}

// Known reports whether name has ever had a history entry.
func (e *Engine) Known(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.histories[name]
	return ok
}

// Touch notifies observers of name without changing its history.
func (e *Engine) Touch(name string) {
	e.notify(name, "touch")
}

// HasSelection reports whether name currently selects anything.
func (e *Engine) HasSelection(name string) bool {
	return e.Current(name) != nil
}

// Names returns the selection names with a current selection, sorted.
func (e *Engine) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for name, h := range e.histories {
		if h.current() != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Mask returns the mask of name over storage rows [start, end), or nil when
// name has no selection. Results are cached per selection node.
func (e *Engine) Mask(name string, start, end int) ([]bool, error) {
	e.mu.Lock()
	var sel Selection
	if h, ok := e.histories[name]; ok {
		sel = h.current()
	}
	if sel == nil {
		e.mu.Unlock()
		return nil, nil
	}
	entry, ok := e.cache[name]
	if !ok || entry.sel != sel {
		entry = &maskEntry{sel: sel, values: NewRowSet(), computed: NewRowSet()}
		e.cache[name] = entry
	}
	if entry.computed.CountRange(start, end) == end-start {
		mask := entry.values.Mask(start, end)
		e.mu.Unlock()
		return mask, nil
	}
	e.mu.Unlock()

	mask, err := sel.Evaluate(e.ctx, start, end)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if cur, ok := e.cache[name]; ok && cur == entry {
		entry.values.AddMask(mask, start)
		entry.computed.AddRange(start, end)
	}
	e.mu.Unlock()
	return mask, nil
}

// RowSet computes the full mask of name over [0, length) in chunks of
// chunkSize rows. It returns nil when name has no selection.
func (e *Engine) RowSet(name string, length, chunkSize int) (*RowSet, error) {
	if !e.HasSelection(name) {
		return nil, nil
	}
	if chunkSize <= 0 {
		chunkSize = length
	}
	out := NewRowSet()
	for start := 0; start < length; start += chunkSize {
		end := min(start+chunkSize, length)
		mask, err := e.Mask(name, start, end)
		if err != nil {
			return nil, err
		}
		out.AddMask(mask, start)
	}
	return out, nil
}

// Invalidate drops the cached mask of name.
func (e *Engine) Invalidate(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.cache, name)
}

// InvalidateAll drops every cached mask.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	clear(e.cache)
}

// FavoriteAdd stores the current selection of from under a favorite name.
func (e *Engine) FavoriteAdd(favorite, from string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.favorites[favorite]; exists {
		return errors.NewInvalidSelectionError("FavoriteAdd", favorite, "favorite already exists")
	}
	var sel Selection
	if h, ok := e.histories[from]; ok {
		sel = h.current()
	}
	if sel == nil {
		return errors.NewInvalidSelectionError("FavoriteAdd", from, "no selection to store")
	}
	e.favorites[favorite] = sel
	return nil
}

// FavoriteApply makes a stored favorite the current selection of into.
func (e *Engine) FavoriteApply(favorite, into string) error {
	e.mu.Lock()
	sel, ok := e.favorites[favorite]
	e.mu.Unlock()
	if !ok {
		return errors.NewInvalidSelectionError("FavoriteApply", favorite, "no such favorite")
	}
	e.Select(into, sel)
	return nil
}

// FavoriteRemove deletes a favorite.
func (e *Engine) FavoriteRemove(favorite string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.favorites[favorite]; !ok {
		return errors.NewInvalidSelectionError("FavoriteRemove", favorite, "no such favorite")
	}
	delete(e.favorites, favorite)
	return nil
}

// Favorites returns the favorite names, sorted.
func (e *Engine) Favorites() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.favorites))
	for name := range e.favorites {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// State is the serialized form of an engine: the current node of every
// selection history and every favorite.
type State struct {
	Selections map[string]map[string]any `json:"selections,omitempty" yaml:"selections,omitempty"`
	Favorites  map[string]map[string]any `json:"favorites,omitempty" yaml:"favorites,omitempty"`
}

// State snapshots the current selections and favorites.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{Selections: map[string]map[string]any{}, Favorites: map[string]map[string]any{}}
	for name, h := range e.histories {
		if cur := h.current(); cur != nil {
			st.Selections[name] = cur.ToMap()
		}
	}
	for name, sel := range e.favorites {
		st.Favorites[name] = sel.ToMap()
	}
	return st
}

// SetState replaces favorites and pushes each stored selection onto its
// history, so loading a state can be undone per name.
func (e *Engine) SetState(st State) error {
	favorites := make(map[string]Selection, len(st.Favorites))
	for name, doc := range st.Favorites {
		sel, err := FromMap(doc)
		if err != nil {
			return err
		}
		favorites[name] = sel
	}
	selections := make(map[string]Selection, len(st.Selections))
	for name, doc := range st.Selections {
		sel, err := FromMap(doc)
		if err != nil {
			return err
		}
		selections[name] = sel
	}

	e.mu.Lock()
	e.favorites = favorites
	e.mu.Unlock()

	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.Select(name, selections[name])
	}
	return nil
}
