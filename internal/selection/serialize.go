package selection

import (
	"fmt"

	errors "github.com/paveg/colstat/internal/errors"
)

// FromMap rebuilds a selection from the document produced by ToMap. A nil
// document yields a nil selection. Numbers may arrive as any Go numeric
// type, as produced by YAML or JSON decoders.
func FromMap(doc map[string]any) (Selection, error) {
	if doc == nil {
		return nil, nil
	}
	kind, _ := doc["type"].(string)

	if kind == "inverse" {
		inner, err := subSelection(doc, "selection")
		if err != nil {
			return nil, err
		}
		return NewInverse(inner), nil
	}

	modeText, _ := doc["mode"].(string)
	mode, err := ParseMode(modeText)
	if err != nil {
		return nil, err
	}
	previous, err := subSelection(doc, "previous")
	if err != nil {
		return nil, err
	}

	d := decoder{doc: doc}
	var sel Selection
	switch kind {
	case "expression":
		sel = NewExpression(d.str("expression"), previous, mode)
	case "lasso":
		sel, err = NewLasso(d.str("x"), d.str("y"), d.floats("xs"), d.floats("ys"), previous, mode)
		if err != nil {
			return nil, err
		}
	case "circle":
		sel = NewCircle(d.str("x"), d.str("y"), d.num("xc"), d.num("yc"), d.num("r"), previous, mode)
	case "ellipse":
		sel = NewEllipse(d.str("x"), d.str("y"), d.num("xc"), d.num("yc"),
			d.num("width"), d.num("height"), d.num("angle"), previous, mode)
	case "non_missing":
		sel = NewNonMissing(d.strs("columns"), d.flag("drop_nan"), d.flag("drop_masked"), previous, mode)
	default:
		return nil, errors.NewInvalidSelectionError("FromMap", kind, "unknown selection type")
	}
	if d.err != nil {
		return nil, errors.NewInvalidSelectionError("FromMap", kind, d.err.Error())
	}
	return sel, nil
}

func subSelection(doc map[string]any, key string) (Selection, error) {
	raw, ok := doc[key]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := asMap(raw)
	if !ok {
		return nil, errors.NewInvalidSelectionError("FromMap", key, fmt.Sprintf("expected a mapping, got %T", raw))
	}
	return FromMap(m)
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// decoder reads typed fields and remembers the first failure.
type decoder struct {
	doc map[string]any
	err error
}

func (d *decoder) fail(key string, v any) {
	if d.err == nil {
		d.err = fmt.Errorf("field %q: unexpected value %v (%T)", key, v, v)
	}
}

func (d *decoder) str(key string) string {
	v, ok := d.doc[key].(string)
	if !ok {
		d.fail(key, d.doc[key])
	}
	return v
}

func (d *decoder) flag(key string) bool {
	v, ok := d.doc[key].(bool)
	if !ok {
		d.fail(key, d.doc[key])
	}
	return v
}

func (d *decoder) num(key string) float64 {
	v, ok := toFloat(d.doc[key])
	if !ok {
		d.fail(key, d.doc[key])
	}
	return v
}

func (d *decoder) floats(key string) []float64 {
	switch v := d.doc[key].(type) {
	case []float64:
		return v
	case []any:
		out := make([]float64, len(v))
		for i, x := range v {
			f, ok := toFloat(x)
			if !ok {
				d.fail(key, x)
			}
			out[i] = f
		}
		return out
	default:
		d.fail(key, v)
		return nil
	}
}

func (d *decoder) strs(key string) []string {
	switch v := d.doc[key].(type) {
	case nil:
		return nil
	case []string:
		return v
	case []any:
		out := make([]string, len(v))
		for i, x := range v {
			s, ok := x.(string)
			if !ok {
				d.fail(key, x)
			}
			out[i] = s
		}
		return out
	default:
		d.fail(key, v)
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case uint64:
		return float64(x), true
	default:
		return 0, false
	}
}
