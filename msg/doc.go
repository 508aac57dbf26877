// Package msg defines the structured documents and envelopes that travel
// between the planner, the execution units and the common resources.
package msg

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Doc is a structured document. Values are strings, booleans, numbers,
// nested documents and lists of documents.
type Doc map[string]any

func (d Doc) get(key string) (any, error) {
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("field %q is missing", key)
	}

	return v, nil
}

// Has tells if the field is present.
func (d Doc) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// String returns a string field.
func (d Doc) String(key string) (string, error) {
	v, err := d.get(key)
	if err != nil {
		return "", err
	}

	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, not a string", key, v)
	}

	return s, nil
}

// Bool returns a boolean field.
func (d Doc) Bool(key string) (bool, error) {
	v, err := d.get(key)
	if err != nil {
		return false, err
	}

	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q is %T, not a boolean", key, v)
	}

	return b, nil
}

// Float returns a numeric field as float64.
func (d Doc) Float(key string) (float64, error) {
	v, err := d.get(key)
	if err != nil {
		return 0, err
	}

	f, ok := toFloat(v)
	if !ok {
		return 0, fmt.Errorf("field %q is %T, not a number", key, v)
	}

	return f, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Doc returns a nested document.
func (d Doc) Doc(key string) (Doc, error) {
	v, err := d.get(key)
	if err != nil {
		return nil, err
	}

	sub, ok := asDoc(v)
	if !ok {
		return nil, fmt.Errorf("field %q is %T, not a document", key, v)
	}

	return sub, nil
}

func asDoc(v any) (Doc, bool) {
	switch m := v.(type) {
	case Doc:
		return m, true
	case map[string]any:
		return Doc(m), true
	default:
		return nil, false
	}
}

// List returns a list of documents.
func (d Doc) List(key string) ([]Doc, error) {
	v, err := d.get(key)
	if err != nil {
		return nil, err
	}

	switch l := v.(type) {
	case []Doc:
		return l, nil
	case []any:
		out := make([]Doc, 0, len(l))

		for i, e := range l {
			sub, ok := asDoc(e)
			if !ok {
				return nil, fmt.Errorf("field %q[%d] is %T, not a document",
					key, i, e)
			}

			out = append(out, sub)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("field %q is %T, not a list", key, v)
	}
}

// Strings returns a list of strings.
func (d Doc) Strings(key string) ([]string, error) {
	v, err := d.get(key)
	if err != nil {
		return nil, err
	}

	switch l := v.(type) {
	case []string:
		return l, nil
	case []any:
		out := make([]string, 0, len(l))

		for i, e := range l {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("field %q[%d] is %T, not a string",
					key, i, e)
			}

			out = append(out, s)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("field %q is %T, not a list", key, v)
	}
}

// Clone deep-copies the document.
func (d Doc) Clone() Doc {
	if d == nil {
		return nil
	}

	out := make(Doc, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Doc:
		return x.Clone()
	case map[string]any:
		return Doc(x).Clone()
	case []Doc:
		out := make([]Doc, len(x))
		for i, e := range x {
			out[i] = e.Clone()
		}

		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}

		return out
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}

// Keys returns the field names in sorted order.
func (d Doc) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Hash returns a hash of the canonical JSON form of the document. Equal
// documents hash equally regardless of map iteration order.
func (d Doc) Hash() uint64 {
	b, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}

	return xxhash.Sum64(b)
}
