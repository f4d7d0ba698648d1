package orchestrator

import (
	"maps"
	"slices"
)

// Data is the read-only view of everything upstream stages extracted. It is
// passed by value; stages add entries only through their returned result.
type Data struct {
	m map[string]any
}

// NewData copies m into a new view.
func NewData(m map[string]any) Data {
	return Data{m: maps.Clone(m)}
}

// Get returns the value stored under key.
func (d Data) Get(key string) (any, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Has reports whether key is present.
func (d Data) Has(key string) bool {
	_, ok := d.m[key]
	return ok
}

// Len returns the number of entries.
func (d Data) Len() int {
	return len(d.m)
}

// Keys returns the sorted keys.
func (d Data) Keys() []string {
	return slices.Sorted(maps.Keys(d.m))
}

// Map returns a shallow copy of the entries.
func (d Data) Map() map[string]any {
	out := maps.Clone(d.m)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// Select returns a copy holding only the given keys that are present.
func (d Data) Select(keys ...string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := d.m[k]; ok {
			out[k] = v
		}
	}
	return out
}

// With returns a new view with add merged in. Keys already present are kept
// unless listed in reusable; the keys that were refused are returned.
func (d Data) With(add map[string]any, reusable ...string) (Data, []string) {
	out := maps.Clone(d.m)
	if out == nil {
		out = make(map[string]any, len(add))
	}
	var refused []string
	for _, k := range slices.Sorted(maps.Keys(add)) {
		if _, exists := out[k]; exists && !slices.Contains(reusable, k) {
			refused = append(refused, k)
			continue
		}
		out[k] = add[k]
	}
	return Data{m: out}, refused
}

// Lookup returns the value under key if it has type T.
func Lookup[T any](d Data, key string) (T, bool) {
	var zero T
	v, ok := d.m[key]
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
