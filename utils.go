package stencil

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

type Number interface {
	constraints.Float | constraints.Integer
}

func Filter[T any](slice []T, predicate func(T) bool) []T {
	filtered := make([]T, 0, len(slice))
	for _, elem := range slice {
		if predicate(elem) {
			filtered = append(filtered, elem)
		}
	}
	return filtered
}

func Min[T Number](a T, b T) T {
	if a > b {
		return b
	}

	return a
}

func Max[T Number](a T, b T) T {
	if a < b {
		return b
	}

	return a
}

// Named is a string keyed map that remembers insertion order. Setting an
// existing name replaces the value but keeps the original position, which is
// what decides draw and legend order on a canvas.
type Named[V any] struct {
	names  []string
	values map[string]V
}

func NewNamed[V any]() *Named[V] {
	return &Named[V]{
		names:  make([]string, 0),
		values: make(map[string]V),
	}
}

func (n *Named[V]) Set(name string, value V) {
	if _, ok := n.values[name]; !ok {
		n.names = append(n.names, name)
	}
	n.values[name] = value
}

func (n *Named[V]) Get(name string) (V, bool) {
	v, ok := n.values[name]
	return v, ok
}

func (n *Named[V]) Has(name string) bool {
	_, ok := n.values[name]
	return ok
}

func (n *Named[V]) Delete(name string) {
	if _, ok := n.values[name]; !ok {
		return
	}
	delete(n.values, name)
	idx := slices.Index(n.names, name)
	n.names = slices.Delete(n.names, idx, idx+1)
}

// Index is the position of name, or -1 if it is not set.
func (n *Named[V]) Index(name string) int {
	if _, ok := n.values[name]; !ok {
		return -1
	}
	return slices.Index(n.names, name)
}

// Insert sets name at position i, clamped to the current length. A name that
// is already set only has its value replaced.
func (n *Named[V]) Insert(i int, name string, value V) {
	if _, ok := n.values[name]; !ok {
		i = Max(0, Min(i, len(n.names)))
		n.names = slices.Insert(n.names, i, name)
	}
	n.values[name] = value
}

// Names returns a copy of the names in insertion order.
func (n *Named[V]) Names() []string {
	return slices.Clone(n.names)
}

func (n *Named[V]) Values() []V {
	values := make([]V, 0, len(n.names))
	for _, name := range n.names {
		values = append(values, n.values[name])
	}
	return values
}

func (n *Named[V]) Len() int {
	return len(n.names)
}

// Each calls f for every entry in insertion order.
func (n *Named[V]) Each(f func(name string, value V)) {
	for _, name := range n.names {
		f(name, n.values[name])
	}
}
