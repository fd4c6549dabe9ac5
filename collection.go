package sitegen

import (
	"cmp"
	"sort"
)

// Item pairs a parsed value with the path it was parsed from. The path
// travels with the value so render failures stay attributable to their
// source file.
type Item[T any] struct {
	Path  string
	Value T
}

// Collection is an ordered sequence of parsed items. Order is the
// lexical input-path order from parsing until an explicit sort is
// applied. Rendering only reads the collection; sorts are the only
// mutation.
type Collection[T any] struct {
	items []Item[T]
}

// Parse applies parseFn to every matched path in order. A failing path
// is excluded from the collection and recorded instead; the remaining
// paths are still processed. With zero failures the error is nil,
// otherwise it is an *AggregateError listing every failure in input
// order. The partial collection is returned either way.
func Parse[T any](m *Matches, parseFn func(path string) (T, error)) (*Collection[T], error) {
	c := &Collection[T]{items: make([]Item[T], 0, len(m.paths))}
	var failures []*PathError

	for _, path := range m.paths {
		value, err := parseFn(path)
		if err != nil {
			failures = append(failures, &PathError{Path: path, Err: err})
			continue
		}
		c.items = append(c.items, Item[T]{Path: path, Value: value})
	}

	return c, aggregate("parse", failures)
}

// SortByKey sorts the collection ascending by the given key. The sort
// is stable: items with equal keys keep their prior relative order.
// Returns the collection for chaining.
func SortByKey[T any, K cmp.Ordered](c *Collection[T], key func(T) K) *Collection[T] {
	sort.SliceStable(c.items, func(i, j int) bool {
		return key(c.items[i].Value) < key(c.items[j].Value)
	})
	return c
}

// SortByKeyDesc sorts the collection descending by the given key.
// Implemented as a stable sort with an inverted comparison rather than
// sort-then-reverse, which would break stability for equal keys.
func SortByKeyDesc[T any, K cmp.Ordered](c *Collection[T], key func(T) K) *Collection[T] {
	sort.SliceStable(c.items, func(i, j int) bool {
		return key(c.items[i].Value) > key(c.items[j].Value)
	})
	return c
}

// Len returns the number of items in the collection.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

// Items returns a copy of the item values in collection order.
func (c *Collection[T]) Items() []T {
	values := make([]T, len(c.items))
	for i, item := range c.items {
		values[i] = item.Value
	}
	return values
}

// First returns the first item value, or false if the collection is
// empty.
func (c *Collection[T]) First() (T, bool) {
	if len(c.items) == 0 {
		var zero T
		return zero, false
	}
	return c.items[0].Value, true
}
