package analytics

import (
	"cmp"
	"slices"
)

// entry is one group of a group-by with its reduced value.
type entry[V cmp.Ordered] struct {
	Key   string
	Value V
}

// groupBy reduces items into one value per key.
func groupBy[T any, V cmp.Ordered](items []T, key func(T) string, reduce func(acc V, item T) V) map[string]V {
	out := make(map[string]V)
	for _, it := range items {
		k := key(it)
		out[k] = reduce(out[k], it)
	}
	return out
}

// ranked orders groups by value (descending unless asc) and then by key
// ascending, so ties always resolve to the lexicographically smallest key.
func ranked[V cmp.Ordered](groups map[string]V, asc bool) []entry[V] {
	out := make([]entry[V], 0, len(groups))
	for k, v := range groups {
		out = append(out, entry[V]{Key: k, Value: v})
	}
	slices.SortFunc(out, func(a, b entry[V]) int {
		c := cmp.Compare(b.Value, a.Value)
		if asc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func sum[T any](f func(T) int64) func(int64, T) int64 {
	return func(acc int64, it T) int64 { return acc + f(it) }
}

func count[T any](acc int, _ T) int { return acc + 1 }

func distinct[T any](items []T, key func(T) string) int {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		seen[key(it)] = struct{}{}
	}
	return len(seen)
}
