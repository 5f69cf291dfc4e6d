package query

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/kivadb/kivadb/internal/types"
)

func parseOrderKey(key string) (field string, desc bool) {
	if strings.HasPrefix(key, "-") {
		return key[1:], true
	}
	return key, false
}

func orderLess(a, b types.Record, field string, desc bool) bool {
	if desc {
		return types.TotalLess(b.Get(field), a.Get(field))
	}
	return types.TotalLess(a.Get(field), b.Get(field))
}

// Order sorts records by the given keys, a "-" prefix meaning descending.
// Earlier keys dominate: the multi-key sort is achieved by stably sorting
// from the last key back to the first. Missing fields sort as null, before
// any value. The input slice is not modified.
func Order(records []types.Record, orderBy []string) []types.Record {
	result := make([]types.Record, len(records))
	copy(result, records)
	if len(orderBy) == 0 {
		return result
	}
	for i := len(orderBy) - 1; i >= 0; i-- {
		field, desc := parseOrderKey(orderBy[i])
		sort.SliceStable(result, func(a, b int) bool {
			return orderLess(result[a], result[b], field, desc)
		})
	}
	return result
}

type topKHeap struct {
	recs  []types.Record
	field string
	desc  bool
}

// Less keeps the record that should be evicted first at the root: under the
// requested order that is the greatest of the kept k.
func (h *topKHeap) Len() int { return len(h.recs) }
func (h *topKHeap) Less(i, j int) bool {
	return orderLess(h.recs[j], h.recs[i], h.field, h.desc)
}
func (h *topKHeap) Swap(i, j int) { h.recs[i], h.recs[j] = h.recs[j], h.recs[i] }
func (h *topKHeap) Push(x any)    { h.recs = append(h.recs, x.(types.Record)) }
func (h *topKHeap) Pop() any {
	last := h.recs[len(h.recs)-1]
	h.recs = h.recs[:len(h.recs)-1]
	return last
}

// TopK returns the first k records of Order(records, [key]) in O(n log k)
// using a bounded heap instead of a full sort. Only single-key orderings
// qualify; callers fall back to Order otherwise.
func TopK(records []types.Record, key string, k int) []types.Record {
	if k <= 0 {
		return []types.Record{}
	}
	if k >= len(records) {
		return Order(records, []string{key})
	}
	field, desc := parseOrderKey(key)
	h := &topKHeap{recs: make([]types.Record, 0, k), field: field, desc: desc}
	for _, rec := range records {
		if h.Len() < k {
			heap.Push(h, rec)
			continue
		}
		if orderLess(rec, h.recs[0], field, desc) {
			h.recs[0] = rec
			heap.Fix(h, 0)
		}
	}
	kept := make([]types.Record, h.Len())
	copy(kept, h.recs)
	sort.SliceStable(kept, func(a, b int) bool {
		return orderLess(kept[a], kept[b], field, desc)
	})
	return kept
}
