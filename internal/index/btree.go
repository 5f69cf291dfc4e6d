package index

import (
	"fmt"

	"github.com/google/btree"

	"github.com/kivadb/kivadb/internal/types"
	"github.com/kivadb/kivadb/pkg"
)

const btreeDegree = 32

// orderedItem is a (value, pk) entry. bound items (-1/+1) are never stored;
// they exist only as scan pivots sorting before/after every real entry with
// an equal value.
type orderedItem struct {
	value any
	pk    any
	bound int
}

func (i orderedItem) Less(than btree.Item) bool {
	o := than.(orderedItem)
	c, ok := types.Compare(i.value, o.value)
	if !ok {
		if !types.Equal(i.value, o.value) {
			panic(fmt.Sprintf("ordered index: cannot order %T against %T", i.value, o.value))
		}
		c = 0
	}
	if c != 0 {
		return c < 0
	}
	if i.bound != o.bound {
		return i.bound < o.bound
	}
	if i.bound != 0 {
		return false
	}
	return types.TotalLess(i.pk, o.pk)
}

// Ordered keeps (value, pk) pairs sorted by value, supporting equality and
// range lookups in O(log n). Only bool, numeric and string values have a
// defined order; anything else panics in the comparator.
type Ordered struct {
	tree *btree.BTree
}

func NewOrdered() *Ordered {
	return &Ordered{tree: btree.New(btreeDegree)}
}

func (o *Ordered) Insert(pk, value any) {
	o.tree.ReplaceOrInsert(orderedItem{value: value, pk: pk})
}

// Update is delete-then-insert rather than swap-in-place; both halves are
// O(log n) and always run under the table's writer lock.
func (o *Ordered) Update(pk, oldValue, newValue any) {
	o.Delete(pk, oldValue)
	o.Insert(pk, newValue)
}

func (o *Ordered) Delete(pk, value any) {
	o.tree.Delete(orderedItem{value: value, pk: pk})
}

func collect(result pkg.Set[any]) btree.ItemIterator {
	return func(item btree.Item) bool {
		result.Add(item.(orderedItem).pk)
		return true
	}
}

func (o *Ordered) Search(value any) pkg.Set[any] {
	result := pkg.NewSet[any]()
	o.tree.AscendRange(
		orderedItem{value: value, bound: -1},
		orderedItem{value: value, bound: 1},
		collect(result),
	)
	return result
}

func (o *Ordered) SearchLT(value any) pkg.Set[any] {
	result := pkg.NewSet[any]()
	o.tree.AscendLessThan(orderedItem{value: value, bound: -1}, collect(result))
	return result
}

func (o *Ordered) SearchLTE(value any) pkg.Set[any] {
	result := pkg.NewSet[any]()
	o.tree.AscendLessThan(orderedItem{value: value, bound: 1}, collect(result))
	return result
}

func (o *Ordered) SearchGT(value any) pkg.Set[any] {
	result := pkg.NewSet[any]()
	o.tree.AscendGreaterOrEqual(orderedItem{value: value, bound: 1}, collect(result))
	return result
}

func (o *Ordered) SearchGTE(value any) pkg.Set[any] {
	result := pkg.NewSet[any]()
	o.tree.AscendGreaterOrEqual(orderedItem{value: value, bound: -1}, collect(result))
	return result
}
