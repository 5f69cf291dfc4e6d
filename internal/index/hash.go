package index

import (
	"fmt"

	"github.com/kivadb/kivadb/internal/types"
	"github.com/kivadb/kivadb/pkg"
)

// Hash maps field values to primary-key sets for O(1) equality lookup.
// Keys are canonicalized so int and integral float forms of the same number
// land on the same entry.
type Hash struct {
	entries pkg.Map[any, pkg.Set[any]]
}

func NewHash() *Hash {
	return &Hash{entries: pkg.Map[any, pkg.Set[any]]{}}
}

func hashKey(value any) any {
	if !types.Hashable(value) {
		panic(fmt.Sprintf("hash index: unhashable value of type %T", value))
	}
	return types.CanonicalKey(value)
}

func (h *Hash) Insert(pk, value any) {
	key := hashKey(value)
	set := h.entries.Get(key)
	if set == nil {
		set = pkg.NewSet[any]()
		h.entries.Set(key, set)
	}
	set.Add(pk)
}

func (h *Hash) Update(pk, oldValue, newValue any) {
	h.Delete(pk, oldValue)
	h.Insert(pk, newValue)
}

func (h *Hash) Delete(pk, value any) {
	key := hashKey(value)
	set := h.entries.Get(key)
	if set == nil {
		return
	}
	set.Delete(pk)
	if len(set) == 0 {
		h.entries.Delete(key)
	}
}

func (h *Hash) Search(value any) pkg.Set[any] {
	set := h.entries.Get(hashKey(value))
	if set == nil {
		return pkg.Set[any]{}
	}
	return set
}
