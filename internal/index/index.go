// Package index provides secondary indexes mapping a field value to the
// primary keys of the records holding it. Index structures carry no locking
// of their own: they are only touched while the owning table's writer lock
// is held.
package index

import (
	"github.com/kivadb/kivadb/pkg"
	"github.com/pkg/errors"
)

type Kind string

const (
	KindHash    Kind = "hash"
	KindOrdered Kind = "ordered"
)

// Index is maintained incrementally on every table mutation. Feeding an
// index a value it cannot key (an unhashable value for a hash index, an
// unorderable one for an ordered index) panics: during index creation the
// table recovers and discards the index, afterwards it is an invariant
// violation.
type Index interface {
	Insert(pk, value any)
	Update(pk, oldValue, newValue any)
	Delete(pk, value any)
	Search(value any) pkg.Set[any]
}

// Ranger is implemented by indexes that keep values in sorted order and can
// answer range lookups.
type Ranger interface {
	SearchLT(value any) pkg.Set[any]
	SearchLTE(value any) pkg.Set[any]
	SearchGT(value any) pkg.Set[any]
	SearchGTE(value any) pkg.Set[any]
}

func New(kind Kind) (Index, error) {
	switch kind {
	case KindHash:
		return NewHash(), nil
	case KindOrdered:
		return NewOrdered(), nil
	}
	return nil, errors.Errorf("unsupported index kind %q", kind)
}
