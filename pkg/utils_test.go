package pkg_test

import (
	"testing"

	. "github.com/kivadb/kivadb/pkg"
)

func TestFilter(t *testing.T) {
	res := Filter([]int{1, 2, 3, 4, 5, 6}, func(i int) bool {
		return i%2 == 0
	})

	if len(res) != 3 {
		t.Errorf("Expected 3, got %d", len(res))
	}

	if res[0] != 2 || res[1] != 4 || res[2] != 6 {
		t.Errorf("Expected 2, 4, 6, got %d, %d, %d", res[0], res[1], res[2])
	}
}

func TestSet(t *testing.T) {
	s := NewSet(1, 2, 2, 3)
	if len(s) != 3 {
		t.Errorf("Expected 3 items, got %d", len(s))
	}
	if !s.Has(2) {
		t.Error("Expected set to contain 2")
	}
	s.Delete(2)
	if s.Has(2) {
		t.Error("Expected 2 to be removed")
	}
}
