package book

import (
	"math/rand"
	"sort"
	"testing"
)

func TestRBTreeInsertFindDelete(t *testing.T) {
	tree := NewRBTree()
	lvl1 := tree.UpsertLevel(100)
	if lvl1 == nil {
		t.Fatal("UpsertLevel failed")
	}
	if lvl2 := tree.FindLevel(100); lvl2 != lvl1 {
		t.Error("FindLevel did not return same PriceLevel")
	}

	tree.UpsertLevel(200)
	if tree.MinLevel().Price != 100 {
		t.Error("expected min=100")
	}
	if tree.MaxLevel().Price != 200 {
		t.Error("expected max=200")
	}

	if !tree.DeleteLevel(100) {
		t.Error("DeleteLevel failed")
	}
	if tree.FindLevel(100) != nil {
		t.Error("expected level 100 to be gone")
	}
}

func TestDeleteNonExistentLevel(t *testing.T) {
	tree := NewRBTree()
	if tree.DeleteLevel(123) {
		t.Error("expected false when deleting non-existent level")
	}
}

func TestEmptyTreeMinMax(t *testing.T) {
	tree := NewRBTree()
	if tree.MinLevel() != nil || tree.MaxLevel() != nil {
		t.Error("expected nil for min/max on empty tree")
	}
}

func TestUpsertDuplicateLevel(t *testing.T) {
	tree := NewRBTree()
	lvl1 := tree.UpsertLevel(150)
	lvl2 := tree.UpsertLevel(150)
	if lvl1 != lvl2 {
		t.Error("Upsert should return the same level for a duplicate price")
	}
}

func TestIterationOrder(t *testing.T) {
	tree := NewRBTree()
	prices := []uint64{105, 101, 103, 102, 104}
	for _, p := range prices {
		tree.UpsertLevel(p)
	}

	var asc []uint64
	tree.ForEachAscending(func(lvl *PriceLevel) bool {
		asc = append(asc, lvl.Price)
		return true
	})
	var desc []uint64
	tree.ForEachDescending(func(lvl *PriceLevel) bool {
		desc = append(desc, lvl.Price)
		return true
	})

	for i := 0; i < len(asc); i++ {
		if asc[i] != uint64(101+i) {
			t.Fatalf("ascending order broken: %v", asc)
		}
		if desc[i] != uint64(105-i) {
			t.Fatalf("descending order broken: %v", desc)
		}
	}
}

func TestRandomInsertDelete(t *testing.T) {
	tree := NewRBTree()
	rng := rand.New(rand.NewSource(42))

	present := make(map[uint64]bool)
	for i := 0; i < 5000; i++ {
		p := uint64(rng.Intn(500) + 1)
		if present[p] {
			if !tree.DeleteLevel(p) {
				t.Fatalf("delete of present key %d failed", p)
			}
			delete(present, p)
		} else {
			tree.UpsertLevel(p)
			present[p] = true
		}
	}

	if tree.Size() != len(present) {
		t.Fatalf("size mismatch: tree=%d want=%d", tree.Size(), len(present))
	}

	var want []uint64
	for p := range present {
		want = append(want, p)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })

	var got []uint64
	tree.ForEachAscending(func(lvl *PriceLevel) bool {
		got = append(got, lvl.Price)
		return true
	})
	if len(got) != len(want) {
		t.Fatalf("iteration length mismatch: got=%d want=%d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("iteration mismatch at %d: got=%d want=%d", i, got[i], want[i])
		}
	}
}
