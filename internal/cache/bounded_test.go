package cache

import (
	"reflect"
	"testing"
)

func TestInsertDropsOldestBeyondLimit(t *testing.T) {
	c := NewBounded[string, int](2)
	if dropped := c.Insert("a", 1); len(dropped) != 0 {
		t.Fatalf("unexpected eviction: %v", dropped)
	}
	c.Insert("b", 2)

	// Reads must not refresh the order.
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("get a: got %d, %v", v, ok)
	}

	dropped := c.Insert("c", 3)
	if len(dropped) != 1 || dropped[0].Key != "a" || dropped[0].Value != 1 {
		t.Fatalf("expected a to be dropped, got %v", dropped)
	}
	if got, want := c.Keys(), []string{"b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys: got %v want %v", got, want)
	}
	if c.Len() != 2 {
		t.Fatalf("len: got %d want 2", c.Len())
	}
}

func TestReinsertMovesKeyToNewest(t *testing.T) {
	c := NewBounded[string, int](2)
	c.Insert("a", 1)
	c.Insert("b", 2)
	c.Insert("a", 10)

	dropped := c.Insert("c", 3)
	if len(dropped) != 1 || dropped[0].Key != "b" {
		t.Fatalf("expected b to be dropped, got %v", dropped)
	}
	if v, _ := c.Get("a"); v != 10 {
		t.Fatalf("reinsert should replace the value, got %d", v)
	}
}

func TestPromoteRemovesEntry(t *testing.T) {
	c := NewBounded[int, string](4)
	c.Insert(1, "one")
	c.Insert(2, "two")

	v, ok := c.Promote(1)
	if !ok || v != "one" {
		t.Fatalf("promote: got %q, %v", v, ok)
	}
	if c.Contains(1) {
		t.Fatalf("promoted key should no longer be retained")
	}
	if _, ok := c.Promote(1); ok {
		t.Fatalf("second promote should miss")
	}
	if got, want := c.Keys(), []int{2}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys: got %v want %v", got, want)
	}
}

func TestZeroLimitRetainsNothing(t *testing.T) {
	c := NewBounded[string, int](0)
	dropped := c.Insert("a", 1)
	if len(dropped) != 1 || dropped[0].Key != "a" {
		t.Fatalf("expected immediate drop, got %v", dropped)
	}
	if c.Len() != 0 {
		t.Fatalf("len: got %d want 0", c.Len())
	}
}
