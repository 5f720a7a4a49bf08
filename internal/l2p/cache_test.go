package l2p

import (
	"testing"

	"github.com/dingcuiyu/conzone-go/internal/ppa"
)

func TestInsertGetHitMiss(t *testing.T) {
	c := New(4, 2, 0)
	if _, _, ok := c.Get(1); ok {
		t.Fatal("Get on empty cache should miss")
	}
	c.Insert(1, ppa.PPA(100), Page, false)
	addr, gran, ok := c.Get(1)
	if !ok || addr != ppa.PPA(100) || gran != Page {
		t.Fatalf("Get(1) = %v, %v, %v", addr, gran, ok)
	}
	if c.Misses.Get() != 1 || c.Hits.Get() != 1 {
		t.Fatalf("hits=%d misses=%d, want 1,1", c.Hits.Get(), c.Misses.Get())
	}
}

func TestEvictsLRUNotResident(t *testing.T) {
	c := New(2, 1, 0)
	c.Insert(1, ppa.PPA(1), Page, false)
	c.Insert(2, ppa.PPA(2), Page, true) // resident, must survive eviction
	c.Insert(3, ppa.PPA(3), Page, false)

	if _, _, ok := c.Get(1); ok {
		t.Fatal("lpn 1 should have been evicted")
	}
	if _, _, ok := c.Get(2); !ok {
		t.Fatal("resident lpn 2 should survive eviction")
	}
	if _, _, ok := c.Get(3); !ok {
		t.Fatal("lpn 3 was just inserted, should be present")
	}
}

func TestInsertFullOfResidentFails(t *testing.T) {
	c := New(1, 1, 0)
	c.Insert(1, ppa.PPA(1), Page, true)
	if c.Insert(2, ppa.PPA(2), Page, false) {
		t.Fatal("Insert should fail when cache is full of resident entries")
	}
}

func TestRemove(t *testing.T) {
	c := New(4, 2, 0)
	c.Insert(5, ppa.PPA(5), Page, false)
	if !c.Remove(5) {
		t.Fatal("Remove(5) = false, want true")
	}
	if c.Remove(5) {
		t.Fatal("Remove(5) twice should return false")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}
