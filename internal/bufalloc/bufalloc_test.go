package bufalloc

import (
	"math/rand"
	"testing"
)

func TestHeapAllocate(t *testing.T) {
	buf, err := Heap().Allocate(64)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if buf.ByteSize() != 64 {
		t.Fatalf("size = %d, want 64", buf.ByteSize())
	}
	for _, b := range buf.Bytes() {
		if b != 0 {
			t.Fatalf("fresh buffer not zeroed")
		}
	}
}

func TestAllocateNegativeFails(t *testing.T) {
	if _, err := Heap().Allocate(-1); err == nil {
		t.Fatalf("expected error for negative size")
	}
}

func TestLimitedBudget(t *testing.T) {
	a := Limited(10)
	if _, err := a.Allocate(8); err != nil {
		t.Fatalf("within budget: %v", err)
	}
	if _, err := a.Allocate(8); err == nil {
		t.Fatalf("expected budget exceeded error")
	}
}

func TestFills(t *testing.T) {
	buf, _ := Heap().Allocate(32)
	buf.FillRandom(rand.New(rand.NewSource(1)))
	nonzero := false
	for _, b := range buf.Bytes() {
		if b != 0 {
			nonzero = true
			break
		}
	}
	if !nonzero {
		t.Fatalf("random fill left buffer all zero")
	}
	buf.FillZero()
	for _, b := range buf.Bytes() {
		if b != 0 {
			t.Fatalf("zero fill incomplete")
		}
	}
}
