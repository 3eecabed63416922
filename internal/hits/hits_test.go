package hits

import (
	"testing"

	"memprobe/internal/types"
)

func TestAddPreservesOrder(t *testing.T) {
	s := New()
	s.Add(Hit{Addr: 0x100, Value: types.NewS32(1)})
	s.Add(Hit{Addr: 0x200, Value: types.NewS32(2)})
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
	if s.At(0).Addr != 0x100 || s.At(1).Addr != 0x200 {
		t.Fatalf("order not preserved: %+v", s.All())
	}
}

func TestGrowsPastInitialCapacity(t *testing.T) {
	s := New()
	for i := 0; i < initialCapacity+10; i++ {
		s.Add(Hit{Addr: uint64(i), Value: types.NewS32(int32(i))})
	}
	if s.Len() != initialCapacity+10 {
		t.Fatalf("len = %d, want %d", s.Len(), initialCapacity+10)
	}
	if s.Cap() < s.Len() {
		t.Fatalf("cap %d smaller than len %d", s.Cap(), s.Len())
	}
}
