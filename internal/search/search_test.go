package search

import (
	"encoding/binary"
	"math"
	"testing"

	"memprobe/internal/hits"
	"memprobe/internal/target"
	"memprobe/internal/types"
)

// mockTarget serves one fixed region's bytes out of memory, with no
// real process behind it — enough to exercise the driver's region and
// stride loops deterministically.
type mockTarget struct {
	region  target.Region
	data    []byte
	stopped bool
	runs    int
	stops   int
}

func newMockTarget(start uint64, data []byte) *mockTarget {
	return &mockTarget{
		region: target.Region{Start: start, End: start + uint64(len(data)), Perms: "rw-p"},
		data:   data,
	}
}

func (m *mockTarget) Regions() ([]target.Region, error) { return []target.Region{m.region}, nil }

func (m *mockTarget) Read(addr uint64, buf []byte) (int, error) {
	if addr < m.region.Start || addr >= m.region.End {
		return 0, nil
	}
	off := addr - m.region.Start
	n := copy(buf, m.data[off:])
	return n, nil
}

func (m *mockTarget) Write(addr uint64, buf []byte) (int, error) {
	off := addr - m.region.Start
	n := copy(m.data[off:], buf)
	return n, nil
}

func (m *mockTarget) Stop() error { m.stopped = true; m.stops++; return nil }
func (m *mockTarget) Run() error  { m.stopped = false; m.runs++; return nil }
func (m *mockTarget) Close() error { return nil }

func TestSearchFindsS32Equality(t *testing.T) {
	data := []byte{0x39, 0x05, 0x00, 0x00, 0x39, 0x05, 0x00, 0x00, 0xFF, 0xFF, 0xFF, 0xFF}
	d := NewDriver(newMockTarget(0x1000, data))
	store, addrType, err := d.Search(types.S32, "value == 1337", 4, ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	if addrType != types.U32 {
		t.Fatalf("addrType = %v, want u32", addrType)
	}
	if store.Len() != 2 {
		t.Fatalf("hits = %d, want 2", store.Len())
	}
	if store.At(0).Addr != 0x1000 || store.At(1).Addr != 0x1004 {
		t.Fatalf("hit addrs = %#x, %#x", store.At(0).Addr, store.At(1).Addr)
	}
}

func TestSearchRangeExpression(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x00, 0x00,
		0x05, 0x00, 0x00, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF,
		0x03, 0x00, 0x00, 0x00,
	}
	d := NewDriver(newMockTarget(0x2000, data))
	store, _, err := d.Search(types.S32, "value > 0 && value < 10", 4, ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("hits = %d, want 2", store.Len())
	}
	if store.At(0).Addr != 0x2004 || store.At(1).Addr != 0x200c {
		t.Fatalf("hit addrs = %#x, %#x", store.At(0).Addr, store.At(1).Addr)
	}
}

func TestSearchFloatCastComparison(t *testing.T) {
	buf := make([]byte, 16)
	vals := []float32{1.0, 2.0, 1.5, 1.6}
	for i, f := range vals {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	d := NewDriver(newMockTarget(0x3000, buf))
	store, _, err := d.Search(types.F32, "(double)(value) > 1.5", 4, ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 2 {
		t.Fatalf("hits = %d, want 2", store.Len())
	}
	if store.At(0).Addr != 0x3004 || store.At(1).Addr != 0x300c {
		t.Fatalf("hit addrs = %#x, %#x", store.At(0).Addr, store.At(1).Addr)
	}
}

func TestFilterKeepsOnlyChangedValues(t *testing.T) {
	data := make([]byte, 0x2000-0x1000+4)
	binary.LittleEndian.PutUint32(data[0:4], 6)
	binary.LittleEndian.PutUint32(data[0x1000:0x1004], 7)
	d := NewDriver(newMockTarget(0x1000, data))

	prev := hits.New()
	prev.Add(hits.Hit{Addr: 0x1000, Value: types.NewS32(5)})
	prev.Add(hits.Hit{Addr: 0x2000, Value: types.NewS32(7)})

	out, err := d.Filter(prev, types.U32, types.S32, "value != prev")
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 1 {
		t.Fatalf("filtered hits = %d, want 1", out.Len())
	}
	if out.At(0).Addr != 0x1000 || out.At(0).Value.AsS64() != 6 {
		t.Fatalf("filtered hit = %+v, want (0x1000, 6)", out.At(0))
	}
}

func TestSearchBalancesStopAndRun(t *testing.T) {
	mt := newMockTarget(0x1000, []byte{1, 0, 0, 0})
	d := NewDriver(mt)
	if _, _, err := d.Search(types.S32, "value == 1", 4, ProtRead); err != nil {
		t.Fatal(err)
	}
	if mt.stops != 1 || mt.runs != 1 {
		t.Fatalf("stops=%d runs=%d, want 1 and 1", mt.stops, mt.runs)
	}
}

func TestSearchDerefReadsThroughTarget(t *testing.T) {
	data := []byte{
		0x00, 0x00, 0x00, 0x00, // value at 0x4000: addr of the s32 below
		0x39, 0x05, 0x00, 0x00, // the s32 itself, at 0x4004, equals 1337
	}
	binary.LittleEndian.PutUint32(data[0:4], 0x4004)
	d := NewDriver(newMockTarget(0x4000, data))

	store, _, err := d.Search(types.U32, "*(s32*)value == 1337", 4, ProtRead)
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 1 || store.At(0).Addr != 0x4000 {
		t.Fatalf("hits = %+v, want one hit at 0x4000", store.All())
	}
}
