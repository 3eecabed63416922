// Package search implements the scan and filter passes: it parses an
// expression once against a symbol table of driver-owned cells, then
// re-evaluates the same compiled tree at every candidate address,
// binding addr/value(/prev) to that cell table on each iteration.
package search

import (
	"fmt"

	"memprobe/internal/ast"
	"memprobe/internal/eval"
	"memprobe/internal/hits"
	"memprobe/internal/lexer"
	"memprobe/internal/optimizer"
	"memprobe/internal/parser"
	"memprobe/internal/symtab"
	"memprobe/internal/target"
	"memprobe/internal/types"
)

// Protection bits, matching the reference Target's /proc/[pid]/maps
// rwx encoding.
const (
	ProtRead  = 4
	ProtWrite = 2
	ProtExec  = 1
)

// ProgressEvent is emitted once per region boundary during a scan.
type ProgressEvent struct {
	RegionIndex int
	RegionCount int
	RegionStart uint64
	HitsSoFar   int
}

// ProgressFunc receives one ProgressEvent per region boundary. It runs
// on the driver's own goroutine, never concurrently with the scan.
type ProgressFunc func(ProgressEvent)

// Driver orchestrates the value algebra, parser, optimizer, evaluator,
// and hits store over a single target.
type Driver struct {
	Target   target.Target
	Progress ProgressFunc

	// StopRequested is polled at each region boundary; when it returns
	// true the scan ends early with whatever hits were already found.
	StopRequested func() bool
}

func NewDriver(t target.Target) *Driver {
	return &Driver{Target: t}
}

func compile(exprSrc string, symbols *symtab.Table) (ast.Expr, error) {
	toks, err := lexer.ScanTokens(exprSrc)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	p := parser.New(toks, symbols, exprSrc)
	expr, err := p.Parse()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return optimizer.Fold(expr), nil
}

func regionMatchesProt(r target.Region, mask uint8) bool {
	var have uint8
	if len(r.Perms) >= 3 {
		if r.Perms[0] == 'r' {
			have |= ProtRead
		}
		if r.Perms[1] == 'w' {
			have |= ProtWrite
		}
		if r.Perms[2] == 'x' {
			have |= ProtExec
		}
	}
	return have&mask == mask
}

// addrTypeFor picks U32 when every candidate region's addresses fit
// under 2^32, else U64.
func addrTypeFor(regions []target.Region) types.Tag {
	const boundary = uint64(1) << 32
	for _, r := range regions {
		if r.End > boundary {
			return types.U64
		}
	}
	return types.U32
}

func addrValue(addrType types.Tag, addr uint64) types.Value {
	if addrType == types.U32 {
		return types.NewU32(uint32(addr))
	}
	return types.NewU64(addr)
}

// memReader backs an expression's Deref nodes (e.g. "*(s32*)addr") by
// reading through the same target the scan is already attached to.
func (d *Driver) memReader() eval.MemReader {
	return func(addr uint64, t types.Tag) (types.Value, bool) {
		buf := make([]byte, types.Size(t))
		n, err := d.Target.Read(addr, buf)
		if err != nil || n < len(buf) {
			return types.Value{}, false
		}
		return types.FromBytes(t, buf), true
	}
}

// Search runs a first scan pass: every readable region matching
// protMask is read in full, and every aligned position whose value
// satisfies expr is recorded as a hit.
func (d *Driver) Search(valueType types.Tag, exprSrc string, align uint64, protMask uint8) (*hits.Store, types.Tag, error) {
	allRegions, err := d.Target.Regions()
	if err != nil {
		return nil, 0, fmt.Errorf("search: enumerate regions: %w", err)
	}

	var candidates []target.Region
	var scratchSize uint64
	for _, r := range allRegions {
		if !regionMatchesProt(r, protMask) {
			continue
		}
		candidates = append(candidates, r)
		if r.Size() > scratchSize {
			scratchSize = r.Size()
		}
	}

	addrType := addrTypeFor(candidates)

	symbols := symtab.New()
	addrIdx, _ := symbols.Add("addr", addrType)
	valueIdx, _ := symbols.Add("value", valueType)

	expr, err := compile(exprSrc, symbols)
	if err != nil {
		return nil, 0, err
	}

	stride := align
	if stride == 0 {
		stride = uint64(types.Size(valueType))
	}
	valueSize := uint64(types.Size(valueType))

	scratch := make([]byte, scratchSize)
	cells := make([]types.Value, symbols.Len())

	if err := d.Target.Stop(); err != nil {
		return nil, 0, fmt.Errorf("search: stop target: %w", err)
	}
	defer d.Target.Run()

	reader := d.memReader()
	store := hits.New()
	for i, r := range candidates {
		if d.StopRequested != nil && d.StopRequested() {
			break
		}
		if d.Progress != nil {
			d.Progress(ProgressEvent{
				RegionIndex: i,
				RegionCount: len(candidates),
				RegionStart: r.Start,
				HitsSoFar:   store.Len(),
			})
		}

		size := r.Size()
		buf := scratch[:size]
		n, err := d.Target.Read(r.Start, buf)
		if err != nil || uint64(n) < size {
			continue
		}

		for offset := uint64(0); offset+valueSize <= size; offset += stride {
			value := types.FromBytes(valueType, buf[offset:offset+valueSize])
			cells[addrIdx-1] = addrValue(addrType, r.Start+offset)
			cells[valueIdx-1] = value

			result, err := eval.Eval(expr, cells, reader)
			if err != nil {
				continue
			}
			if !result.IsZero() {
				store.Add(hits.Hit{Addr: r.Start + offset, Value: value})
			}
		}
	}

	return store, addrType, nil
}

// Filter re-checks each of prev's hits against the live target,
// binding addr/value/prev and keeping only the hits expr still
// accepts. A hit whose address can no longer be read is dropped, not
// treated as a failure of the pass.
func (d *Driver) Filter(prev *hits.Store, addrType, valueType types.Tag, exprSrc string) (*hits.Store, error) {
	symbols := symtab.New()
	addrIdx, _ := symbols.Add("addr", addrType)
	valueIdx, _ := symbols.Add("value", valueType)
	prevIdx, _ := symbols.Add("prev", valueType)

	expr, err := compile(exprSrc, symbols)
	if err != nil {
		return nil, err
	}

	valueSize := int(types.Size(valueType))
	buf := make([]byte, valueSize)
	cells := make([]types.Value, symbols.Len())

	if err := d.Target.Stop(); err != nil {
		return nil, fmt.Errorf("search: stop target: %w", err)
	}
	defer d.Target.Run()

	reader := d.memReader()
	out := hits.New()
	for i := 0; i < prev.Len(); i++ {
		h := prev.At(i)
		n, err := d.Target.Read(h.Addr, buf)
		if err != nil || n < valueSize {
			continue
		}
		current := types.FromBytes(valueType, buf)

		cells[addrIdx-1] = addrValue(addrType, h.Addr)
		cells[valueIdx-1] = current
		cells[prevIdx-1] = h.Value

		result, err := eval.Eval(expr, cells, reader)
		if err != nil {
			continue
		}
		if !result.IsZero() {
			out.Add(hits.Hit{Addr: h.Addr, Value: current})
		}
	}

	return out, nil
}
