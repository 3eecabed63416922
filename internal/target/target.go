// Package target abstracts the process being scanned: enumerating its
// mapped memory regions, reading and writing bytes at an address, and
// pausing/resuming it around a scan pass. The search driver only ever
// talks to the Target interface; ProcessTarget in reference.go is the
// one concrete, ptrace-based implementation for Linux.
package target

// Region is one mapped range from the target's address space.
type Region struct {
	Start uint64
	End   uint64
	Perms string // raw rwxp-style permission string, as read from maps
	Path  string // backing file, or empty for anonymous mappings
}

func (r Region) Size() uint64 { return r.End - r.Start }

func (r Region) Readable() bool {
	return len(r.Perms) > 0 && r.Perms[0] == 'r'
}

func (r Region) Writable() bool {
	return len(r.Perms) > 1 && r.Perms[1] == 'w'
}

// Target is everything the search/filter driver needs from a live
// process. A single pass brackets its region loop with one Stop and
// one Run call, regardless of how the pass ends.
type Target interface {
	// Regions returns the current memory map, in ascending address
	// order.
	Regions() ([]Region, error)

	// Read fills buf from addr in the target's address space and
	// returns the number of bytes actually read.
	Read(addr uint64, buf []byte) (int, error)

	// Write stores buf at addr in the target's address space and
	// returns the number of bytes actually written.
	Write(addr uint64, buf []byte) (int, error)

	// Stop pauses the target so a pass sees a consistent snapshot.
	Stop() error

	// Run resumes the target. Every Stop during a pass is matched by
	// exactly one Run, including on an error path.
	Run() error

	// Close releases any OS resources (file descriptors, ptrace
	// attachment) held on the target.
	Close() error
}
