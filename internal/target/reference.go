package target

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// ProcessTarget is the reference Target implementation: a live process
// on a Linux host, attached via ptrace and read/written through its
// /proc/[pid]/mem file. The region-parsing logic mirrors the layout of
// /proc/[pid]/maps lines: "start-end perms offset dev inode path".
type ProcessTarget struct {
	pid     int
	memFile *os.File
	stopped bool
}

// Attach ptrace-attaches to pid and opens its /proc/[pid]/mem file. The
// target is left in the stopped state attach naturally produces; call
// Run to resume it before a pass returns control to the process.
func Attach(pid int) (*ProcessTarget, error) {
	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("target: ptrace attach pid %d: %w", pid, err)
	}
	var status unix.WaitStatus
	if _, err := unix.Wait4(pid, &status, 0, nil); err != nil {
		unix.PtraceDetach(pid)
		return nil, fmt.Errorf("target: wait for stop on pid %d: %w", pid, err)
	}
	mem, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDWR, 0)
	if err != nil {
		unix.PtraceDetach(pid)
		return nil, fmt.Errorf("target: open mem file for pid %d: %w", pid, err)
	}
	return &ProcessTarget{pid: pid, memFile: mem, stopped: true}, nil
}

func (t *ProcessTarget) Regions() ([]Region, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", t.pid))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var regions []Region
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		r, ok := parseMapsLine(sc.Text())
		if ok {
			regions = append(regions, r)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return regions, nil
}

// parseMapsLine splits one /proc/[pid]/maps line into a Region. Lines
// with fewer than the address/perms fields, or whose address range is
// not two hex numbers, are skipped rather than treated as an error, so
// one malformed line does not fail a whole scan.
func parseMapsLine(line string) (Region, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Region{}, false
	}
	bounds := strings.SplitN(fields[0], "-", 2)
	if len(bounds) != 2 {
		return Region{}, false
	}
	start, err := strconv.ParseUint(bounds[0], 16, 64)
	if err != nil {
		return Region{}, false
	}
	end, err := strconv.ParseUint(bounds[1], 16, 64)
	if err != nil {
		return Region{}, false
	}
	r := Region{Start: start, End: end, Perms: fields[1]}
	if len(fields) >= 6 {
		r.Path = fields[5]
	}
	return r, true
}

// Read tries a positional pread on /proc/[pid]/mem first since it can
// move an entire buffer in one syscall; it falls back to ptrace's
// word-at-a-time peek only when the direct read fails, which happens
// for regions the kernel refuses /proc/[pid]/mem access to even while
// attached.
func (t *ProcessTarget) Read(addr uint64, buf []byte) (int, error) {
	n, err := t.memFile.ReadAt(buf, int64(addr))
	if err == nil || n == len(buf) {
		return n, nil
	}
	return t.readViaPtrace(addr, buf)
}

func (t *ProcessTarget) readViaPtrace(addr uint64, buf []byte) (int, error) {
	n, err := unix.PtracePeekData(t.pid, uintptr(addr), buf)
	if err != nil {
		return 0, fmt.Errorf("target: ptrace peek at %#x: %w", addr, err)
	}
	return n, nil
}

func (t *ProcessTarget) Write(addr uint64, buf []byte) (int, error) {
	n, err := t.memFile.WriteAt(buf, int64(addr))
	if err == nil || n == len(buf) {
		return n, nil
	}
	return t.writeViaPtrace(addr, buf)
}

func (t *ProcessTarget) writeViaPtrace(addr uint64, buf []byte) (int, error) {
	n, err := unix.PtracePokeData(t.pid, uintptr(addr), buf)
	if err != nil {
		return 0, fmt.Errorf("target: ptrace poke at %#x: %w", addr, err)
	}
	return n, nil
}

// Stop re-suspends a previously resumed target by signalling SIGSTOP
// and waiting for the corresponding stop notification. Attach already
// leaves the target stopped, so the first Stop of a pass is usually a
// no-op.
func (t *ProcessTarget) Stop() error {
	if t.stopped {
		return nil
	}
	if err := unix.Kill(t.pid, unix.SIGSTOP); err != nil {
		return fmt.Errorf("target: stop pid %d: %w", t.pid, err)
	}
	var status unix.WaitStatus
	if _, err := unix.Wait4(t.pid, &status, 0, nil); err != nil {
		return fmt.Errorf("target: wait for stop on pid %d: %w", t.pid, err)
	}
	t.stopped = true
	return nil
}

func (t *ProcessTarget) Run() error {
	if !t.stopped {
		return nil
	}
	if err := unix.PtraceCont(t.pid, 0); err != nil {
		return fmt.Errorf("target: resume pid %d: %w", t.pid, err)
	}
	t.stopped = false
	return nil
}

func (t *ProcessTarget) Close() error {
	memErr := t.memFile.Close()
	if !t.stopped {
		if err := t.Stop(); err != nil {
			unix.PtraceDetach(t.pid)
			return err
		}
	}
	if err := unix.PtraceDetach(t.pid); err != nil {
		return fmt.Errorf("target: detach pid %d: %w", t.pid, err)
	}
	return memErr
}
