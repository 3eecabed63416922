// cmd/memprobe is the command-line front end: scan a live process for
// candidate addresses, filter a prior hit set against the process's
// current memory, and list saved sessions.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"memprobe/internal/hits"
	"memprobe/internal/monitor"
	"memprobe/internal/search"
	"memprobe/internal/session"
	"memprobe/internal/target"
	"memprobe/internal/types"
)

const version = "0.1.0"

// Command aliases mapping, as short mnemonics for the three subcommands.
var commandAliases = map[string]string{
	"s":  "scan",
	"fl": "filter",
	"ls": "sessions",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	switch cmd {
	case "--help", "-h", "help":
		showUsage()
	case "--version", "-v", "version":
		fmt.Printf("memprobe %s\n", version)
	case "scan":
		runScan(args[1:])
	case "filter":
		runFilter(args[1:])
	case "sessions":
		runSessions(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", cmd)
		showUsage()
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println("memprobe - live process memory scanner")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  memprobe scan --pid P --type T --expr E [--align N] [--prot rwx] [--monitor :PORT] [--session LABEL]")
	fmt.Println("  memprobe filter --session LABEL --expr E")
	fmt.Println("  memprobe sessions")
	fmt.Println()
	fmt.Println("Types:       s8 s16 s32 s64 u8 u16 u32 u64 float double")
	fmt.Println("Expressions: addr, value, prev (filter only), casts like (s32)value, *(s32*)addr")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  memprobe scan --pid 4242 --type s32 --expr \"value == 1337\"")
	fmt.Println("  memprobe scan --pid 4242 --type s32 --expr \"value > 0 && value < 10\" --session cash")
	fmt.Println("  memprobe filter --session cash --expr \"value != prev\"")
	fmt.Println("  memprobe sessions")
}

// parseFlags turns a "--key value --key2 value2" argument list into a
// map. A flag with no following value (e.g. a trailing --flag) maps to
// the empty string.
func parseFlags(args []string) map[string]string {
	out := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) < 3 || arg[0] != '-' || arg[1] != '-' {
			continue
		}
		name := arg[2:]
		if i+1 < len(args) {
			out[name] = args[i+1]
			i++
		} else {
			out[name] = ""
		}
	}
	return out
}

// protMask parses a "rwx"-style permission string into the bitmask
// search.Driver.Search expects. An empty string defaults to read-only,
// the common case when scanning for a value rather than patching one.
func protMask(s string) uint8 {
	if s == "" {
		return search.ProtRead
	}
	var mask uint8
	for _, c := range s {
		switch c {
		case 'r':
			mask |= search.ProtRead
		case 'w':
			mask |= search.ProtWrite
		case 'x':
			mask |= search.ProtExec
		}
	}
	return mask
}

func runScan(args []string) {
	flags := parseFlags(args)

	pidStr, ok := flags["pid"]
	if !ok {
		log.Fatal("scan: --pid is required")
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		log.Fatalf("scan: invalid --pid %q: %v", pidStr, err)
	}

	typeName, ok := flags["type"]
	if !ok {
		log.Fatal("scan: --type is required")
	}
	valueType, ok := types.TagByName(typeName)
	if !ok {
		log.Fatalf("scan: unknown --type %q", typeName)
	}

	exprSrc, ok := flags["expr"]
	if !ok {
		log.Fatal("scan: --expr is required")
	}

	var align uint64
	if a, ok := flags["align"]; ok {
		align, err = strconv.ParseUint(a, 10, 64)
		if err != nil {
			log.Fatalf("scan: invalid --align %q: %v", a, err)
		}
	}

	t, err := target.Attach(pid)
	if err != nil {
		log.Fatalf("scan: %v", err)
	}
	defer t.Close()

	d := search.NewDriver(t)

	if addr, ok := flags["monitor"]; ok {
		mon := monitor.NewServer(addr)
		go func() {
			if err := mon.Serve(); err != nil {
				log.Printf("scan: monitor server: %v", err)
			}
		}()
		defer mon.Close()
		d.Progress = func(ev search.ProgressEvent) {
			if err := mon.Broadcast(ev); err != nil {
				log.Printf("scan: broadcast progress: %v", err)
			}
		}
	}

	store, addrType, err := d.Search(valueType, exprSrc, align, protMask(flags["prot"]))
	if err != nil {
		log.Fatalf("scan: %v", err)
	}

	printHits(store, valueType)

	if label, ok := flags["session"]; ok {
		st, err := openSessionStore()
		if err != nil {
			log.Fatalf("scan: %v", err)
		}
		defer st.Close()

		sess := &session.Session{
			Label:             label,
			PID:               pid,
			AddrType:          addrType,
			ValueType:         valueType,
			CreatedAt:         time.Now(),
			ExpressionHistory: []string{exprSrc},
			Hits:              store,
		}
		if err := st.Save(sess); err != nil {
			log.Fatalf("scan: save session: %v", err)
		}
		fmt.Printf("saved session %q (%s)\n", label, sess.ID)
	}
}

func runFilter(args []string) {
	flags := parseFlags(args)

	label, ok := flags["session"]
	if !ok {
		log.Fatal("filter: --session is required")
	}
	exprSrc, ok := flags["expr"]
	if !ok {
		log.Fatal("filter: --expr is required")
	}

	st, err := openSessionStore()
	if err != nil {
		log.Fatalf("filter: %v", err)
	}
	defer st.Close()

	sess, err := st.LoadByLabel(label)
	if err != nil {
		log.Fatalf("filter: %v", err)
	}

	t, err := target.Attach(sess.PID)
	if err != nil {
		log.Fatalf("filter: %v", err)
	}
	defer t.Close()

	d := search.NewDriver(t)
	refined, err := d.Filter(sess.Hits, sess.AddrType, sess.ValueType, exprSrc)
	if err != nil {
		log.Fatalf("filter: %v", err)
	}

	sess.Hits = refined
	sess.ExpressionHistory = append(sess.ExpressionHistory, exprSrc)
	if err := st.Save(sess); err != nil {
		log.Fatalf("filter: save session: %v", err)
	}

	printHits(refined, sess.ValueType)
}

func runSessions(args []string) {
	st, err := openSessionStore()
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	defer st.Close()

	summaries, err := st.List()
	if err != nil {
		log.Fatalf("sessions: %v", err)
	}
	if len(summaries) == 0 {
		fmt.Println("no saved sessions")
		return
	}

	fmt.Printf("%-10s %-20s %6s %5s %6s %6s  %s\n", "ID", "LABEL", "PID", "ADDR", "VALUE", "HITS", "CREATED")
	for _, s := range summaries {
		fmt.Printf("%-10s %-20s %6d %5s %6s %6d  %s\n",
			shortID(s.ID), s.Label, s.PID, s.AddrType, s.ValueType, s.HitCount,
			s.CreatedAt.Format(time.RFC3339))
	}
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

const hitPrintLimit = 20

func printHits(store *hits.Store, valueType types.Tag) {
	n := store.Len()
	fmt.Printf("%d hit(s)\n", n)

	shown := n
	if shown > hitPrintLimit {
		shown = hitPrintLimit
	}
	for i := 0; i < shown; i++ {
		h := store.At(i)
		if types.IsFloat(valueType) {
			fmt.Printf("  %#016x  %g\n", h.Addr, h.Value.AsF64())
		} else if types.IsSigned(valueType) {
			fmt.Printf("  %#016x  %d\n", h.Addr, h.Value.AsS64())
		} else {
			fmt.Printf("  %#016x  %d\n", h.Addr, h.Value.AsU64())
		}
	}
	if n > shown {
		fmt.Printf("  ... %d more\n", n-shown)
	}
}

func openSessionStore() (*session.Store, error) {
	path := os.Getenv("MEMPROBE_SESSION_DB")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve session store path: %w", err)
		}
		dir := filepath.Join(home, ".memprobe")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create session store dir: %w", err)
		}
		path = filepath.Join(dir, "sessions.db")
	}
	return session.Open(path)
}
