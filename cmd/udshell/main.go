// udshell is an interactive shell for poking at the userdata store.
//
// It keeps a session of named host objects and named string slots, and maps
// shell commands onto the public userdata API. Because hosts only live while
// the session references them, `drop` plus `gc` demonstrates the weak
// host association: a dropped host's storage disappears with it.
//
// Commands:
//
//	new <host> [holder]        Create a host; with holder, its storage
//	                           redirects to that object
//	slot <name>                Allocate a string slot
//	set <host> <slot> <value>  Store a value
//	get <host> <slot> [def]    Read a value (default if absent)
//	del <host> <slot>          Remove a value
//	getorset <host> <slot> <v> Read, storing v first if absent
//	copy <src> <dst>           Duplicate src's entries into dst
//	eq <a> <b>                 Compare the two hosts' handles
//	hosts                      List session hosts
//	slots                      List session slots
//	drop <host>                Forget a host (its storage dies with it)
//	gc                         Run a garbage collection cycle
//	bench <n>                  Quick set+get benchmark with n iterations
//	help                       Show this help
//	exit / quit / q            Exit
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/calvinalkan/udstore/pkg/userdata"
)

// object is the host type managed by the session.
type object struct {
	name   string
	holder *object
}

// UserDataHolder redirects the object's storage to its holder, if any.
func (o *object) UserDataHolder() any {
	if o.holder == nil {
		return nil
	}

	return o.holder
}

func main() {
	r := &REPL{
		hosts: make(map[string]*object),
		slots: make(map[string]userdata.Slot[string]),
	}

	if err := r.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// REPL is the interactive command loop.
type REPL struct {
	hosts map[string]*object
	slots map[string]userdata.Slot[string]
	liner *liner.State
}

// historyFile returns the path to the history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".udshell_history")
}

var commandNames = []string{
	"new", "slot", "set", "get", "del", "getorset", "copy", "eq",
	"hosts", "slots", "drop", "gc", "bench", "help", "exit", "quit",
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(func(line string) []string {
		var out []string

		for _, c := range commandNames {
			if strings.HasPrefix(c, strings.ToLower(line)) {
				out = append(out, c+" ")
			}
		}

		return out
	})

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("udshell - userdata store shell")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("ud> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")

			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "new":
			r.cmdNew(args)

		case "slot":
			r.cmdSlot(args)

		case "set":
			r.cmdSet(args)

		case "get":
			r.cmdGet(args)

		case "del", "delete":
			r.cmdDel(args)

		case "getorset":
			r.cmdGetOrSet(args)

		case "copy":
			r.cmdCopy(args)

		case "eq":
			r.cmdEq(args)

		case "hosts":
			r.cmdHosts()

		case "slots":
			r.cmdSlots()

		case "drop":
			r.cmdDrop(args)

		case "gc":
			r.cmdGC()

		case "bench":
			r.cmdBench(args)

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

// saveHistory persists command history to disk.
func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  new <host> [holder]         Create a host, optionally redirecting to holder")
	fmt.Println("  slot <name>                 Allocate a string slot")
	fmt.Println("  set <host> <slot> <value>   Store a value")
	fmt.Println("  get <host> <slot> [def]     Read a value")
	fmt.Println("  del <host> <slot>           Remove a value")
	fmt.Println("  getorset <host> <slot> <v>  Read, storing v first if absent")
	fmt.Println("  copy <src> <dst>            Duplicate src's entries into dst")
	fmt.Println("  eq <a> <b>                  Compare the two hosts' handles")
	fmt.Println("  hosts / slots               List session hosts / slots")
	fmt.Println("  drop <host>                 Forget a host")
	fmt.Println("  gc                          Run a garbage collection cycle")
	fmt.Println("  bench <n>                   Quick set+get benchmark")
	fmt.Println("  exit / quit / q             Exit")
}

func (r *REPL) host(name string) (*object, bool) {
	o, ok := r.hosts[name]
	if !ok {
		fmt.Printf("unknown host: %s (create it with 'new %s')\n", name, name)
	}

	return o, ok
}

func (r *REPL) slot(name string) (userdata.Slot[string], bool) {
	s, ok := r.slots[name]
	if !ok {
		fmt.Printf("unknown slot: %s (allocate it with 'slot %s')\n", name, name)
	}

	return s, ok
}

func (r *REPL) bind(name string) (userdata.Handle, bool) {
	o, ok := r.host(name)
	if !ok {
		return userdata.Handle{}, false
	}

	h, err := userdata.Bind(o)
	if err != nil {
		fmt.Printf("bind %s: %v\n", name, err)

		return userdata.Handle{}, false
	}

	return h, true
}

func (r *REPL) cmdNew(args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Println("usage: new <host> [holder]")

		return
	}

	name := args[0]
	if _, exists := r.hosts[name]; exists {
		fmt.Printf("host %s already exists\n", name)

		return
	}

	o := &object{name: name}

	if len(args) == 2 {
		holder, ok := r.host(args[1])
		if !ok {
			return
		}

		o.holder = holder
	}

	r.hosts[name] = o

	if o.holder != nil {
		fmt.Printf("created %s (storage owned by %s)\n", name, o.holder.name)
	} else {
		fmt.Printf("created %s\n", name)
	}
}

func (r *REPL) cmdSlot(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: slot <name>")

		return
	}

	name := args[0]
	if _, exists := r.slots[name]; exists {
		fmt.Printf("slot %s already exists\n", name)

		return
	}

	r.slots[name] = userdata.NewSlot[string]()
	fmt.Printf("allocated slot %s\n", name)
}

func (r *REPL) cmdSet(args []string) {
	if len(args) < 3 {
		fmt.Println("usage: set <host> <slot> <value>")

		return
	}

	h, ok := r.bind(args[0])
	if !ok {
		return
	}

	s, ok := r.slot(args[1])
	if !ok {
		return
	}

	userdata.Set(h, s, strings.Join(args[2:], " "))
	fmt.Println("ok")
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 2 || len(args) > 3 {
		fmt.Println("usage: get <host> <slot> [default]")

		return
	}

	h, ok := r.bind(args[0])
	if !ok {
		return
	}

	s, ok := r.slot(args[1])
	if !ok {
		return
	}

	if len(args) == 3 {
		fmt.Println(userdata.Get(h, s, args[2]))

		return
	}

	v, present := userdata.TryGet(h, s)
	if !present {
		fmt.Println("(absent)")

		return
	}

	fmt.Println(v)
}

func (r *REPL) cmdDel(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: del <host> <slot>")

		return
	}

	h, ok := r.bind(args[0])
	if !ok {
		return
	}

	s, ok := r.slot(args[1])
	if !ok {
		return
	}

	if v, removed := userdata.RemoveValue(h, s); removed {
		fmt.Printf("removed %q\n", v)
	} else {
		fmt.Println("nothing to remove")
	}
}

func (r *REPL) cmdGetOrSet(args []string) {
	if len(args) < 3 {
		fmt.Println("usage: getorset <host> <slot> <value>")

		return
	}

	h, ok := r.bind(args[0])
	if !ok {
		return
	}

	s, ok := r.slot(args[1])
	if !ok {
		return
	}

	value := strings.Join(args[2:], " ")

	v, err := userdata.GetOrSetFunc(h, s, value, func(v string) (string, error) {
		return v, nil
	})
	if err != nil {
		fmt.Printf("getorset: %v\n", err)

		return
	}

	fmt.Println(v)
}

func (r *REPL) cmdCopy(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: copy <src> <dst>")

		return
	}

	h, ok := r.bind(args[0])
	if !ok {
		return
	}

	dst, ok := r.host(args[1])
	if !ok {
		return
	}

	if err := h.CopyTo(dst); err != nil {
		fmt.Printf("copy: %v\n", err)

		return
	}

	fmt.Println("ok")
}

func (r *REPL) cmdEq(args []string) {
	if len(args) != 2 {
		fmt.Println("usage: eq <a> <b>")

		return
	}

	ha, ok := r.bind(args[0])
	if !ok {
		return
	}

	hb, ok := r.bind(args[1])
	if !ok {
		return
	}

	if ha == hb {
		fmt.Println("equal (same resolved identity)")
	} else {
		fmt.Println("not equal")
	}
}

func (r *REPL) cmdHosts() {
	if len(r.hosts) == 0 {
		fmt.Println("no hosts")

		return
	}

	names := make([]string, 0, len(r.hosts))
	for name := range r.hosts {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		o := r.hosts[name]
		if o.holder != nil {
			fmt.Printf("  %s -> %s\n", name, o.holder.name)
		} else {
			fmt.Printf("  %s\n", name)
		}
	}
}

func (r *REPL) cmdSlots() {
	if len(r.slots) == 0 {
		fmt.Println("no slots")

		return
	}

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
}

func (r *REPL) cmdDrop(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: drop <host>")

		return
	}

	name := args[0]
	if _, ok := r.hosts[name]; !ok {
		fmt.Printf("unknown host: %s\n", name)

		return
	}

	// Other hosts may hold it as their storage owner; the object stays
	// alive (and keeps its storage) until every such reference is gone.
	delete(r.hosts, name)
	fmt.Printf("dropped %s; its storage goes away with the next collections\n", name)
}

func (r *REPL) cmdGC() {
	start := time.Now()

	// Cleanups run asynchronously after collection; a second cycle makes
	// their effect visible more reliably.
	for range 2 {
		runtime.GC()
	}

	fmt.Printf("gc done in %v\n", time.Since(start).Round(time.Microsecond))
}

func (r *REPL) cmdBench(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: bench <iterations>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		fmt.Println("iterations must be a positive integer")

		return
	}

	slot := userdata.NewSlot[string]()

	h, err := userdata.Bind(&object{name: "bench"})
	if err != nil {
		fmt.Printf("bench: %v\n", err)

		return
	}

	start := time.Now()

	for i := range n {
		userdata.Set(h, slot, "v")

		if got := userdata.Get(h, slot, ""); got != "v" {
			fmt.Printf("bench: iteration %d read %q\n", i, got)

			return
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("%d set+get pairs in %v (%.1f ns/pair)\n",
		n, elapsed.Round(time.Microsecond), float64(elapsed.Nanoseconds())/float64(n))
}
