package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output.
var printlnFn = fmt.Println

// commands defines the minimal surface the REPL needs; the real App
// satisfies it, tests can provide a stub.
type commands interface {
	Sets(ctx context.Context, status string) error
	List(ctx context.Context, set string) error
	Capture(ctx context.Context, set, path string) error
	Show(ctx context.Context, set, id string) error
	Delete(ctx context.Context, set, id string) error
	Sync(ctx context.Context, set string) error
}

// runREPL reads commands line by line and dispatches them. Handler errors
// are printed, never fatal, so the loop stays resilient. The loop exits on
// EOF or "exit"/"quit".
func runREPL(ctx context.Context, a commands, scanner *bufio.Scanner) {
	help := func() {
		_, _ = printlnFn("commands: sets [status] | list <set> | capture <set> <path> | show <set> <id> | delete <set> <id> | sync <set> | exit")
	}
	help()

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		var err error
		switch cmd := fields[0]; {
		case cmd == "exit" || cmd == "quit":
			return
		case cmd == "help":
			help()
		case cmd == "sets" && len(fields) <= 2:
			status := ""
			if len(fields) == 2 {
				status = fields[1]
			}
			err = a.Sets(ctx, status)
		case cmd == "list" && len(fields) == 2:
			err = a.List(ctx, fields[1])
		case cmd == "capture" && len(fields) == 3:
			err = a.Capture(ctx, fields[1], fields[2])
		case cmd == "show" && len(fields) == 3:
			err = a.Show(ctx, fields[1], fields[2])
		case cmd == "delete" && len(fields) == 3:
			err = a.Delete(ctx, fields[1], fields[2])
		case cmd == "sync" && len(fields) == 2:
			err = a.Sync(ctx, fields[1])
		default:
			_, _ = printlnFn("unknown command")
		}

		if err != nil {
			_, _ = printlnFn("error:", err.Error())
		}
	}
}
