// Command kscript runs KScript source files, or starts an interactive
// REPL when invoked with no arguments.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/kenny-goh/kscript/internal/bytecode"
	"github.com/kenny-goh/kscript/internal/compiler"
	"github.com/kenny-goh/kscript/internal/vm"
)

const (
	exitUsage        = 64
	exitCompileError = 65
	exitRuntimeError = 70
	exitIOError      = 74
)

// runOptions mirrors the VM's and Heap's functional setters: a small,
// flag/env-driven bundle handed to newVM rather than a config file or an
// environment-parsing library.
type runOptions struct {
	verboseGC        bool
	trace            bool
	instructionLimit int
}

func main() {
	verboseGC := flag.Bool("verbose-gc", envBool("KSCRIPT_VERBOSE_GC"), "log each GC cycle's bytes-before/after/next-threshold to stderr")
	trace := flag.Bool("trace", envBool("KSCRIPT_TRACE"), "trace each executed instruction to stderr")
	instructionLimit := flag.Int("instruction-limit", envInt("KSCRIPT_INSTRUCTION_LIMIT", 0), "abort a run after N instructions (0 = unlimited)")
	flag.Parse()

	opts := runOptions{verboseGC: *verboseGC, trace: *trace, instructionLimit: *instructionLimit}

	switch args := flag.Args(); len(args) {
	case 0:
		runPrompt(opts)
	case 1:
		runFile(args[0], opts)
	default:
		fmt.Fprintln(os.Stderr, "Usage: kscript [flags] [script]")
		os.Exit(exitUsage)
	}
}

func runFile(path string, opts runOptions) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitIOError)
	}

	heap := vm.NewHeap()
	machine := newVM(heap, opts)

	color := isatty.IsTerminal(os.Stderr.Fd())

	proto, err := compiler.Compile(string(source), heap)
	if err != nil {
		reportCompileError(err, color)
		os.Exit(exitCompileError)
	}
	if _, err := machine.Interpret(proto); err != nil {
		reportRuntimeError(err, color)
		os.Exit(exitRuntimeError)
	}
}

// runPrompt is a line-at-a-time REPL. Each line is compiled and run
// against the same heap and VM as the one before it, so global variable
// and function definitions persist across lines; only the value stack
// and call-frame stack reset between lines (see VM.Interpret).
func runPrompt(opts runOptions) {
	heap := vm.NewHeap()
	machine := newVM(heap, opts)

	color := isatty.IsTerminal(os.Stdout.Fd()) && isatty.IsTerminal(os.Stderr.Fd())
	prompt := isatty.IsTerminal(os.Stdin.Fd())
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("KScript")
	for {
		if prompt {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" {
			return
		}

		proto, err := compiler.Compile(line, heap)
		if err != nil {
			reportCompileError(err, color)
			continue
		}
		if _, err := machine.Interpret(proto); err != nil {
			reportRuntimeError(err, color)
		}
	}
}

// newVM wires a fresh VM and its natives, attaching diagnostics hooks per
// the CLI flags/env vars requested: verbose GC logging, instruction
// tracing, and an instruction-count ceiling.
func newVM(heap *vm.Heap, opts runOptions) *vm.VM {
	machine := vm.New(heap)
	vm.RegisterNatives(machine)

	if opts.verboseGC {
		heap.SetCollectHook(func(before, after, next int) {
			fmt.Fprintf(os.Stderr, "gc: %d -> %d bytes (next at %d)\n", before, after, next)
		})
	}
	if opts.trace {
		machine.SetTraceHook(func(info vm.TraceInfo) {
			fmt.Fprintf(os.Stderr, "%04d [line %d] in %-12s %s\n", info.IP, info.Line, info.Function, bytecode.OpName(info.Op))
		})
	}
	if opts.instructionLimit > 0 {
		machine.SetInstructionLimit(opts.instructionLimit)
	}
	return machine
}

// reportCompileError and reportRuntimeError colorize the two diagnostic
// classes distinctly so a terminal reader can tell a syntax mistake from a
// failure mid-execution at a glance.
func reportCompileError(err error, color bool) { reportError(err, color, termenv.ANSIRed) }
func reportRuntimeError(err error, color bool) { reportError(err, color, termenv.ANSIYellow) }

func reportError(err error, color bool, fg termenv.Color) {
	msg := err.Error()
	if color {
		msg = termenv.String(msg).Foreground(fg).String()
	}
	fmt.Fprintln(os.Stderr, msg)
}

func envBool(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func envInt(name string, fallback int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
