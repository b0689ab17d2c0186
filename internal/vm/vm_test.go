package vm_test

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/kenny-goh/kscript/internal/compiler"
	"github.com/kenny-goh/kscript/internal/vm"
)

// run compiles and executes source against a fresh heap and VM, capturing
// anything written to stdout by `print`.
func run(t *testing.T, source string) (vm.Value, string, error) {
	t.Helper()
	heap := vm.NewHeap()
	machine := vm.New(heap)
	vm.RegisterNatives(machine)

	proto, err := compiler.Compile(source, heap)
	if err != nil {
		return vm.Nil(), "", err
	}

	r, w, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("pipe: %v", pipeErr)
	}
	saved := os.Stdout
	os.Stdout = w
	result, runErr := machine.Interpret(proto)
	os.Stdout = saved
	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)

	return result, buf.String(), runErr
}

func TestArithmeticPrecedence(t *testing.T) {
	_, out, err := run(t, `print 1 + 2 * 3;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Fatalf("got %q", out)
	}
}

func TestStringConcatenation(t *testing.T) {
	_, out, err := run(t, `print "foo" + "bar";`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "foobar" {
		t.Fatalf("got %q", out)
	}
}

func TestGlobalVariables(t *testing.T) {
	_, out, err := run(t, `
		var x = 10;
		x = x + 5;
		print x;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "15" {
		t.Fatalf("got %q", out)
	}
}

func TestCompoundAssignment(t *testing.T) {
	_, out, err := run(t, `
		var x = 2;
		x *= 5;
		x -= 1;
		print x;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "9" {
		t.Fatalf("got %q", out)
	}
}

func TestIfElse(t *testing.T) {
	_, out, err := run(t, `
		if (1 < 2) {
			print "yes";
		} else {
			print "no";
		}
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "yes" {
		t.Fatalf("got %q", out)
	}
}

func TestWhileLoop(t *testing.T) {
	_, out, err := run(t, `
		var i = 0;
		var sum = 0;
		while (i < 5) {
			sum = sum + i;
			i = i + 1;
		}
		print sum;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Fatalf("got %q", out)
	}
}

func TestForLoop(t *testing.T) {
	_, out, err := run(t, `
		var sum = 0;
		for (var i = 0; i < 5; i = i + 1) {
			sum = sum + i;
		}
		print sum;
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "10" {
		t.Fatalf("got %q", out)
	}
}

func TestFunctionCallAndReturn(t *testing.T) {
	_, out, err := run(t, `
		fun add(a, b) {
			return a + b;
		}
		print add(3, 4);
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "7" {
		t.Fatalf("got %q", out)
	}
}

func TestClosureCapturesUpvalue(t *testing.T) {
	_, out, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		print counter();
		print counter();
		print counter();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "1\n2\n3"
	if strings.TrimSpace(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestClassesAndMethods(t *testing.T) {
	_, out, err := run(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				print "hello " + this.name;
			}
		}
		var g = Greeter("world");
		g.greet();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "hello world" {
		t.Fatalf("got %q", out)
	}
}

func TestBoundMethodStoredAndCalledLater(t *testing.T) {
	_, out, err := run(t, `
		class Greeter {
			init(name) {
				this.name = name;
			}
			greet() {
				print "hello " + this.name;
			}
		}
		var g = Greeter("world");
		var m = g.greet;
		m();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "hello world" {
		t.Fatalf("got %q", out)
	}
}

func TestSingleInheritanceWithExtendAndSuper(t *testing.T) {
	_, out, err := run(t, `
		class Animal {
			speak() {
				print "...";
			}
		}
		class Dog extend Animal {
			speak() {
				super.speak();
				print "woof";
			}
		}
		Dog().speak();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "...\nwoof"
	if strings.TrimSpace(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestLessAliasForInheritance(t *testing.T) {
	_, out, err := run(t, `
		class Animal {
			speak() {
				print "base";
			}
		}
		class Cat < Animal {}
		Cat().speak();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "base" {
		t.Fatalf("got %q", out)
	}
}

func TestRuntimeErrorUndefinedVariable(t *testing.T) {
	_, _, err := run(t, `print missing;`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Undefined variable") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestRuntimeErrorTypeMismatch(t *testing.T) {
	_, _, err := run(t, `print 1 + "x";`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Operands must be") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestNativeClockIsNumber(t *testing.T) {
	// Comparing with '>' is a runtime error unless clock() returned a number.
	_, out, err := run(t, `print clock() > 0;`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "true" {
		t.Fatalf("got %q", out)
	}
}

func TestNativeStrConvertsNumber(t *testing.T) {
	_, out, err := run(t, `print str(42);`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "42" {
		t.Fatalf("got %q", out)
	}
}

func TestBodyLevelLocalReadAfterOtherStatements(t *testing.T) {
	_, out, err := run(t, `
		fun compute() {
			var a = 1;
			var b = 2;
			var total = a + b;
			total = total * 10;
			return total;
		}
		print compute();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "30" {
		t.Fatalf("got %q", out)
	}
}

func TestSharedUpvalueObservesOtherClosuresWrites(t *testing.T) {
	_, out, err := run(t, `
		class Box {
			init(getter, setter) {
				this.get = getter;
				this.set = setter;
			}
		}
		fun makeShared() {
			var x = 0;
			fun get() {
				return x;
			}
			fun set(v) {
				x = v;
			}
			return Box(get, set);
		}
		var b = makeShared();
		b.set(5);
		print b.get();
		b.set(10);
		print b.get();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "5\n10"
	if strings.TrimSpace(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestOpenUpvaluesCloseInDescendingSlotOrder(t *testing.T) {
	// x is captured (and still open) below makeThree's frame while a, b, c
	// are captured above it. makeThree's return must close a, b, c and stop
	// at x; clobber's arguments then reuse the old a, b, c stack slots.
	_, out, err := run(t, `
		fun outer() {
			var x = 100;
			fun getX() {
				return x;
			}
			fun makeThree() {
				var a = 1;
				var b = 2;
				var c = 3;
				fun readAll() {
					return a + b + c;
				}
				return readAll;
			}
			var readAll = makeThree();
			fun clobber(p, q, r) {
				return readAll();
			}
			x = x + clobber(10, 20, 30);
			return getX;
		}
		print outer()();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "106" {
		t.Fatalf("got %q", out)
	}
}

func TestInheritanceCopyDownDoesNotSeeLateSuperclassMethods(t *testing.T) {
	_, out, err := run(t, `
		class Animal {
			speak() {
				print "original";
			}
		}
		class Dog extend Animal {}
		class Animal {
			speak() {
				print "replaced";
			}
		}
		var d = Dog();
		d.speak();
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "original" {
		t.Fatalf("got %q", out)
	}
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	_, _, err := run(t, `
		fun add(a, b) {
			return a + b;
		}
		add(1);
	`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Expected") || !strings.Contains(err.Error(), "arguments") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestStackOverflowIsRuntimeError(t *testing.T) {
	_, _, err := run(t, `
		fun recurse(n) {
			return recurse(n + 1);
		}
		recurse(0);
	`)
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	if !strings.Contains(err.Error(), "Stack overflow") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestWriteFileAndAppendFileNatives(t *testing.T) {
	path := t.TempDir() + "/out.txt"
	_, _, err := run(t, `
		writeFile("`+path+`", "hello ");
		appendFile("`+path+`", "world");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("reading output file: %v", readErr)
	}
	if string(contents) != "hello world" {
		t.Fatalf("got %q", contents)
	}
}

func TestGCDoesNotFreeLiveValues(t *testing.T) {
	heap := vm.NewHeap()
	heap.SetStressGC(true)
	machine := vm.New(heap)
	vm.RegisterNatives(machine)

	proto, err := compiler.Compile(`
		class Node {
			init(v) {
				this.value = v;
			}
		}
		var a = Node(1);
		var b = Node(2);
		var c = Node(3);
		print a.value + b.value + c.value;
	`, heap)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	if _, err := machine.Interpret(proto); err != nil {
		t.Fatalf("runtime error under stress GC: %v", err)
	}
}
