package compiler_test

import (
	"strings"
	"testing"

	"github.com/kenny-goh/kscript/internal/compiler"
	"github.com/kenny-goh/kscript/internal/vm"
)

func compile(t *testing.T, source string) (*vm.Heap, error) {
	t.Helper()
	heap := vm.NewHeap()
	_, err := compiler.Compile(source, heap)
	return heap, err
}

func TestCompileValidProgram(t *testing.T) {
	if _, err := compile(t, `
		class Shape {
			area() { return 0; }
		}
		class Square extend Shape {
			init(side) { this.side = side; }
			area() { return this.side * this.side; }
		}
		var s = Square(4);
		print s.area();
	`); err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}
}

func TestCompileErrorMissingSemicolon(t *testing.T) {
	_, err := compile(t, `var x = 1`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Expect ';'") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorReturnOutsideFunction(t *testing.T) {
	_, err := compile(t, `return 1;`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Can't return from top-level code") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorReturnValueFromInitializer(t *testing.T) {
	_, err := compile(t, `
		class Foo {
			init() { return 1; }
		}
	`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Can't return a value from an initializer") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorSuperOutsideClass(t *testing.T) {
	_, err := compile(t, `
		fun f() {
			super.foo();
		}
	`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Can't use 'super' outside of a class") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorSuperWithoutSuperclass(t *testing.T) {
	_, err := compile(t, `
		class Foo {
			bar() {
				super.bar();
			}
		}
	`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "no superclass") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorClassExtendsItself(t *testing.T) {
	_, err := compile(t, `class Foo extend Foo {}`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "can't inherit from itself") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorDuplicateLocal(t *testing.T) {
	_, err := compile(t, `
		fun f() {
			var a = 1;
			var a = 2;
		}
	`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Already a variable with this name") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorSelfReferentialInitializer(t *testing.T) {
	_, err := compile(t, `
		fun f() {
			var a = a;
		}
	`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "own initializer") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileErrorInvalidAssignmentTarget(t *testing.T) {
	_, err := compile(t, `1 + 2 = 3;`)
	if err == nil {
		t.Fatal("expected a compile error")
	}
	if !strings.Contains(err.Error(), "Invalid assignment target") {
		t.Fatalf("got %q", err.Error())
	}
}

func TestCompileReportsMultipleErrorsViaSynchronize(t *testing.T) {
	_, err := compile(t, `
		var ;
		var ;
	`)
	if err == nil {
		t.Fatal("expected compile errors")
	}
	if strings.Count(err.Error(), "Expect a variable name") < 2 {
		t.Fatalf("expected synchronize to recover and report both errors, got %q", err.Error())
	}
}
