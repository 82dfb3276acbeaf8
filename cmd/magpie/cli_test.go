package main

import (
	"testing"

	"github.com/wudi/magpie/chunk"
	"github.com/wudi/magpie/frontend"
	"github.com/wudi/magpie/module"
)

func TestNeedsMoreInputTracksParensAndDoEnd(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"1 + 2\n", false},
		{"fn() -> do\n", true},
		{"fn() -> do\n  1\nend\n", false},
		{"(1 + 2\n", true},
		{"(1 + 2)\n", false},
		{"\"unterminated\n", true},
		{"[1, 2\n", true},
	}
	for _, c := range cases {
		if got := needsMoreInput(c.code); got != c.want {
			t.Errorf("needsMoreInput(%q) = %v, want %v", c.code, got, c.want)
		}
	}
}

func TestClassifyLoadErrorMapsResolutionAndCycleToModuleError(t *testing.T) {
	if err := classifyLoadError(&errResolution{name: "a.b.c"}); err.(*cliError).code != exitModuleError {
		t.Fatalf("resolution error should map to exitModuleError")
	}
	if err := classifyLoadError(&module.ErrImportCycle{Remaining: []string{"a", "b"}}); err.(*cliError).code != exitModuleError {
		t.Fatalf("cycle error should map to exitModuleError")
	}
	if err := classifyLoadError(frontend.ErrNoFrontend); err.(*cliError).code != exitCompileError {
		t.Fatalf("compile error should map to exitCompileError")
	}
}

func TestLoaderFailsOnUnresolvableImport(t *testing.T) {
	fe := cyclicFrontend{}
	ld := newLoader(fe, t.TempDir(), t.TempDir())
	// No files on disk: resolve will fail before a cycle is ever reached,
	// which is itself exitModuleError — cycle detection proper is covered
	// by module.TopoSort's own tests.
	_, err := ld.load("a", "a.mag", nil)
	if err == nil {
		t.Fatalf("expected an error resolving a's import of b with no files on disk")
	}
}

// cyclicFrontend always reports a single import "b", used only to drive
// loader.load down its import-resolution path in TestLoaderFailsOnUnresolvableImport.
type cyclicFrontend struct{}

func (cyclicFrontend) Compile(source []byte, path string) (*chunk.Chunk, []string, error) {
	return chunk.New(path), []string{"b"}, nil
}
