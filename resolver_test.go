package chunkeval

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestResolveEmptySetIsNoop(t *testing.T) {
	rt := newFakeRuntime()
	rt.probeErr = fmt.Errorf("must not be called")

	if err := resolveImports(context.Background(), rt, nil); err != nil {
		t.Fatalf("Expected no-op for empty set, got %v", err)
	}
	if len(rt.probes) != 0 {
		t.Errorf("Expected no probes, got %v", rt.probes)
	}
}

func TestResolveAllPresent(t *testing.T) {
	rt := newFakeRuntime()
	rt.importable["os"] = true
	rt.importable["json"] = true

	if err := resolveImports(context.Background(), rt, []string{"json", "os"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rt.installs) != 0 {
		t.Errorf("Expected no install for present packages, got %v", rt.installs)
	}
}

func TestResolveInstallsMissingAsOneBatch(t *testing.T) {
	rt := newFakeRuntime()
	rt.importable["os"] = true

	if err := resolveImports(context.Background(), rt, []string{"numpy", "os", "pandas"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rt.installs) != 1 {
		t.Fatalf("Expected exactly one install request, got %d", len(rt.installs))
	}
	if !reflect.DeepEqual(rt.installs[0], []string{"numpy", "pandas"}) {
		t.Errorf("Expected batch [numpy pandas], got %v", rt.installs[0])
	}
}

func TestResolveInstallFailure(t *testing.T) {
	rt := newFakeRuntime()
	rt.installErr = fmt.Errorf("network unreachable")

	err := resolveImports(context.Background(), rt, []string{"numpy"})

	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("Expected ResolutionError, got %v", err)
	}
	if !reflect.DeepEqual(resErr.Packages, []string{"numpy"}) {
		t.Errorf("Expected packages [numpy], got %v", resErr.Packages)
	}
	if !errors.Is(err, rt.installErr) {
		t.Error("Expected install error to be wrapped")
	}
}

func TestResolveProbeErrorPropagates(t *testing.T) {
	rt := newFakeRuntime()
	rt.probeErr = fmt.Errorf("interpreter gone")

	if err := resolveImports(context.Background(), rt, []string{"numpy"}); err == nil {
		t.Fatal("Expected probe error to propagate")
	}
	if len(rt.installs) != 0 {
		t.Errorf("Expected no install after probe failure, got %v", rt.installs)
	}
}

func TestResolveReprobesEveryCall(t *testing.T) {
	// resolution state is never cached; a second call probes the world again
	rt := newFakeRuntime()

	if err := resolveImports(context.Background(), rt, []string{"numpy"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := resolveImports(context.Background(), rt, []string{"numpy"}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(rt.probes) != 2 {
		t.Errorf("Expected 2 probes, got %d", len(rt.probes))
	}
	// the fake marks installed packages importable, so only the first call installs
	if len(rt.installs) != 1 {
		t.Errorf("Expected 1 install, got %d", len(rt.installs))
	}
}
