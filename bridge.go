package chunkeval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Fixed interpreter names the bridge publishes before running the adapter
// source. The adapter code uses them to assemble the top-level torch binding.
const (
	// NativeBinding is bound to the raw heavy-library host global.
	NativeBinding = "_torch_native"

	// SurfaceBinding is bound to the three adapter functions.
	SurfaceBinding = "_torch_bridge"
)

// BridgeState tracks the heavy-dependency bootstrap across chunk evaluations.
// Transitions are monotonic from Ready: once the bootstrap succeeds it is never
// re-run. A Failed attempt permits a full fresh attempt on the next chunk that
// references the heavy dependency.
type BridgeState int

const (
	// BridgeUnloaded means no bootstrap has been attempted.
	BridgeUnloaded BridgeState = iota

	// BridgeLoading means a bootstrap attempt is in flight.
	BridgeLoading

	// BridgeReady means the heavy dependency is wired into the interpreter.
	BridgeReady

	// BridgeFailed means the last attempt raised; the next one starts over.
	BridgeFailed
)

// String returns the state name for logging.
func (s BridgeState) String() string {
	switch s {
	case BridgeUnloaded:
		return "unloaded"
	case BridgeLoading:
		return "loading"
	case BridgeReady:
		return "ready"
	case BridgeFailed:
		return "failed"
	}
	return fmt.Sprintf("BridgeState(%d)", int(s))
}

// BridgeSurface is the narrow adapter capability bound into the interpreter
// under SurfaceBinding. The three functions mirror TensorRuntime; binding
// functions rather than the raw global keeps the cross-boundary contract fixed.
type BridgeSurface struct {
	// DataOf extracts the underlying data from a tensor-like object.
	DataOf func(tensor any) (any, error)

	// FromData constructs a tensor-like object from interpreter-native data,
	// optionally with gradient tracking.
	FromData func(data any, requiresGrad bool) (any, error)

	// NewList converts an interpreter-native sequence to a host-native list.
	NewList func(items []any) (any, error)
}

// heavyBridge performs the at-most-once bootstrap that makes the heavy library
// usable inside the interpreter. It owns the BridgeState for one evaluator
// session and guards it with a single-flight discipline: concurrent chunks that
// both need the bootstrap share one attempt instead of racing into duplicate
// script loads.
type heavyBridge struct {
	host       ScriptHost
	assets     []string
	adapterURL string
	client     *http.Client
	log        zerolog.Logger

	mu     sync.Mutex
	state  BridgeState
	flight *bridgeFlight
}

// bridgeFlight is one in-flight bootstrap attempt. err is valid once done is
// closed.
type bridgeFlight struct {
	done chan struct{}
	err  error
}

func newHeavyBridge(host ScriptHost, assets []string, adapterURL string, client *http.Client, log zerolog.Logger) *heavyBridge {
	if client == nil {
		client = http.DefaultClient
	}
	return &heavyBridge{
		host:       host,
		assets:     assets,
		adapterURL: adapterURL,
		client:     client,
		log:        log,
	}
}

// State returns the current bridge state.
func (b *heavyBridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Ensure makes the heavy dependency usable inside rt, bootstrapping it if this
// is the first chunk to need it. Callers arriving while an attempt is in flight
// wait for that attempt's outcome. A failed attempt leaves the bridge in
// BridgeFailed; the next Ensure starts the whole sequence over.
func (b *heavyBridge) Ensure(ctx context.Context, rt Runtime) error {
	b.mu.Lock()
	if b.state == BridgeReady {
		b.mu.Unlock()
		return nil
	}
	if f := b.flight; f != nil {
		b.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &bridgeFlight{done: make(chan struct{})}
	b.flight = f
	b.state = BridgeLoading
	b.mu.Unlock()

	err := b.bootstrap(ctx, rt)

	b.mu.Lock()
	if err != nil {
		b.state = BridgeFailed
	} else {
		b.state = BridgeReady
	}
	b.flight = nil
	b.mu.Unlock()

	f.err = err
	close(f.done)
	return err
}

// bootstrap runs the full sequence. The sequence is not decomposed into
// resumable steps; any raised error fails the attempt as a whole.
func (b *heavyBridge) bootstrap(ctx context.Context, rt Runtime) error {
	// 1. Load the script assets into the host process.
	if err := b.loadAssets(ctx); err != nil {
		var unavail *BridgeUnavailableError
		if errors.As(err, &unavail) {
			return err
		}
		return &BridgeLoadError{Step: "load", Err: err}
	}

	// 2. The scripts must have registered the library in the host namespace.
	global, ok := b.host.Lookup(HeavyDependency)
	if !ok {
		return &BridgeLoadError{Step: "locate", Err: fmt.Errorf("global %q not registered after script load", HeavyDependency)}
	}
	tensor, ok := global.(TensorRuntime)
	if !ok {
		return &BridgeLoadError{Step: "locate", Err: fmt.Errorf("global %q does not provide the tensor surface", HeavyDependency)}
	}

	// 3. Publish the raw global and the adapter surface into the interpreter.
	if err := rt.Bind(ctx, NativeBinding, global); err != nil {
		return &BridgeLoadError{Step: "adapter", Err: err}
	}
	surface := BridgeSurface{
		DataOf:   tensor.DataOf,
		FromData: tensor.FromData,
		NewList:  tensor.NewList,
	}
	if err := rt.Bind(ctx, SurfaceBinding, surface); err != nil {
		return &BridgeLoadError{Step: "adapter", Err: err}
	}

	// 4. Fetch the interpreter-side adapter source and run it. The adapter is
	// expected to define the top-level torch binding using the surface above.
	src, err := b.fetchAdapter(ctx)
	if err != nil {
		return &BridgeLoadError{Step: "fetch", Err: err}
	}
	if _, err := rt.Execute(ctx, src); err != nil {
		return &BridgeLoadError{Step: "adapter", Err: err}
	}

	// 5. Verify the binding took effect. Absence is a diagnostic, not a
	// failure; code referencing the binding will report its own error.
	if ok, err := rt.Importable(ctx, HeavyDependency); err != nil || !ok {
		b.log.Warn().
			Err(err).
			Str("binding", HeavyDependency).
			Msg("adapter source executed but binding is not importable")
	}

	return nil
}

// loadAssets loads the ordered script assets using whichever capability the
// host offers. Sequential loading is preferred: each asset is awaited before
// the next starts, since later assets depend on earlier ones.
func (b *heavyBridge) loadAssets(ctx context.Context) error {
	if seq, ok := b.host.(SequentialScriptLoader); ok {
		for _, url := range b.assets {
			if err := seq.LoadScript(ctx, url); err != nil {
				return fmt.Errorf("loading %s: %w", url, err)
			}
		}
		return nil
	}
	if bulk, ok := b.host.(BulkScriptImporter); ok {
		return bulk.ImportScripts(ctx, b.assets...)
	}
	return &BridgeUnavailableError{}
}

// fetchAdapter retrieves the interpreter-side adapter source over HTTP.
func (b *heavyBridge) fetchAdapter(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.adapterURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{URL: b.adapterURL, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
