package chunkeval

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// RuntimeFactory constructs the embedded interpreter handle. The factory is
// invoked at most once per Evaluator, on the first chunk, with the evaluator's
// output sink.
type RuntimeFactory func(ctx context.Context, output OutputFunc) (Runtime, error)

// Options configures an Evaluator.
type Options struct {
	// Output receives everything the evaluated chunks produce. Required.
	Output OutputFunc

	// NewRuntime constructs the embedded interpreter on first use. If nil, a
	// PythonRuntime over the system Python installation is used.
	NewRuntime RuntimeFactory

	// Host is the host global namespace used by the heavy-dependency
	// bootstrap. May be nil if chunks never import the heavy dependency.
	Host ScriptHost

	// AssetURLs are the heavy library's script assets, in load order.
	AssetURLs []string

	// AdapterURL is the interpreter-side adapter source fetched during the
	// bootstrap.
	AdapterURL string

	// HTTPClient fetches the adapter source. Defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Evaluator runs chunks of Python source in a shared embedded interpreter,
// resolving missing packages before each execution and bootstrapping the heavy
// dependency the first time a chunk references it.
//
// Evaluator is safe for concurrent use: runtime construction and the heavy
// bootstrap are single-flight, and chunk execution is serialized, so the
// Runtime never sees overlapping calls.
type Evaluator struct {
	out        OutputFunc
	newRuntime RuntimeFactory
	bridge     *heavyBridge
	log        zerolog.Logger

	// execMu serializes everything a chunk does against the runtime, so
	// concurrent Evaluate calls queue instead of interleaving their
	// resolution and execution.
	execMu sync.Mutex

	mu       sync.Mutex
	runtime  Runtime
	rtFlight *runtimeFlight
}

// runtimeFlight is one in-flight runtime construction. rt and err are valid
// once done is closed.
type runtimeFlight struct {
	done chan struct{}
	rt   Runtime
	err  error
}

// NewEvaluator creates an Evaluator. The interpreter is not constructed until
// the first Evaluate call.
func NewEvaluator(opts Options) (*Evaluator, error) {
	if opts.Output == nil {
		return nil, fmt.Errorf("chunkeval: Options.Output is required")
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	newRuntime := opts.NewRuntime
	if newRuntime == nil {
		newRuntime = func(ctx context.Context, output OutputFunc) (Runtime, error) {
			env, err := NewSystemEnvironment()
			if err != nil {
				return nil, err
			}
			return NewPythonRuntime(ctx, env, RuntimeOptions{Output: output, Logger: &log})
		}
	}

	e := &Evaluator{
		out:        opts.Output,
		newRuntime: newRuntime,
		log:        log,
	}
	if opts.Host != nil {
		e.bridge = newHeavyBridge(opts.Host, opts.AssetURLs, opts.AdapterURL, opts.HTTPClient, log)
	}
	return e, nil
}

// Evaluate runs one chunk. All interpreter stdout is forwarded to the output
// sink as it is produced; the chunk's final expression value, if any, is
// forwarded once execution completes. A returned error is the chunk's outcome:
// resolution failures, bridge failures and interpreter errors all propagate
// unmodified.
func (e *Evaluator) Evaluate(ctx context.Context, chunk string) error {
	rt, err := e.ensureRuntime(ctx)
	if err != nil {
		return err
	}

	res := scanChunk(chunk)
	e.log.Debug().
		Strs("roots", res.roots).
		Bool("heavy", res.heavy).
		Msg("scanned chunk")

	e.execMu.Lock()
	defer e.execMu.Unlock()

	if res.heavy {
		if e.bridge == nil {
			return &BridgeUnavailableError{}
		}
		if err := e.bridge.Ensure(ctx, rt); err != nil {
			return err
		}
	}

	if err := resolveImports(ctx, rt, res.roots); err != nil {
		return err
	}

	value, err := rt.Execute(ctx, res.filtered)
	if err != nil {
		return err
	}
	if value != "" {
		e.out(value)
	}
	return nil
}

// BridgeState reports the heavy-dependency bootstrap state. BridgeUnloaded is
// returned when the evaluator has no host to bootstrap against.
func (e *Evaluator) BridgeState() BridgeState {
	if e.bridge == nil {
		return BridgeUnloaded
	}
	return e.bridge.State()
}

// Close tears down the interpreter if it was constructed. The evaluator must
// not be used afterwards.
func (e *Evaluator) Close() error {
	e.mu.Lock()
	rt := e.runtime
	e.runtime = nil
	e.mu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Close()
}

// ensureRuntime returns the shared runtime handle, constructing it on first
// call. Concurrent callers during construction wait for the in-flight attempt
// rather than starting another interpreter.
func (e *Evaluator) ensureRuntime(ctx context.Context) (Runtime, error) {
	e.mu.Lock()
	if e.runtime != nil {
		rt := e.runtime
		e.mu.Unlock()
		return rt, nil
	}
	if f := e.rtFlight; f != nil {
		e.mu.Unlock()
		select {
		case <-f.done:
			return f.rt, f.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f := &runtimeFlight{done: make(chan struct{})}
	e.rtFlight = f
	e.mu.Unlock()

	rt, err := e.newRuntime(ctx, e.out)

	e.mu.Lock()
	if err == nil {
		e.runtime = rt
	}
	e.rtFlight = nil
	e.mu.Unlock()

	f.rt, f.err = rt, err
	close(f.done)
	return rt, err
}
