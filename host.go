package chunkeval

import "context"

// OutputFunc receives text produced by an evaluated chunk. It is invoked once
// per stdout flush while the chunk runs, and once more with the final expression
// value if the chunk produced one. Implementations are typically bound to the
// host framework's sendOutput call.
type OutputFunc func(text string)

// Runtime is a handle to the embedded interpreter instance. A single Runtime is
// shared by every chunk evaluated on one Evaluator; the interpreter is treated
// as capable of at most one concurrent execution, and the Evaluator serializes
// its chunks accordingly, so implementations never see overlapping Execute
// calls from it.
//
// All blocking operations take a context so the caller can impose deadlines;
// the evaluator itself never does.
type Runtime interface {
	// Execute runs source in the interpreter. Stdout is forwarded incrementally
	// through the OutputFunc the runtime was constructed with. The return value
	// is the final expression's representation, or "" if the source did not end
	// in an expression.
	Execute(ctx context.Context, source string) (string, error)

	// Importable reports whether the named top-level package can currently be
	// imported inside the embedded environment. The probe must not execute the
	// package's module-level code.
	Importable(ctx context.Context, root string) (bool, error)

	// Install makes every named package importable, as a single batched
	// request. An error means at least one package could not be installed;
	// no partial-success reporting is provided.
	Install(ctx context.Context, roots []string) error

	// Bind exposes a host-side value inside the interpreter under a top-level
	// name. Used by the heavy-dependency bridge to publish its surface.
	Bind(ctx context.Context, name string, value any) error

	// Close tears down the interpreter. The Evaluator calls it only when the
	// evaluator itself is discarded.
	Close() error
}

// ScriptHost is the host process's global namespace as seen by the
// heavy-dependency bridge. Loading capability is detected at runtime by type
// assertion against SequentialScriptLoader and BulkScriptImporter; a host that
// satisfies neither cannot bootstrap the heavy dependency.
type ScriptHost interface {
	// Lookup returns the named global from the host namespace after script
	// assets have loaded, and whether it was present.
	Lookup(name string) (any, bool)
}

// SequentialScriptLoader is the document-style loading capability: one script
// asset is loaded and awaited before the next begins. Order matters because
// later assets depend on globals established by earlier ones.
type SequentialScriptLoader interface {
	LoadScript(ctx context.Context, url string) error
}

// BulkScriptImporter is the worker-style loading capability: all script assets
// are imported in one synchronous call.
type BulkScriptImporter interface {
	ImportScripts(ctx context.Context, urls ...string) error
}

// TensorRuntime is the narrow surface the heavy library's host global must
// provide. The bridge binds these three operations into the interpreter rather
// than passing opaque dynamic values across the boundary.
type TensorRuntime interface {
	// DataOf extracts the underlying data from a tensor-like object.
	DataOf(tensor any) (any, error)

	// FromData constructs a tensor-like object from interpreter-native data.
	// requiresGrad enables gradient tracking on the result.
	FromData(data any, requiresGrad bool) (any, error)

	// NewList converts an interpreter-native sequence to the host's native
	// list representation.
	NewList(items []any) (any, error)
}
