package chunkeval

import (
	"context"
	"fmt"
)

// resolveImports ensures every package root is importable in the embedded
// environment before returning. Roots already importable are skipped; the rest
// are installed with a single batched request.
//
// Resolution is not cached across chunks. Installs may have happened through
// other means (a previous chunk, the heavy-dependency bridge), so the current
// world state is re-probed every time; the probe is cheap relative to
// re-deriving it.
func resolveImports(ctx context.Context, rt Runtime, roots []string) error {
	if len(roots) == 0 {
		return nil
	}

	var missing []string
	for _, root := range roots {
		ok, err := rt.Importable(ctx, root)
		if err != nil {
			return fmt.Errorf("probing %s: %w", root, err)
		}
		if !ok {
			missing = append(missing, root)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if err := rt.Install(ctx, missing); err != nil {
		return &ResolutionError{Packages: missing, Err: err}
	}
	return nil
}
