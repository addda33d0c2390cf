package chunkeval

import (
	"sort"
	"strings"
)

// HeavyDependency is the package resolved by the bridge bootstrap instead of
// the ordinary installer.
const HeavyDependency = "torch"

// plainHeavyImport is the exact import form consumed by the scanner.
const plainHeavyImport = "import " + HeavyDependency

// scanResult is what the scanner derives from one chunk.
type scanResult struct {
	// filtered is the chunk with the heavy dependency's plain import line
	// removed. All other lines pass through unmodified.
	filtered string

	// roots is the deduplicated, sorted set of imported top-level package
	// names, excluding relative imports and the heavy dependency itself.
	roots []string

	// heavy reports whether the chunk referenced the heavy dependency.
	heavy bool
}

// scanChunk performs a line-oriented scan of chunk source. It is deliberately
// not a parser: multi-line imports, conditional imports and importlib calls are
// out of scope, and unrecognized lines pass through for the interpreter to
// judge. Scanning never fails.
func scanChunk(source string) scanResult {
	var res scanResult
	seen := map[string]struct{}{}
	var kept []string

	for _, line := range strings.Split(source, "\n") {
		if strings.TrimSpace(line) == plainHeavyImport {
			// consumed: the bridge handles torch, not the resolver
			res.heavy = true
			continue
		}
		kept = append(kept, line)

		// Comment stripping is for detection only; the executed line above is
		// preserved as written.
		code := line
		if i := strings.Index(code, "#"); i >= 0 {
			code = code[:i]
		}
		for _, root := range importRoots(code) {
			if root == HeavyDependency {
				res.heavy = true
				continue
			}
			if _, dup := seen[root]; dup {
				continue
			}
			seen[root] = struct{}{}
			res.roots = append(res.roots, root)
		}
	}

	sort.Strings(res.roots)
	res.filtered = strings.Join(kept, "\n")
	return res
}

// importRoots extracts top-level package names from one comment-stripped line.
// Two shapes are recognized: "import A, B as x, C" and "from A.B import X, Y".
// Relative imports (leading dot) contribute nothing.
func importRoots(line string) []string {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil
	}

	switch fields[0] {
	case "import":
		rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "import"))
		var roots []string
		for _, clause := range strings.Split(rest, ",") {
			parts := strings.Fields(clause)
			if len(parts) == 0 {
				continue
			}
			// "numpy as np" -> "numpy"; the alias is discarded
			if root := rootSegment(parts[0]); root != "" {
				roots = append(roots, root)
			}
		}
		return roots
	case "from":
		if root := rootSegment(fields[1]); root != "" {
			return []string{root}
		}
	}
	return nil
}

// rootSegment returns the first dot-segment of a module path, or "" for a
// relative path, a blank name, or a stray alias keyword with no module before
// it ("import as np").
func rootSegment(module string) string {
	if module == "" || module == "as" || strings.HasPrefix(module, ".") {
		return ""
	}
	if i := strings.Index(module, "."); i >= 0 {
		module = module[:i]
	}
	return module
}
