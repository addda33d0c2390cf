package chunkeval

import (
	"fmt"
	"strings"
)

// ResolutionError reports a failed batch install. The whole chunk evaluation
// fails; no partial-success bookkeeping is kept.
type ResolutionError struct {
	// Packages are the roots the install request named.
	Packages []string

	// Err is the installer's error.
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("installing %s: %v", strings.Join(e.Packages, ", "), e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// BridgeUnavailableError reports a host with neither script-loading capability.
// The bootstrap cannot succeed until the host changes.
type BridgeUnavailableError struct{}

func (e *BridgeUnavailableError) Error() string {
	return "host offers neither sequential script loading nor bulk script import"
}

// BridgeLoadError reports a failed heavy-dependency bootstrap attempt. It is
// fatal to the current chunk; a later chunk that references the heavy
// dependency re-attempts the full sequence.
type BridgeLoadError struct {
	// Step names the bootstrap step that failed ("load", "locate", "fetch",
	// "adapter").
	Step string

	// Err is the underlying failure.
	Err error
}

func (e *BridgeLoadError) Error() string {
	return fmt.Sprintf("%s bootstrap %s: %v", HeavyDependency, e.Step, e.Err)
}

func (e *BridgeLoadError) Unwrap() error { return e.Err }

// FetchError reports a non-2xx response while fetching the interpreter-side
// adapter source.
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.Status)
}
