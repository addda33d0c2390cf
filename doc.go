// Package chunkeval evaluates chunks of Python source inside an embedded,
// sandboxed interpreter owned by a host process, transparently resolving
// missing third-party packages before execution and lazily bridging in a
// heavy external tensor library the first time a chunk references it.
//
// # Evaluation Pipeline
//
// Each chunk submitted to Evaluator.Evaluate goes through four stages:
//
//  1. Scan: a line-oriented scan extracts the chunk's top-level imports. The
//     scanner is deliberately not a parser; unrecognized lines pass through
//     for the interpreter itself to judge.
//
//  2. Bridge: if the chunk imports torch, the one-time bootstrap loads the
//     library's script assets into the host, publishes a narrow adapter
//     surface into the interpreter, and runs adapter source fetched over
//     HTTP. The bootstrap is single-flight: concurrent chunks share one
//     attempt, and a failed attempt is retried from scratch by the next
//     qualifying chunk.
//
//  3. Resolve: every other imported package is probed for importability and
//     the missing ones are installed with one batched request. Nothing is
//     cached across chunks; the environment is re-probed every time.
//
//  4. Execute: the filtered source runs in the shared interpreter. Stdout is
//     forwarded to the host as it is produced, and the chunk's final
//     expression value follows once execution completes.
//
// # Usage
//
//	eval, err := chunkeval.NewEvaluator(chunkeval.Options{
//		Output:     func(text string) { fmt.Print(text) },
//		Host:       host,
//		AssetURLs:  []string{torchJS, torchWASM},
//		AdapterURL: adapterURL,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer eval.Close()
//
//	err = eval.Evaluate(ctx, `
//	import numpy as np
//	print(np.arange(3).sum())
//	`)
//
// # Embedded Runtime
//
// The interpreter behind the pipeline is anything satisfying the Runtime
// interface. The default is PythonRuntime, a Python subprocess driven over
// length-prefixed msgpack frames by an embedded shim: requests flow down,
// results, stdout flushes and bridge callbacks flow up. Hosts with their own
// interpreter (wasm builds, remote kernels) supply a RuntimeFactory instead.
package chunkeval
