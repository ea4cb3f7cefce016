// Package reach finds every use of a JavaScript or TypeScript symbol across
// a project, following imports, requires and re-exports, and transitively
// expanding to the symbols those uses bind.
//
// # Pipeline
//
// An analysis runs in three steps:
//
//  1. Index: enumerate the project's source files, canonicalize their
//     paths and parse and bind each one in parallel into an immutable
//     source model.
//
//  2. Resolve: turn the seeds into queries and drive a worklist to a
//     fixed point. A query matches a same-named symbol in another file only
//     when that symbol is imported from the query's origin file. Every
//     match records its enclosing statement and enqueues the symbols the
//     statement binds (destructured names, assigned variables, enclosing
//     functions).
//
//  3. Output: write the matched statements of each file, ordered by source
//     offset, into a tree mirroring the project.
//
// # Usage
//
//	e, err := reach.New("path/to/project", reach.WithOutput("../output"))
//	if err != nil { ... }
//
//	res, err := e.Analyze(ctx, []reach.Seed{{Symbol: "call", File: "factory.js"}})
//	if err != nil { ... }
//	err = e.WriteOutput(ctx, res)
//
// Seeds may also be computed by a Risor script (see [WithSeedScript]); the
// script sees the indexed files and their symbols.
//
// # Parallelism
//
// With [WithWorkers] greater than one, the worklist runs in waves: every
// pending query is scanned against all files concurrently, and discoveries
// are merged in file order at a barrier before the next wave. The matches
// are the same as in sequential mode.
package reach
