// Package container is a small inversion-of-control runtime. It resolves typed, optionally
// qualified bindings into instances under a declared scope, and wraps calls to managed
// operations with an ordered chain of cross-cutting processors before the real method runs.
//
// The Container type is the composition root and has the most complete documentation
// about how the pieces fit together.
//
// There are also generic helper functions (Resolve, ResolveNamed, ResolveOptional) that
// make using the Injector more concise.
package container
