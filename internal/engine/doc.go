// Package engine defines the contract between a realm and the object store
// that holds its data, and ships a reference in-memory implementation.
//
// Proxy is the request/response surface a realm talks to. Every property
// read, write, collection access and transaction step is one call; the
// realm never caches values, so the engine is the single source of truth.
//
// Memory is the reference engine:
//   - realms opened on the same path share one file
//   - one write transaction per file; other realms read the committed state
//   - begin clones the committed dataset (copy-on-write per object), commit
//     swaps the working copy in and persists it, cancel discards it
//   - object ids come from a monotonic Clock per file
//
// Loop serializes every call onto one goroutine for hosts that share a
// proxy across goroutines. Instrument wraps a proxy with metrics.
package engine
