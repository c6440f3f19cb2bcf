// Package wire defines the values that cross the engine boundary.
//
// Every request to and response from an engine is expressed in these types.
// The realm layer converts them into Go values (and live handles) through its
// type registry; engines coerce them against the schema of the target
// property. wire imports no other internal package.
//
// Key constraints:
//   - Value is sealed: only the types in this package implement it
//   - Object, List and Results are references into engine state, never copies
//   - Canonical JSON (MarshalCanonical) is reserved for content hashing and
//     rejects floats and null
package wire
