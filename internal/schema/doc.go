// Package schema compiles object type declarations into normalized
// descriptors.
//
// A realm is opened with a list of Definitions. Compile clones and normalizes
// each descriptor, validates the whole set (collecting every error rather
// than stopping at the first), and returns an immutable Set together with a
// side table of the definitions that carry more than a bare descriptor.
//
// Descriptors can also be loaded from CUE files, see CompileCUE and LoadFile.
package schema
