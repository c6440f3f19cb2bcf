// Package store provides SQLite-backed persistence for engine files.
//
// A file is stored as one realm_files row (schema, hash, id clock, version)
// plus one objects row per stored object. Object values are encoded as BSON
// documents, one field per schema property in declaration order:
//
//	bool, int, float, double, string   native BSON types
//	date                               BSON datetime (millisecond precision)
//	data                               BSON binary, generic subtype
//	object link                        int64 object id, or null
//	list                               array of int64 object ids
//
// Save rewrites a file's objects in a single SQL transaction, so a reader
// never observes a half-written commit.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: objects rows are removed with their file
package store
