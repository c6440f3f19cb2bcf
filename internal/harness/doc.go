// Package harness runs realm scenarios written in YAML.
//
// A scenario names a CUE schema, a flow of steps and assertions on the final
// state. Each run opens a fresh in-memory realm on its own engine with
// deterministic realm ids, so the trace of a scenario is reproducible and
// can be compared against a golden file.
//
//	name: link-assignment
//	description: assigning a value map to a link creates the target
//	schema: ../schema.cue
//	flow:
//	  - write:
//	      - create: Person
//	        values: {name: Alice, dog: {name: Rex}}
//	        as: alice
//	  - read: alice
//	    property: dog
//	    expect: Dog#2
//	assertions:
//	  - type: count
//	    object_type: Dog
//	    count: 1
//
// Values may reference objects named with "as" by writing "@name".
//
// Trace lines have the form "<seq> <op> <target> -> <outcome>", where a
// failed step's outcome is "error: <kind>" and kind is one of state,
// schema, transaction, type, index or aborted.
package harness
