// Package query provides the predicate representation used to filter and
// sort live collections.
//
// Filters are written in CUE expression syntax and parsed with the CUE
// parser:
//
//	age >= 21 && name =~ "^A"
//	owner.name == $0
//	dog == null
//
// Supported operators are == != < <= > >= =~ !~ && || and !. A dotted key
// path follows object links; $N refers to the N-th positional argument.
//
// Predicate is a sealed interface. Only types in this package implement it,
// so evaluators can switch over every node exhaustively:
//
//	switch p := pred.(type) {
//	case *Compare:
//	case *And:
//	case *Or:
//	case *Not:
//	case Const:
//	}
//
// Validate checks a predicate against a schema type before evaluation. Eval
// runs it against a Row, which the engine backs with its stored objects.
package query
