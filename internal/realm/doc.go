// Package realm is the application-facing binding layer over an engine.
//
// A Realm is opened with a schema and talks to an engine.Proxy. Objects are
// materialized as handles whose property accessors read and write through
// the engine on every call; nothing is cached. Objects and Filtered/Sorted
// return live Results that re-evaluate on every access. All mutation goes
// through Realm.Write, which begins a transaction, commits on success and
// cancels on error or panic.
//
//	r, err := realm.Open(realm.Config{Schema: []schema.Definition{personSchema}})
//	err = r.Write(func() error {
//		_, err := r.Create("Person", map[string]any{"name": "Ann", "age": 30})
//		return err
//	})
//	people, _ := r.Objects("Person")
//	n, _ := people.Length()
//
// User types embed *Object and are registered with NewClass so that
// materialized handles of that type can be asserted back to the user type.
package realm
