package engine

import (
	"maps"
	"slices"

	"github.com/roach88/realmbind/internal/query"
	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/store"
	"github.com/roach88/realmbind/internal/wire"
)

// dataset is one version of a file's objects.
//
// Datasets are copy-on-write per record: clone shares every record with the
// source, and mutable copies a record the first time the clone writes it.
// gen identifies the dataset that owns a record copy.
type dataset struct {
	gen     int64
	set     *schema.Set
	objects map[int64]*record
	byType  map[string][]int64 // ids in creation order
	// version increments on every mutation; results caches key on it.
	version int64
	// journal is non-nil while an operation that may fail part way runs.
	journal *journal
}

// journal holds the state of every record and type index an operation
// touched, as it was before the operation began. A nil record means the id
// did not exist.
type journal struct {
	records map[int64]*record
	byType  map[string][]int64
}

// record is one stored object. List properties hold a wire.Array of
// wire.Object.
type record struct {
	gen    int64
	id     int64
	typ    string
	values map[string]wire.Value
}

func newDataset(gen int64, set *schema.Set) *dataset {
	return &dataset{
		gen:     gen,
		set:     set,
		objects: make(map[int64]*record),
		byType:  make(map[string][]int64),
	}
}

// loadDataset rebuilds a dataset from a persisted snapshot.
func loadDataset(gen int64, set *schema.Set, snap *store.Snapshot) *dataset {
	ds := newDataset(gen, set)
	for _, row := range snap.Rows {
		ds.insert(&record{gen: gen, id: row.ID, typ: row.Type, values: row.Values})
	}
	return ds
}

func (ds *dataset) clone(gen int64) *dataset {
	c := &dataset{
		gen:     gen,
		set:     ds.set,
		objects: maps.Clone(ds.objects),
		byType:  make(map[string][]int64, len(ds.byType)),
		version: ds.version,
	}
	for typ, ids := range ds.byType {
		c.byType[typ] = slices.Clone(ids)
	}
	return c
}

// lookup returns the record for ref if it exists with the expected type.
func (ds *dataset) lookup(ref wire.Object) (*record, bool) {
	rec, ok := ds.objects[ref.ID]
	if !ok || rec.typ != ref.Type {
		return nil, false
	}
	return rec, true
}

// mutable returns a record owned by ds, copying it on first write.
func (ds *dataset) mutable(rec *record) *record {
	ds.touch(rec.id)
	if rec.gen == ds.gen {
		return rec
	}
	c := rec.copyAs(ds.gen)
	ds.objects[rec.id] = c
	return c
}

func (rec *record) copyAs(gen int64) *record {
	c := &record{gen: gen, id: rec.id, typ: rec.typ, values: make(map[string]wire.Value, len(rec.values))}
	for k, v := range rec.values {
		if arr, ok := v.(wire.Array); ok {
			v = slices.Clone(arr)
		}
		c.values[k] = v
	}
	return c
}

// begin starts journaling changes so that settle can undo them.
func (ds *dataset) begin() {
	ds.journal = &journal{records: make(map[int64]*record), byType: make(map[string][]int64)}
}

// settle stops journaling. When failed is set, every record and type index
// touched since begin is put back.
func (ds *dataset) settle(failed bool) {
	j := ds.journal
	ds.journal = nil
	if j == nil || !failed {
		return
	}
	for id, prev := range j.records {
		if prev == nil {
			delete(ds.objects, id)
		} else {
			ds.objects[id] = prev
		}
	}
	for typ, ids := range j.byType {
		if ids == nil {
			delete(ds.byType, typ)
		} else {
			ds.byType[typ] = ids
		}
	}
	ds.version++
}

// touch saves the current state of id in the journal, once per operation.
func (ds *dataset) touch(id int64) {
	j := ds.journal
	if j == nil {
		return
	}
	if _, seen := j.records[id]; seen {
		return
	}
	rec := ds.objects[id]
	if rec != nil && rec.gen == ds.gen {
		// Owned records are written in place.
		rec = rec.copyAs(ds.gen)
	}
	j.records[id] = rec
}

func (ds *dataset) touchType(typ string) {
	j := ds.journal
	if j == nil {
		return
	}
	if _, seen := j.byType[typ]; !seen {
		j.byType[typ] = slices.Clone(ds.byType[typ])
	}
}

func (ds *dataset) insert(rec *record) {
	ds.touch(rec.id)
	ds.touchType(rec.typ)
	ds.objects[rec.id] = rec
	ds.byType[rec.typ] = append(ds.byType[rec.typ], rec.id)
	ds.version++
}

func (ds *dataset) remove(rec *record) {
	ds.touch(rec.id)
	ds.touchType(rec.typ)
	delete(ds.objects, rec.id)
	ids := ds.byType[rec.typ]
	if i := slices.Index(ids, rec.id); i >= 0 {
		ds.byType[rec.typ] = slices.Delete(ids, i, i+1)
	}
	ds.version++
}

func (ds *dataset) clear() {
	for id := range ds.objects {
		ds.touch(id)
	}
	for typ := range ds.byType {
		ds.touchType(typ)
	}
	clear(ds.objects)
	clear(ds.byType)
	ds.version++
}

// snapshot renders ds for persistence.
func (ds *dataset) snapshot(path, hash string, nextID, version int64) *store.Snapshot {
	snap := &store.Snapshot{
		Path:       path,
		SchemaHash: hash,
		Schema:     ds.set,
		NextID:     nextID,
		Version:    version,
		Rows:       make([]store.Row, 0, len(ds.objects)),
	}
	for _, id := range slices.Sorted(maps.Keys(ds.objects)) {
		rec := ds.objects[id]
		snap.Rows = append(snap.Rows, store.Row{ID: rec.id, Type: rec.typ, Values: rec.values})
	}
	return snap
}

// row adapts a record to query.Row.
type row struct {
	ds  *dataset
	rec *record
}

func (r row) Value(name string) (wire.Value, bool) {
	v, ok := r.rec.values[name]
	if !ok {
		os, known := r.ds.set.Get(r.rec.typ)
		if !known {
			return nil, false
		}
		if _, declared := os.Property(name); !declared {
			return nil, false
		}
		return wire.Null{}, true
	}
	return v, true
}

func (r row) Follow(ref wire.Object) (query.Row, bool) {
	rec, ok := r.ds.lookup(ref)
	if !ok {
		return nil, false
	}
	return row{ds: r.ds, rec: rec}, true
}
