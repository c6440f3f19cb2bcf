package query

import (
	"bytes"
	"cmp"
	"strings"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// SortKey orders a collection by one property. Property may be a dotted key
// path through links.
type SortKey struct {
	Property   string `json:"property"`
	Descending bool   `json:"descending,omitempty"`
}

// ParseSortKey reads "name" as ascending and "-name" as descending.
func ParseSortKey(s string) SortKey {
	if name, ok := strings.CutPrefix(s, "-"); ok {
		return SortKey{Property: name, Descending: true}
	}
	return SortKey{Property: strings.TrimPrefix(s, "+")}
}

func (k SortKey) path() []string {
	return strings.Split(k.Property, ".")
}

// ValidateSort checks that every key names a sortable property of typeName.
func ValidateSort(keys []SortKey, set *schema.Set, typeName string) error {
	root, ok := set.Get(typeName)
	if !ok {
		return &Error{Message: "unknown type " + typeName}
	}
	for _, k := range keys {
		prop, err := ResolveProperty(set, root, k.path())
		if err != nil {
			return err
		}
		if prop.Type.IsLink() {
			return &Error{Expr: k.Property, Message: "cannot sort by " + string(prop.Type) + " property"}
		}
	}
	return nil
}

// CompareRows orders two rows by keys. Rows equal under every key compare
// as 0 so callers can use a stable sort.
func CompareRows(keys []SortKey, a, b Row) (int, error) {
	for _, k := range keys {
		va, err := Resolve(a, k.path())
		if err != nil {
			return 0, err
		}
		vb, err := Resolve(b, k.path())
		if err != nil {
			return 0, err
		}
		if c := CompareValues(va, vb); c != 0 {
			if k.Descending {
				return -c, nil
			}
			return c, nil
		}
	}
	return 0, nil
}

// CompareValues is a total order over values: null sorts first, then
// values are compared within their family. Values of different families
// order by kind name.
func CompareValues(a, b wire.Value) int {
	an, bn := wire.IsNull(a), wire.IsNull(b)
	switch {
	case an && bn:
		return 0
	case an:
		return -1
	case bn:
		return 1
	}
	if c, ok := compareOrdered(a, b); ok {
		return c
	}
	switch x := a.(type) {
	case wire.Bool:
		if y, ok := b.(wire.Bool); ok {
			switch {
			case x == y:
				return 0
			case !bool(x):
				return -1
			}
			return 1
		}
	case wire.Data:
		if y, ok := b.(wire.Data); ok {
			return bytes.Compare(x, y)
		}
	case wire.Object:
		if y, ok := b.(wire.Object); ok {
			return cmp.Compare(x.ID, y.ID)
		}
	}
	return strings.Compare(string(wire.KindOf(a)), string(wire.KindOf(b)))
}
