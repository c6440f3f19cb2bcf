package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/realmbind/internal/realm"
)

// ObjectRecord is the printed form of one object.
type ObjectRecord struct {
	Type   string         `json:"type"`
	ID     int64          `json:"id"`
	Values map[string]any `json:"values"`

	keys []string
	text []string
}

// readRecord reads every property of h. Links print as Type#id and lists
// as the references they hold.
func readRecord(h realm.Handle) (*ObjectRecord, error) {
	o, ok := h.(*realm.Object)
	if !ok {
		return nil, fmt.Errorf("unexpected handle %T", h)
	}
	rec := &ObjectRecord{Type: o.Type(), ID: o.ID(), Values: make(map[string]any), keys: o.Keys()}
	for _, k := range rec.keys {
		v, err := o.Get(k)
		if err != nil {
			return nil, err
		}
		jv, tv, err := renderValue(v)
		if err != nil {
			return nil, err
		}
		rec.Values[k] = jv
		rec.text = append(rec.text, k+": "+tv)
	}
	return rec, nil
}

// String renders the record on one line.
func (r *ObjectRecord) String() string {
	return fmt.Sprintf("%s#%d {%s}", r.Type, r.ID, strings.Join(r.text, ", "))
}

// renderValue returns the JSON and text forms of a property value.
func renderValue(v any) (any, string, error) {
	switch val := v.(type) {
	case nil:
		return nil, "null", nil
	case string:
		return val, fmt.Sprintf("%q", val), nil
	case time.Time:
		s := val.UTC().Format(time.RFC3339Nano)
		return s, s, nil
	case []byte:
		return val, fmt.Sprintf("<%d bytes>", len(val)), nil
	case *realm.Object:
		return val.String(), val.String(), nil
	case realm.Handle:
		s := fmt.Sprintf("%v", val)
		return s, s, nil
	case *realm.List:
		refs := []string{}
		for h, err := range val.All() {
			if err != nil {
				return nil, "", err
			}
			refs = append(refs, fmt.Sprintf("%v", h))
		}
		return refs, "[" + strings.Join(refs, ", ") + "]", nil
	default:
		return val, fmt.Sprintf("%v", val), nil
	}
}
