package store

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/roach88/realmbind/internal/schema"
	"github.com/roach88/realmbind/internal/wire"
)

// encodeRow encodes values as a BSON document in property order.
// Properties missing from values are stored as null (lists as empty).
func encodeRow(os *schema.ObjectSchema, values map[string]wire.Value) ([]byte, error) {
	doc := make(bson.D, 0, len(os.Properties))
	for i := range os.Properties {
		p := &os.Properties[i]
		v, err := encodeValue(p, values[p.Name])
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		doc = append(doc, bson.E{Key: p.Name, Value: v})
	}
	return bson.Marshal(doc)
}

func encodeValue(p *schema.Property, v wire.Value) (any, error) {
	if p.Type == schema.List {
		arr := bson.A{}
		if wire.IsNull(v) {
			return arr, nil
		}
		elems, ok := v.(wire.Array)
		if !ok {
			return nil, fmt.Errorf("expected list, got %s", wire.KindOf(v))
		}
		for _, e := range elems {
			ref, ok := e.(wire.Object)
			if !ok {
				return nil, fmt.Errorf("expected object in list, got %s", wire.KindOf(e))
			}
			arr = append(arr, ref.ID)
		}
		return arr, nil
	}

	switch val := v.(type) {
	case nil, wire.Null:
		return nil, nil
	case wire.Bool:
		return bool(val), nil
	case wire.Int:
		return int64(val), nil
	case wire.Float:
		return float64(val), nil
	case wire.Double:
		return float64(val), nil
	case wire.String:
		return string(val), nil
	case wire.Date:
		return primitive.NewDateTimeFromTime(val.Time), nil
	case wire.Data:
		return primitive.Binary{Subtype: bson.TypeBinaryGeneric, Data: []byte(val)}, nil
	case wire.Object:
		return val.ID, nil
	}
	return nil, fmt.Errorf("cannot store %s", wire.KindOf(v))
}

// decodeRow decodes a document written by encodeRow. Fields absent from the
// document decode as null, or as an empty list.
func decodeRow(os *schema.ObjectSchema, data []byte) (map[string]wire.Value, error) {
	raw := bson.Raw(data)
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	values := make(map[string]wire.Value, len(os.Properties))
	for i := range os.Properties {
		p := &os.Properties[i]
		rv, err := raw.LookupErr(p.Name)
		if err != nil {
			rv = bson.RawValue{Type: bson.TypeNull}
		}
		v, err := decodeValue(p, rv)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Name, err)
		}
		values[p.Name] = v
	}
	return values, nil
}

func decodeValue(p *schema.Property, rv bson.RawValue) (wire.Value, error) {
	if p.Type == schema.List {
		out := wire.Array{}
		if rv.Type == bson.TypeNull {
			return out, nil
		}
		arr, ok := rv.ArrayOK()
		if !ok {
			return nil, fmt.Errorf("expected array, got %s", rv.Type)
		}
		elems, err := arr.Values()
		if err != nil {
			return nil, err
		}
		for _, e := range elems {
			id, ok := e.AsInt64OK()
			if !ok {
				return nil, fmt.Errorf("expected object id, got %s", e.Type)
			}
			out = append(out, wire.Object{Type: p.ObjectType, ID: id})
		}
		return out, nil
	}

	if rv.Type == bson.TypeNull {
		return wire.Null{}, nil
	}

	mismatch := func() error {
		return fmt.Errorf("cannot decode %s as %s", rv.Type, p.Type)
	}
	switch p.Type {
	case schema.Bool:
		b, ok := rv.BooleanOK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Bool(b), nil
	case schema.Int:
		n, ok := rv.AsInt64OK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Int(n), nil
	case schema.Float:
		f, ok := rv.DoubleOK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Float(float32(f)), nil
	case schema.Double:
		f, ok := rv.DoubleOK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Double(f), nil
	case schema.String:
		s, ok := rv.StringValueOK()
		if !ok {
			return nil, mismatch()
		}
		return wire.String(s), nil
	case schema.Date:
		ms, ok := rv.DateTimeOK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Date{Time: time.UnixMilli(ms).UTC()}, nil
	case schema.Data:
		_, b, ok := rv.BinaryOK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Data(b), nil
	case schema.Object:
		id, ok := rv.AsInt64OK()
		if !ok {
			return nil, mismatch()
		}
		return wire.Object{Type: p.ObjectType, ID: id}, nil
	}
	return nil, mismatch()
}
