package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/realmbind/internal/schema"
)

// parseValues decodes a JSON object or array of property values for type
// os. Date properties are written as RFC 3339 strings; nested objects and
// arrays are decoded against their link target.
func parseValues(set *schema.Set, os *schema.ObjectSchema, raw string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("values must be JSON: %w", err)
	}
	return convertValues(set, os, v)
}

func convertValues(set *schema.Set, os *schema.ObjectSchema, v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			p, ok := os.Property(k)
			if !ok {
				out[k] = e
				continue
			}
			cv, err := convertProperty(set, os, p, e)
			if err != nil {
				return nil, err
			}
			out[k] = cv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			if i >= len(os.Properties) {
				out[i] = e
				continue
			}
			cv, err := convertProperty(set, os, &os.Properties[i], e)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: values must be a JSON object or array", os.Name)
}

func convertProperty(set *schema.Set, os *schema.ObjectSchema, p *schema.Property, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch p.Type {
	case schema.Date:
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", os.Name, p.Name, err)
		}
		return t, nil
	case schema.Object:
		target, _ := set.Get(p.ObjectType)
		return convertValues(set, target, v)
	case schema.List:
		elems, ok := v.([]any)
		if !ok {
			return v, nil
		}
		target, _ := set.Get(p.ObjectType)
		out := make([]any, len(elems))
		for i, e := range elems {
			ce, err := convertValues(set, target, e)
			if err != nil {
				return nil, err
			}
			out[i] = ce
		}
		return out, nil
	}
	return v, nil
}
