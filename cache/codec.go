package cache

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
)

// Codec defines methods for encoding and decoding stored values.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec stores values as bare JSON.
//
// Only payloads that round-trip losslessly are accepted: nil, booleans,
// integers, finite floats, strings, and slices, arrays and maps (with string
// or integer keys) built from those. Marshal fails with ErrUnencodable for
// anything else; Unmarshal fails with ErrCorruptEntry when data is not a JSON
// document of the target's shape.
type JSONCodec struct{}

// Marshal validates v and encodes it.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	if err := checkPayload(reflect.ValueOf(v), 0); err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	return data, nil
}

// Unmarshal decodes data into v.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return nil
}

func checkPayload(v reflect.Value, depth int) error {
	if depth > maxNormalizeDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrUnencodable, maxNormalizeDepth)
	}
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil

	case reflect.Float32, reflect.Float64:
		if f := v.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite float %v", ErrUnencodable, f)
		}
		return nil

	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return checkPayload(v.Elem(), depth+1)

	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkPayload(v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		switch v.Type().Key().Kind() {
		case reflect.String,
			reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return fmt.Errorf("%w: map key type %s", ErrUnencodable, v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkPayload(iter.Value(), depth+1); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnencodable, v.Type())
	}
}

// Ensure JSONCodec implements Codec
var _ Codec = JSONCodec{}
