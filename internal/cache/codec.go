package cache

import (
	"encoding/json"
	"fmt"
)

// Codec converts cache values to and from their persisted string form.
type Codec[T any] interface {
	Encode(v T) (string, error)
	Decode(s string) (T, error)
}

// JSONCodec persists T with its plain JSON encoding. Use it for structs and
// other values whose Go type already fixes their shape.
type JSONCodec[T any] struct{}

func (JSONCodec[T]) Encode(v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %T: %w", v, err)
	}
	return string(b), nil
}

func (JSONCodec[T]) Decode(s string) (T, error) {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return v, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return v, nil
}

// ValueCodec persists the Value sum type with its tagged envelope.
type ValueCodec struct{}

func (ValueCodec) Encode(v Value) (string, error) { return EncodeValue(v) }

func (ValueCodec) Decode(s string) (Value, error) { return DecodeValue(s) }
