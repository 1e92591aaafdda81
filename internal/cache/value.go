package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Kind discriminates the cases of Value.
type Kind string

const (
	KindScalar    Kind = "Scalar"
	KindComposite Kind = "Composite"
	KindMap       Kind = "Map"
	KindSet       Kind = "Set"
	KindDate      Kind = "Date"
)

// Value is a closed sum type over everything the cache can persist with
// shape fidelity. Only the types in this file implement it.
type Value interface {
	Kind() Kind
	sealed()
}

// Scalar holds a JSON primitive: string, float64, bool or nil.
type Scalar struct {
	V any
}

// Composite holds a plain JSON object or array in its generic decoded form.
type Composite struct {
	V any
}

// OrderedMap is a string keyed map that remembers insertion order.
type OrderedMap struct {
	m *orderedmap.OrderedMap[string, any]
}

// UniqueSet is a set of JSON values that keeps first-insertion order.
type UniqueSet struct {
	items []any
	index map[string]struct{}
}

// Timestamp is a point in time, persisted as RFC 3339 in UTC.
type Timestamp struct {
	T time.Time
}

func (Scalar) Kind() Kind      { return KindScalar }
func (Composite) Kind() Kind   { return KindComposite }
func (*OrderedMap) Kind() Kind { return KindMap }
func (*UniqueSet) Kind() Kind  { return KindSet }
func (Timestamp) Kind() Kind   { return KindDate }

func (Scalar) sealed()      {}
func (Composite) sealed()   {}
func (*OrderedMap) sealed() {}
func (*UniqueSet) sealed()  {}
func (Timestamp) sealed()   {}

// NewOrderedMap returns an empty OrderedMap.
func NewOrderedMap() *OrderedMap {
	return &OrderedMap{m: orderedmap.New[string, any]()}
}

// Set inserts or overwrites key. Overwriting keeps the original position.
func (o *OrderedMap) Set(key string, v any) {
	o.m.Set(key, v)
}

// Get returns the value stored under key.
func (o *OrderedMap) Get(key string) (any, bool) {
	return o.m.Get(key)
}

// Delete removes key if present.
func (o *OrderedMap) Delete(key string) {
	o.m.Delete(key)
}

// Len reports the number of pairs.
func (o *OrderedMap) Len() int {
	return o.m.Len()
}

// Keys returns the keys in insertion order.
func (o *OrderedMap) Keys() []string {
	keys := make([]string, 0, o.m.Len())
	for pair := o.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// NewUniqueSet returns a set holding items, duplicates dropped.
func NewUniqueSet(items ...any) *UniqueSet {
	s := &UniqueSet{index: make(map[string]struct{})}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

// Add inserts v unless an equal JSON value is already present.
// It reports whether v was added.
func (s *UniqueSet) Add(v any) bool {
	k := identity(v)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// Has reports whether an equal JSON value is in the set.
func (s *UniqueSet) Has(v any) bool {
	_, ok := s.index[identity(v)]
	return ok
}

// Items returns a copy of the elements in insertion order.
func (s *UniqueSet) Items() []any {
	out := make([]any, len(s.items))
	copy(out, s.items)
	return out
}

// Len reports the number of elements.
func (s *UniqueSet) Len() int {
	return len(s.items)
}

// identity keys set members by their JSON encoding; json.Marshal sorts map keys
// so equal objects collapse to one member.
func identity(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(b)
}

type tagged struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value"`
}

// EncodeValue serializes v into its persisted string form: the plain JSON
// encoding for scalars and composites, a {"type","value"} envelope otherwise.
func EncodeValue(v Value) (string, error) {
	var (
		out []byte
		err error
	)
	switch x := v.(type) {
	case Scalar:
		out, err = json.Marshal(x.V)
	case Composite:
		out, err = json.Marshal(x.V)
	case *OrderedMap:
		pairs := make([][2]any, 0, x.Len())
		for p := x.m.Oldest(); p != nil; p = p.Next() {
			pairs = append(pairs, [2]any{p.Key, p.Value})
		}
		out, err = envelope(KindMap, pairs)
	case *UniqueSet:
		items := x.items
		if items == nil {
			items = []any{}
		}
		out, err = envelope(KindSet, items)
	case Timestamp:
		out, err = envelope(KindDate, x.T.UTC().Format(time.RFC3339Nano))
	case nil:
		out = []byte("null")
	default:
		return "", fmt.Errorf("unsupported value kind %T", v)
	}
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", v.Kind(), err)
	}
	return string(out), nil
}

func envelope(k Kind, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(tagged{Type: k, Value: raw})
}

// DecodeValue reverses EncodeValue. Objects carrying a recognised "type"
// discriminant and a "value" field are rebuilt as their tagged case.
func DecodeValue(s string) (Value, error) {
	data := bytes.TrimSpace([]byte(s))
	if len(data) == 0 {
		return nil, errors.New("decode value: empty input")
	}

	switch data[0] {
	case '{':
		var env tagged
		if err := json.Unmarshal(data, &env); err == nil && env.Value != nil {
			switch env.Type {
			case KindMap:
				return decodeMap(env.Value)
			case KindSet:
				return decodeSet(env.Value)
			case KindDate:
				return decodeDate(env.Value)
			}
		}
		fallthrough
	case '[':
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("decode composite: %w", err)
		}
		return Composite{V: generic}, nil
	default:
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("decode scalar: %w", err)
		}
		return Scalar{V: generic}, nil
	}
}

func decodeMap(raw json.RawMessage) (Value, error) {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	m := NewOrderedMap()
	for i, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("decode map: pair %d has %d elements", i, len(p))
		}
		var key string
		if err := json.Unmarshal(p[0], &key); err != nil {
			return nil, fmt.Errorf("decode map: key %d: %w", i, err)
		}
		var v any
		if err := json.Unmarshal(p[1], &v); err != nil {
			return nil, fmt.Errorf("decode map: value %q: %w", key, err)
		}
		m.Set(key, v)
	}
	return m, nil
}

func decodeSet(raw json.RawMessage) (Value, error) {
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode set: %w", err)
	}
	return NewUniqueSet(items...), nil
}

func decodeDate(raw json.RawMessage) (Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode date: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("decode date: %w", err)
	}
	return Timestamp{T: t}, nil
}
