// Package jsonutil provides an ordered, closed representation of JSON values
// and functions for decoding GraphQL responses into it.
//
// A Value is exactly one of Null, Bool, Number, String, Sequence or Mapping.
// The set is closed: the interface carries an unexported method, so code that
// walks a Value can switch over these six types and know it has covered every
// case. Mapping keeps members in document order, which makes transformations
// over a Value order-preserving for both keys and elements.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Value is a JSON value.
type Value interface {
	json.Marshaler
	isValue()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number kept in its textual form so that integers of any
// size survive a decode/encode cycle unchanged.
type Number string

// String is a JSON string.
type String string

// Sequence is a JSON array.
type Sequence []Value

// Member is a single key/value pair of a Mapping.
type Member struct {
	Key   string
	Value Value
}

// Mapping is a JSON object. Members are kept in the order they were decoded
// or added.
type Mapping []Member

func (Null) isValue()     {}
func (Bool) isValue()     {}
func (Number) isValue()   {}
func (String) isValue()   {}
func (Sequence) isValue() {}
func (Mapping) isValue()  {}

// MarshalJSON implements json.Marshaler.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// MarshalJSON implements json.Marshaler.
func (b Bool) MarshalJSON() ([]byte, error) {
	return strconv.AppendBool(nil, bool(b)), nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n == "" {
		return []byte("0"), nil
	}
	if !json.Valid([]byte(n)) {
		return nil, &json.UnsupportedValueError{Str: string(n)}
	}
	return []byte(n), nil
}

// MarshalJSON implements json.Marshaler.
func (s String) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// MarshalJSON implements json.Marshaler.
func (s Sequence) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := marshalValue(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler. Keys are written in member order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, member := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(member.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		b, err := marshalValue(member.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalValue encodes v, treating a nil interface as null.
func marshalValue(v Value) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return v.MarshalJSON()
}

// Float64 returns the number as a float64.
func (n Number) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

// Int64 returns the number as an int64.
func (n Number) Int64() (int64, error) {
	return strconv.ParseInt(string(n), 10, 64)
}

// Get returns the value of the first member named key.
func (m Mapping) Get(key string) (Value, bool) {
	for _, member := range m {
		if member.Key == key {
			return member.Value, true
		}
	}
	return nil, false
}

// Keys returns the member keys in order.
func (m Mapping) Keys() []string {
	keys := make([]string, len(m))
	for i, member := range m {
		keys[i] = member.Key
	}
	return keys
}

// Set returns a mapping with key set to v. An existing member keeps its
// position; a new member is appended. The receiver is not modified.
func (m Mapping) Set(key string, v Value) Mapping {
	out := make(Mapping, len(m), len(m)+1)
	copy(out, m)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return out
		}
	}
	return append(out, Member{Key: key, Value: v})
}

// Delete returns a mapping without any member named key. The receiver is
// not modified.
func (m Mapping) Delete(key string) Mapping {
	out := make(Mapping, 0, len(m))
	for _, member := range m {
		if member.Key != key {
			out = append(out, member)
		}
	}
	return out
}

// Encode returns the JSON encoding of v.
func Encode(v Value) ([]byte, error) {
	return marshalValue(v)
}

// Equal reports whether a and b are deeply equal. Mapping members are
// compared in order.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Sequence:
		bv, ok := b.(Sequence)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Mapping:
		bv, ok := b.(Mapping)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}
