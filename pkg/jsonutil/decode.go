package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// Decode parses the JSON-encoded data into a Value.
//
// The implementation is created on top of the JSON tokenizer available
// in "encoding/json".Decoder, which is what lets object members keep the
// order they had on the wire.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := (&decoder{tokenizer: dec}).decode()
	if err != nil {
		return nil, err
	}
	tok, err := dec.Token()
	switch err {
	case io.EOF:
		// Expect to get io.EOF. There shouldn't be any more
		// tokens left after we've decoded v successfully.
		return v, nil
	case nil:
		return nil, fmt.Errorf("invalid token '%v' after top-level value", tok)
	default:
		return nil, err
	}
}

// decoder builds a Value from a stream of JSON tokens.
type decoder struct {
	tokenizer interface {
		Token() (json.Token, error)
		More() bool
	}
}

// decode reads exactly one JSON value from the tokenizer.
func (d *decoder) decode() (Value, error) {
	tok, err := d.tokenizer.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch tok := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(tok), nil
	case json.Number:
		return Number(tok), nil
	case string:
		return String(tok), nil
	case json.Delim:
		switch tok {
		case '{':
			return d.decodeObject()
		case '[':
			return d.decodeArray()
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", tok)
		}
	default:
		return nil, fmt.Errorf("unexpected token %v of type %T", tok, tok)
	}
}

func (d *decoder) decodeObject() (Value, error) {
	m := Mapping{}
	for d.tokenizer.More() {
		tok, err := d.tokenizer.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v of type %T", tok, tok)
		}
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		m = append(m, Member{Key: key, Value: v})
	}
	if err := d.expectDelim('}'); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *decoder) decodeArray() (Value, error) {
	s := Sequence{}
	for d.tokenizer.More() {
		v, err := d.decode()
		if err != nil {
			return nil, err
		}
		s = append(s, v)
	}
	if err := d.expectDelim(']'); err != nil {
		return nil, err
	}
	return s, nil
}

func (d *decoder) expectDelim(want json.Delim) error {
	tok, err := d.tokenizer.Token()
	if err != nil {
		return err
	}
	if got, ok := tok.(json.Delim); !ok || got != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// FromAny converts an arbitrary Go value into a Value.
//
// Maps have no inherent order, so their keys are sorted. Floats that cannot be
// represented in JSON (NaN, ±Inf) become Null. Types that are not handled
// directly are round-tripped through encoding/json.
func FromAny(x any) Value {
	switch x := x.(type) {
	case nil:
		return Null{}
	case Value:
		return x
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case json.Number:
		return Number(x)
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case int:
		return Number(strconv.FormatInt(int64(x), 10))
	case int8:
		return Number(strconv.FormatInt(int64(x), 10))
	case int16:
		return Number(strconv.FormatInt(int64(x), 10))
	case int32:
		return Number(strconv.FormatInt(int64(x), 10))
	case int64:
		return Number(strconv.FormatInt(x, 10))
	case uint:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint8:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint16:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint32:
		return Number(strconv.FormatUint(uint64(x), 10))
	case uint64:
		return Number(strconv.FormatUint(x, 10))
	case []any:
		s := make(Sequence, len(x))
		for i, e := range x {
			s[i] = FromAny(e)
		}
		return s
	case []string:
		s := make(Sequence, len(x))
		for i, e := range x {
			s[i] = String(e)
		}
		return s
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := make(Mapping, len(keys))
		for i, k := range keys {
			m[i] = Member{Key: k, Value: FromAny(x[k])}
		}
		return m
	case json.RawMessage:
		v, err := Decode(x)
		if err != nil {
			return Null{}
		}
		return v
	}

	rv := reflect.ValueOf(x)
	if (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return Null{}
	}
	b, err := json.Marshal(x)
	if err != nil {
		return Null{}
	}
	v, err := Decode(b)
	if err != nil {
		return Null{}
	}
	return v
}

func fromFloat(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Null{}
	}
	return Number(strconv.FormatFloat(f, 'g', -1, 64))
}

// ToAny converts v into the plain Go representation produced by
// encoding/json with UseNumber: map[string]any, []any, json.Number, string,
// bool and nil.
func ToAny(v Value) any {
	switch v := v.(type) {
	case Bool:
		return bool(v)
	case Number:
		return json.Number(v)
	case String:
		return string(v)
	case Sequence:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = ToAny(e)
		}
		return out
	case Mapping:
		out := make(map[string]any, len(v))
		for _, member := range v {
			out[member.Key] = ToAny(member.Value)
		}
		return out
	}
	return nil
}

// Unmarshal decodes v into the Go value pointed to by out using
// encoding/json.
func Unmarshal(v Value, out any) error {
	b, err := Encode(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
