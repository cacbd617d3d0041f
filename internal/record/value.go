// Package record models the loosely typed structured record returned by the
// extraction model.
//
// A Value is a tagged union over null, string, number, bool, list and map.
// Maps keep insertion order so a record renders in the order the model wrote
// it. Renderers never type-assert on interface{}; they switch on Kind and use
// the As* accessors, which report whether the value had the requested shape.
package record

import (
	"strings"
)

// Kind tags the active member of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "null"
	}
}

// Value is one node of a structured record. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	m    *Map
}

func Null() Value               { return Value{} }
func String(s string) Value     { return Value{kind: KindString, str: s} }
func Number(f float64) Value    { return Value{kind: KindNumber, num: f} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }

// MapValue wraps m. A nil map becomes an empty one.
func MapValue(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsScalar() bool { return v.kind == KindString || v.kind == KindNumber || v.kind == KindBool }

func (v Value) AsString() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) AsNumber() (float64, bool) {
	return v.num, v.kind == KindNumber
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsList() ([]Value, bool) {
	return v.list, v.kind == KindList
}

func (v Value) AsMap() (*Map, bool) {
	if v.kind != KindMap {
		return nil, false
	}
	return v.m, true
}

// IsEmpty reports null, empty or whitespace strings, and empty containers.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindList:
		return len(v.list) == 0
	case KindMap:
		return v.m.Len() == 0
	default:
		return false
	}
}

// HasMeaningfulData reports whether v holds at least one non-empty scalar
// anywhere beneath it.
func (v Value) HasMeaningfulData() bool {
	switch v.kind {
	case KindString:
		return strings.TrimSpace(v.str) != ""
	case KindNumber, KindBool:
		return true
	case KindList:
		for _, item := range v.list {
			if item.HasMeaningfulData() {
				return true
			}
		}
	case KindMap:
		for _, k := range v.m.keys {
			if v.m.vals[k].HasMeaningfulData() {
				return true
			}
		}
	}
	return false
}

var placeholderStrings = map[string]bool{"null": true, "none": true, "n/a": true}

// DataPoints counts populated leaves: numbers, booleans and strings that are
// neither blank nor a null placeholder.
func (v Value) DataPoints() int {
	switch v.kind {
	case KindString:
		s := strings.TrimSpace(v.str)
		if s == "" || placeholderStrings[strings.ToLower(s)] {
			return 0
		}
		return 1
	case KindNumber, KindBool:
		return 1
	case KindList:
		n := 0
		for _, item := range v.list {
			n += item.DataPoints()
		}
		return n
	case KindMap:
		n := 0
		for _, k := range v.m.keys {
			n += v.m.vals[k].DataPoints()
		}
		return n
	}
	return 0
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindList:
		items := make([]Value, len(v.list))
		for i, item := range v.list {
			items[i] = item.Clone()
		}
		return List(items...)
	case KindMap:
		return MapValue(v.m.Clone())
	}
	return v
}

// Map is an insertion-ordered string-keyed map of Values.
type Map struct {
	keys []string
	vals map[string]Value
}

func NewMap() *Map {
	return &Map{vals: make(map[string]Value)}
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Get(k string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.vals[k]
	return v, ok
}

// Set inserts or replaces k. Replacing keeps the original position.
func (m *Map) Set(k string, v Value) *Map {
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
	return m
}

func (m *Map) Delete(k string) {
	if _, ok := m.vals[k]; !ok {
		return
	}
	delete(m.vals, k)
	for i, existing := range m.keys {
		if existing == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *Map) Clone() *Map {
	out := NewMap()
	if m == nil {
		return out
	}
	for _, k := range m.keys {
		out.Set(k, m.vals[k].Clone())
	}
	return out
}

// DomainKeys returns every key except the metadata section.
func (m *Map) DomainKeys() []string {
	var out []string
	for _, k := range m.Keys() {
		if k != MetadataKey {
			out = append(out, k)
		}
	}
	return out
}
