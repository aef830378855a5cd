// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

// Package document implements a self-describing binary document format: a
// BSON-compatible subset supporting null, bool, int32, int64, double, UTF-8
// string, binary blobs and nested arrays/documents. It is the wire encoding
// underneath every Honk-RPC envelope.
package document

import "strconv"

// Kind identifies which of the supported value types a Document holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindDouble
	KindString
	KindBinary
	KindArray
	KindMap
)

// String returns a human-readable name for the kind, for logging and errors.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Pair is a single ordered key/value entry of a Document of kind KindMap.
type Pair struct {
	Key   string
	Value Document
}

// Document is a tagged value: exactly one of null, bool, int32, int64, double,
// string, binary, an ordered array of Documents, or an ordered map from string
// to Document. The zero Document is Null.
type Document struct {
	kind Kind

	b   bool
	i32 int32
	i64 int64
	f64 float64
	str string
	bin []byte

	// pairs backs both KindArray (Key is an unused, synthetic decimal index)
	// and KindMap (Key is the real, order-preserving map key).
	pairs []Pair
}

// Null returns a Document holding the null value.
func Null() Document { return Document{kind: KindNull} }

// Bool returns a Document wrapping a boolean.
func Bool(v bool) Document { return Document{kind: KindBool, b: v} }

// Int32 returns a Document wrapping a 32-bit signed integer.
func Int32(v int32) Document { return Document{kind: KindInt32, i32: v} }

// Int64 returns a Document wrapping a 64-bit signed integer.
func Int64(v int64) Document { return Document{kind: KindInt64, i64: v} }

// Double returns a Document wrapping an IEEE-754 double.
func Double(v float64) Document { return Document{kind: KindDouble, f64: v} }

// String returns a Document wrapping a UTF-8 string.
func String(v string) Document { return Document{kind: KindString, str: v} }

// Binary returns a Document wrapping an opaque byte blob. The slice is copied.
func Binary(v []byte) Document {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Document{kind: KindBinary, bin: cp}
}

// Array returns a Document holding an ordered array of Documents.
func Array(items ...Document) Document {
	pairs := make([]Pair, len(items))
	for i, item := range items {
		pairs[i] = Pair{Key: strconv.Itoa(i), Value: item}
	}
	return Document{kind: KindArray, pairs: pairs}
}

// NewPair constructs a single map entry.
func NewPair(key string, value Document) Pair {
	return Pair{Key: key, Value: value}
}

// Map returns a Document holding an ordered map from string to Document. The
// pairs are kept in the order given; callers must not pass duplicate keys.
func Map(pairs ...Pair) Document {
	cp := make([]Pair, len(pairs))
	copy(cp, pairs)
	return Document{kind: KindMap, pairs: cp}
}

// Kind reports which value this Document holds.
func (d Document) Kind() Kind { return d.kind }

// IsNull reports whether the Document holds the null value.
func (d Document) IsNull() bool { return d.kind == KindNull }

// Bool returns the wrapped boolean and true, or false, false if the kind
// doesn't match.
func (d Document) Bool() (bool, bool) {
	if d.kind != KindBool {
		return false, false
	}
	return d.b, true
}

// Int32 returns the wrapped int32 and true, or 0, false if the kind doesn't
// match.
func (d Document) Int32() (int32, bool) {
	if d.kind != KindInt32 {
		return 0, false
	}
	return d.i32, true
}

// Int64 returns the wrapped int64 and true, or 0, false if the kind doesn't
// match.
func (d Document) Int64() (int64, bool) {
	if d.kind != KindInt64 {
		return 0, false
	}
	return d.i64, true
}

// Double returns the wrapped float64 and true, or 0, false if the kind
// doesn't match.
func (d Document) Double() (float64, bool) {
	if d.kind != KindDouble {
		return 0, false
	}
	return d.f64, true
}

// Str returns the wrapped string and true, or "", false if the kind doesn't
// match.
func (d Document) Str() (string, bool) {
	if d.kind != KindString {
		return "", false
	}
	return d.str, true
}

// Binary returns the wrapped byte blob and true, or nil, false if the kind
// doesn't match. The returned slice is owned by the caller.
func (d Document) Binary() ([]byte, bool) {
	if d.kind != KindBinary {
		return nil, false
	}
	cp := make([]byte, len(d.bin))
	copy(cp, d.bin)
	return cp, true
}

// Array returns the ordered items of an array-kind Document.
func (d Document) Array() ([]Document, bool) {
	if d.kind != KindArray {
		return nil, false
	}
	items := make([]Document, len(d.pairs))
	for i, p := range d.pairs {
		items[i] = p.Value
	}
	return items, true
}

// Pairs returns the ordered key/value pairs of a map-kind Document.
func (d Document) Pairs() ([]Pair, bool) {
	if d.kind != KindMap {
		return nil, false
	}
	cp := make([]Pair, len(d.pairs))
	copy(cp, d.pairs)
	return cp, true
}

// Get looks up a key within a map-kind Document. It returns Null, false if
// the Document isn't a map or the key isn't present.
func (d Document) Get(key string) (Document, bool) {
	if d.kind != KindMap {
		return Null(), false
	}
	for _, p := range d.pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Null(), false
}

// Equal reports whether two Documents are structurally identical, including
// map key order. Used primarily by round-trip tests.
func (d Document) Equal(o Document) bool {
	if d.kind != o.kind {
		return false
	}
	switch d.kind {
	case KindNull:
		return true
	case KindBool:
		return d.b == o.b
	case KindInt32:
		return d.i32 == o.i32
	case KindInt64:
		return d.i64 == o.i64
	case KindDouble:
		return d.f64 == o.f64
	case KindString:
		return d.str == o.str
	case KindBinary:
		return bytesEqual(d.bin, o.bin)
	case KindArray, KindMap:
		if len(d.pairs) != len(o.pairs) {
			return false
		}
		for i := range d.pairs {
			if d.kind == KindMap && d.pairs[i].Key != o.pairs[i].Key {
				return false
			}
			if !d.pairs[i].Value.Equal(o.pairs[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
