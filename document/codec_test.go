// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package document

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests that encoding then decoding a document of every supported kind
// reproduces the original structurally, per the decode(encode(d)) == d
// property.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	doc := Map(
		NewPair("n", Null()),
		NewPair("t", Bool(true)),
		NewPair("f", Bool(false)),
		NewPair("i32", Int32(-42)),
		NewPair("i64", Int64(1<<40)),
		NewPair("d", Double(3.25)),
		NewPair("s", String("hello, world")),
		NewPair("b", Binary([]byte{0x00, 0x01, 0xff})),
		NewPair("arr", Array(Int32(1), Int32(2), String("three"))),
		NewPair("nested", Map(NewPair("inner", Bool(true)))),
	)

	encoded, err := Encode(doc)
	require.NoError(t, err)

	decoded, err := Decode(encoded, len(encoded))
	require.NoError(t, err)
	require.True(t, doc.Equal(decoded))
}

// Tests that an empty map round-trips.
func TestEncodeDecodeEmptyMap(t *testing.T) {
	doc := Map()
	encoded, err := Encode(doc)
	require.NoError(t, err)

	decoded, err := Decode(encoded, len(encoded))
	require.NoError(t, err)
	require.True(t, doc.Equal(decoded))
}

// Tests that Encode rejects a non-map top-level document.
func TestEncodeRejectsNonMap(t *testing.T) {
	_, err := Encode(Array(Int32(1)))
	require.ErrorIs(t, err, ErrNotAMap)
}

// Tests that decoding succeeds exactly at the max_size boundary and fails
// one byte past it.
func TestDecodeMaxSizeBoundary(t *testing.T) {
	doc := Map(NewPair("x", Int32(7)))
	encoded, err := Encode(doc)
	require.NoError(t, err)

	_, err = Decode(encoded, len(encoded))
	require.NoError(t, err)

	_, err = Decode(encoded, len(encoded)-1)
	require.ErrorIs(t, err, ErrOverlong)
}

// Tests that a buffer shorter than its declared length is truncated, not
// overlong.
func TestDecodeTruncated(t *testing.T) {
	doc := Map(NewPair("x", String("some string value")))
	encoded, err := Encode(doc)
	require.NoError(t, err)

	_, err = Decode(encoded[:len(encoded)-3], len(encoded))
	require.ErrorIs(t, err, ErrTruncated)
}

// Tests that duplicate keys within a map are rejected.
func TestDecodeDuplicateMapKey(t *testing.T) {
	// Hand-construct since Map() itself doesn't forbid duplicates on the way
	// in; the decoder must reject them on the way out of the wire.
	doc := Document{kind: KindMap, pairs: []Pair{
		{Key: "a", Value: Int32(1)},
		{Key: "a", Value: Int32(2)},
	}}
	encoded := encodeContainer(nil, doc)

	_, err := Decode(encoded, len(encoded))
	require.ErrorIs(t, err, ErrDuplicateKey)
}

// Tests that duplicate keys are permitted within an array, since arrays use
// synthetic positional keys that are allowed to collide with the wire
// encoding's key bytes in principle; what matters is only maps reject dupes.
func TestDecodeArrayDoesNotEnforceUniqueKeys(t *testing.T) {
	doc := Document{kind: KindArray, pairs: []Pair{
		{Key: "0", Value: Int32(1)},
		{Key: "0", Value: Int32(2)},
		{Key: "0", Value: Int32(3)},
	}}
	encoded, err := Encode(Map(NewPair("items", doc)))
	require.NoError(t, err)

	decoded, err := Decode(encoded, len(encoded))
	require.NoError(t, err)

	items, ok := decoded.Get("items")
	require.True(t, ok)
	arr, ok := items.Array()
	require.True(t, ok)
	require.Len(t, arr, 3)
}

// Tests that a string containing invalid UTF-8 is rejected.
func TestDecodeBadUTF8(t *testing.T) {
	doc := Map(NewPair("s", String("ok")))
	encoded := encodeContainer(nil, doc)

	// Locate the string payload bytes "ok\x00" and corrupt the first byte to
	// an invalid UTF-8 continuation byte.
	for i := range encoded {
		if encoded[i] == 'o' && i+1 < len(encoded) && encoded[i+1] == 'k' {
			encoded[i] = 0xff
			break
		}
	}

	_, err := Decode(encoded, len(encoded))
	require.ErrorIs(t, err, ErrBadUTF8)
}

// Tests that an unrecognized wire tag is rejected.
func TestDecodeBadTag(t *testing.T) {
	doc := Map(NewPair("x", Int32(1)))
	encoded := encodeContainer(nil, doc)

	// The tag byte for element "x" sits right after the 4-byte length prefix.
	require.Equal(t, tagInt32, encoded[4])
	encoded[4] = 0x7f

	_, err := Decode(encoded, len(encoded))
	require.ErrorIs(t, err, ErrBadTag)
}

// Tests that nesting deeper than MaxNestingDepth is rejected.
func TestDecodeNestingLimit(t *testing.T) {
	doc := Null()
	for i := 0; i < MaxNestingDepth+2; i++ {
		doc = Map(NewPair("d", doc))
	}
	encoded := encodeContainer(nil, doc)

	_, err := Decode(encoded, len(encoded))
	require.ErrorIs(t, err, ErrNestingLimit)
}

// Tests that a document nested exactly at the limit still decodes.
func TestDecodeNestingAtLimitSucceeds(t *testing.T) {
	doc := Null()
	for i := 0; i < MaxNestingDepth-1; i++ {
		doc = Map(NewPair("d", doc))
	}
	encoded, err := Encode(doc)
	require.NoError(t, err)

	_, err = Decode(encoded, len(encoded))
	require.NoError(t, err)
}

// Tests that a corrupted terminator byte is caught as overlong rather than
// silently accepted.
func TestDecodeBadTerminator(t *testing.T) {
	doc := Map(NewPair("x", Int32(1)))
	encoded := encodeContainer(nil, doc)
	encoded[len(encoded)-1] = 0x01

	_, err := Decode(encoded, len(encoded))
	require.ErrorIs(t, err, ErrOverlong)
}
