// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package document

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// Wire tags, matching the BSON subset this codec implements.
const (
	tagDouble   byte = 0x01
	tagString   byte = 0x02
	tagDocument byte = 0x03
	tagArray    byte = 0x04
	tagBinary   byte = 0x05
	tagBool     byte = 0x08
	tagNull     byte = 0x0A
	tagInt32    byte = 0x10
	tagInt64    byte = 0x12
)

// MaxNestingDepth bounds how deeply arrays and documents may nest before the
// decoder gives up, per spec §4.1.
const MaxNestingDepth = 32

var (
	// ErrTruncated is returned when the buffer ends before a declared length
	// or field could be fully read.
	ErrTruncated = errors.New("document: truncated encoding")

	// ErrOverlong is returned when a declared length exceeds the decoder's
	// max_size bound, or doesn't match the bytes actually framed.
	ErrOverlong = errors.New("document: encoding exceeds size limit or is malformed")

	// ErrBadTag is returned when an unrecognized wire tag is encountered.
	ErrBadTag = errors.New("document: unknown wire tag")

	// ErrBadUTF8 is returned when a string field is not valid UTF-8.
	ErrBadUTF8 = errors.New("document: string is not valid utf-8")

	// ErrDuplicateKey is returned when a map contains the same key twice.
	ErrDuplicateKey = errors.New("document: duplicate map key")

	// ErrNestingLimit is returned when a document or array nests deeper than
	// MaxNestingDepth.
	ErrNestingLimit = errors.New("document: nesting limit exceeded")

	// ErrNotAMap is returned by Encode when asked to encode a top-level
	// Document that isn't a map; only maps are valid top-level documents.
	ErrNotAMap = errors.New("document: top-level document must be a map")
)

// Encode serializes doc, which must be of kind KindMap, into its canonical
// binary form. Encoding never emits an unsupported tag by construction.
func Encode(doc Document) ([]byte, error) {
	if doc.kind != KindMap {
		return nil, ErrNotAMap
	}
	var buf []byte
	buf = encodeContainer(buf, doc)
	return buf, nil
}

// encodeContainer appends the framed encoding of a KindMap or KindArray
// Document (length prefix, elements, terminator) to buf and returns it.
func encodeContainer(buf []byte, doc Document) []byte {
	start := len(buf)
	buf = append(buf, 0, 0, 0, 0) // placeholder length

	for _, p := range doc.pairs {
		buf = encodeElement(buf, p.Key, p.Value)
	}
	buf = append(buf, 0x00) // terminator

	binary.LittleEndian.PutUint32(buf[start:start+4], uint32(len(buf)-start))
	return buf
}

// encodeElement appends a single tagged, keyed element to buf.
func encodeElement(buf []byte, key string, v Document) []byte {
	buf = append(buf, tagFor(v.kind))
	buf = append(buf, key...)
	buf = append(buf, 0x00)

	switch v.kind {
	case KindNull:
		// No payload.
	case KindBool:
		if v.b {
			buf = append(buf, 0x01)
		} else {
			buf = append(buf, 0x00)
		}
	case KindInt32:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.i32))
		buf = append(buf, tmp[:]...)
	case KindInt64:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i64))
		buf = append(buf, tmp[:]...)
	case KindDouble:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.f64))
		buf = append(buf, tmp[:]...)
	case KindString:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.str)+1))
		buf = append(buf, tmp[:]...)
		buf = append(buf, v.str...)
		buf = append(buf, 0x00)
	case KindBinary:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.bin)))
		buf = append(buf, tmp[:]...)
		buf = append(buf, 0x00) // generic binary subtype
		buf = append(buf, v.bin...)
	case KindArray, KindMap:
		buf = encodeContainer(buf, v)
	}
	return buf
}

func tagFor(k Kind) byte {
	switch k {
	case KindDouble:
		return tagDouble
	case KindString:
		return tagString
	case KindMap:
		return tagDocument
	case KindArray:
		return tagArray
	case KindBinary:
		return tagBinary
	case KindBool:
		return tagBool
	case KindNull:
		return tagNull
	case KindInt32:
		return tagInt32
	case KindInt64:
		return tagInt64
	default:
		panic(fmt.Sprintf("document: unreachable kind %v", k))
	}
}

// Decode parses a single top-level document from data. maxSize bounds both
// the top-level and every nested document/array's declared length; decoding
// stops as soon as the declared top-level length is consumed, ignoring any
// trailing bytes in data.
func Decode(data []byte, maxSize int) (Document, error) {
	doc, consumed, err := decodeContainer(data, maxSize, 1, true)
	if err != nil {
		return Document{}, err
	}
	_ = consumed
	return doc, nil
}

// decodeContainer parses a single framed document or array (length prefix,
// elements, terminator) starting at data[0]. isMap selects duplicate-key
// enforcement and the resulting Kind.
func decodeContainer(data []byte, maxSize, depth int, isMap bool) (Document, int, error) {
	if depth > MaxNestingDepth {
		return Document{}, 0, ErrNestingLimit
	}
	if len(data) < 4 {
		return Document{}, 0, ErrTruncated
	}
	declared := int(binary.LittleEndian.Uint32(data[:4]))
	if declared < 5 {
		return Document{}, 0, ErrOverlong
	}
	if declared > maxSize {
		return Document{}, 0, ErrOverlong
	}
	if declared > len(data) {
		return Document{}, 0, ErrTruncated
	}
	if data[declared-1] != 0x00 {
		return Document{}, 0, ErrOverlong
	}
	body := data[4 : declared-1]

	pairs, err := decodeElements(body, maxSize, depth, isMap)
	if err != nil {
		return Document{}, 0, err
	}
	kind := KindArray
	if isMap {
		kind = KindMap
	}
	return Document{kind: kind, pairs: pairs}, declared, nil
}

// decodeElements parses the tag/key/value triples making up the body of a
// document or array.
func decodeElements(body []byte, maxSize, depth int, isMap bool) ([]Pair, error) {
	var pairs []Pair
	seen := make(map[string]bool)

	offset := 0
	for offset < len(body) {
		tag := body[offset]
		offset++

		nul := indexByte(body[offset:], 0x00)
		if nul < 0 {
			return nil, ErrTruncated
		}
		key := string(body[offset : offset+nul])
		offset += nul + 1

		value, consumed, err := decodeValue(tag, body[offset:], maxSize, depth)
		if err != nil {
			return nil, err
		}
		offset += consumed

		if isMap {
			if seen[key] {
				return nil, ErrDuplicateKey
			}
			seen[key] = true
		}
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	if offset != len(body) {
		return nil, ErrOverlong
	}
	return pairs, nil
}

// decodeValue parses a single value payload (everything after the tag and
// key) and reports how many bytes of rest it consumed.
func decodeValue(tag byte, rest []byte, maxSize, depth int) (Document, int, error) {
	switch tag {
	case tagNull:
		return Null(), 0, nil

	case tagBool:
		if len(rest) < 1 {
			return Document{}, 0, ErrTruncated
		}
		return Bool(rest[0] != 0x00), 1, nil

	case tagInt32:
		if len(rest) < 4 {
			return Document{}, 0, ErrTruncated
		}
		return Int32(int32(binary.LittleEndian.Uint32(rest[:4]))), 4, nil

	case tagInt64:
		if len(rest) < 8 {
			return Document{}, 0, ErrTruncated
		}
		return Int64(int64(binary.LittleEndian.Uint64(rest[:8]))), 8, nil

	case tagDouble:
		if len(rest) < 8 {
			return Document{}, 0, ErrTruncated
		}
		return Double(math.Float64frombits(binary.LittleEndian.Uint64(rest[:8]))), 8, nil

	case tagString:
		if len(rest) < 4 {
			return Document{}, 0, ErrTruncated
		}
		length := int(binary.LittleEndian.Uint32(rest[:4]))
		if length < 1 {
			return Document{}, 0, ErrOverlong
		}
		if 4+length > len(rest) {
			return Document{}, 0, ErrTruncated
		}
		if rest[4+length-1] != 0x00 {
			return Document{}, 0, ErrOverlong
		}
		raw := rest[4 : 4+length-1]
		if !utf8.Valid(raw) {
			return Document{}, 0, ErrBadUTF8
		}
		return String(string(raw)), 4 + length, nil

	case tagBinary:
		if len(rest) < 5 {
			return Document{}, 0, ErrTruncated
		}
		length := int(binary.LittleEndian.Uint32(rest[:4]))
		if 5+length > len(rest) {
			return Document{}, 0, ErrTruncated
		}
		return Binary(rest[5 : 5+length]), 5 + length, nil

	case tagDocument:
		doc, n, err := decodeContainer(rest, maxSize, depth+1, true)
		return doc, n, err

	case tagArray:
		doc, n, err := decodeContainer(rest, maxSize, depth+1, false)
		return doc, n, err

	default:
		return Document{}, 0, ErrBadTag
	}
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
