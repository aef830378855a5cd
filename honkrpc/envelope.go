// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package honkrpc

import (
	"fmt"

	"github.com/pcwizz/gosling/document"
)

// protocolVersion is the only honk_rpc envelope version this session speaks.
const protocolVersion = 1

// Section kinds, the "id" tag of a section document.
const (
	sectionError    int32 = 0
	sectionRequest  int32 = 1
	sectionResponse int32 = 2
)

// Response states, the "state" field of a response section.
const (
	statePending  int32 = 0
	stateComplete int32 = 1
	stateError    int32 = 2
)

// requestSection mirrors a single id=1 section.
type requestSection struct {
	cookie    int64
	namespace string
	function  string
	version   int32
	arguments document.Document
	cancel    bool
}

// responseSection mirrors a single id=2 section.
type responseSection struct {
	cookie    int64
	state     int32
	result    document.Document
	hasResult bool
	errorCode int32
	hasError  bool
	message   string
}

// errorSection mirrors a single id=0 session-fatal error section.
type errorSection struct {
	code    int32
	message string
}

// buildEnvelope wraps one or more sections into a top-level honk_rpc document.
func buildEnvelope(sections ...document.Document) document.Document {
	return document.Map(
		document.NewPair("honk_rpc", document.Int32(protocolVersion)),
		document.NewPair("sections", document.Array(sections...)),
	)
}

func buildRequestSection(r requestSection) document.Document {
	pairs := []document.Pair{
		document.NewPair("id", document.Int32(sectionRequest)),
		document.NewPair("cookie", document.Int64(r.cookie)),
		document.NewPair("namespace", document.String(r.namespace)),
		document.NewPair("function", document.String(r.function)),
		document.NewPair("version", document.Int32(r.version)),
		document.NewPair("arguments", r.arguments),
	}
	if r.cancel {
		pairs = append(pairs, document.NewPair("cancel", document.Bool(true)))
	}
	return document.Map(pairs...)
}

func buildResponseSection(r responseSection) document.Document {
	pairs := []document.Pair{
		document.NewPair("id", document.Int32(sectionResponse)),
		document.NewPair("cookie", document.Int64(r.cookie)),
		document.NewPair("state", document.Int32(r.state)),
	}
	if r.hasResult {
		pairs = append(pairs, document.NewPair("result", r.result))
	}
	if r.hasError {
		pairs = append(pairs, document.NewPair("error_code", document.Int32(r.errorCode)))
	}
	if r.message != "" {
		pairs = append(pairs, document.NewPair("message", document.String(r.message)))
	}
	return document.Map(pairs...)
}

func buildErrorSection(e errorSection) document.Document {
	pairs := []document.Pair{
		document.NewPair("id", document.Int32(sectionError)),
		document.NewPair("code", document.Int32(e.code)),
	}
	if e.message != "" {
		pairs = append(pairs, document.NewPair("message", document.String(e.message)))
	}
	return document.Map(pairs...)
}

// parseEnvelope validates the top-level honk_rpc/sections shape and returns
// the ordered list of raw section documents.
func parseEnvelope(doc document.Document) ([]document.Document, error) {
	version, ok := mustInt32(doc, "honk_rpc")
	if !ok {
		return nil, fmt.Errorf("honkrpc: %w: missing honk_rpc version", ErrDecodeError)
	}
	if version != protocolVersion {
		return nil, fmt.Errorf("honkrpc: %w: unsupported honk_rpc version %d", ErrDecodeError, version)
	}
	sectionsDoc, ok := doc.Get("sections")
	if !ok {
		return nil, fmt.Errorf("honkrpc: %w: missing sections", ErrDecodeError)
	}
	sections, ok := sectionsDoc.Array()
	if !ok {
		return nil, fmt.Errorf("honkrpc: %w: sections is not an array", ErrDecodeError)
	}
	return sections, nil
}

// sectionKind reports the "id" tag of a raw section document.
func sectionKind(sec document.Document) (int32, error) {
	id, ok := mustInt32(sec, "id")
	if !ok {
		return 0, fmt.Errorf("honkrpc: %w: section missing id", ErrDecodeError)
	}
	return id, nil
}

func parseRequestSection(sec document.Document) (requestSection, error) {
	var r requestSection
	var ok bool

	if r.cookie, ok = mustInt64(sec, "cookie"); !ok {
		return r, fmt.Errorf("honkrpc: %w: request missing cookie", ErrDecodeError)
	}
	ns, _ := sec.Get("namespace")
	r.namespace, _ = ns.Str()

	fn, ok := sec.Get("function")
	if !ok {
		return r, fmt.Errorf("honkrpc: %w: request missing function", ErrDecodeError)
	}
	if r.function, ok = fn.Str(); !ok {
		return r, fmt.Errorf("honkrpc: %w: function is not a string", ErrDecodeError)
	}
	if r.version, ok = mustInt32(sec, "version"); !ok {
		r.version = 0
	}
	if args, ok := sec.Get("arguments"); ok {
		r.arguments = args
	} else {
		r.arguments = document.Map()
	}
	if cancel, ok := sec.Get("cancel"); ok {
		r.cancel, _ = cancel.Bool()
	}
	return r, nil
}

func parseResponseSection(sec document.Document) (responseSection, error) {
	var r responseSection
	var ok bool

	if r.cookie, ok = mustInt64(sec, "cookie"); !ok {
		return r, fmt.Errorf("honkrpc: %w: response missing cookie", ErrDecodeError)
	}
	if r.state, ok = mustInt32(sec, "state"); !ok {
		return r, fmt.Errorf("honkrpc: %w: response missing state", ErrDecodeError)
	}
	if result, ok := sec.Get("result"); ok {
		r.result = result
		r.hasResult = true
	}
	if code, ok := mustInt32(sec, "error_code"); ok {
		r.errorCode = code
		r.hasError = true
	}
	if msg, ok := sec.Get("message"); ok {
		r.message, _ = msg.Str()
	}
	return r, nil
}

func parseErrorSection(sec document.Document) (errorSection, error) {
	var e errorSection
	var ok bool
	if e.code, ok = mustInt32(sec, "code"); !ok {
		return e, fmt.Errorf("honkrpc: %w: error section missing code", ErrDecodeError)
	}
	if msg, ok := sec.Get("message"); ok {
		e.message, _ = msg.Str()
	}
	return e, nil
}

func mustInt32(doc document.Document, key string) (int32, bool) {
	v, ok := doc.Get(key)
	if !ok {
		return 0, false
	}
	return v.Int32()
}

func mustInt64(doc document.Document, key string) (int64, bool) {
	v, ok := doc.Get(key)
	if !ok {
		return 0, false
	}
	return v.Int64()
}
