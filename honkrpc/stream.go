// gosling - Tor onion service authentication and endpoint bootstrap
// Copyright (c) 2026 The Gosling Authors. All rights reserved.

package honkrpc

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pcwizz/gosling/document"
)

// readFrame reads one self-delimiting document off r: a document's own
// length prefix doubles as the stream's frame length, so framing needs
// nothing beyond what the codec already encodes.
func readFrame(r io.Reader, maxSize int) ([]byte, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	declared := int(binary.LittleEndian.Uint32(head[:]))
	if declared < 5 {
		return nil, fmt.Errorf("honkrpc: %w: frame length %d too small", ErrDecodeError, declared)
	}
	if declared > maxSize {
		return nil, fmt.Errorf("honkrpc: %w: frame length %d exceeds limit %d", ErrDecodeError, declared, maxSize)
	}
	buf := make([]byte, declared)
	copy(buf, head[:])
	if _, err := io.ReadFull(r, buf[4:]); err != nil {
		return nil, err
	}
	return buf, nil
}

// readEnvelope reads and decodes a single honk_rpc envelope from r.
func readEnvelope(r io.Reader, maxSize int) (document.Document, error) {
	buf, err := readFrame(r, maxSize)
	if err != nil {
		return document.Document{}, err
	}
	doc, err := document.Decode(buf, maxSize)
	if err != nil {
		return document.Document{}, fmt.Errorf("honkrpc: %w: %v", ErrDecodeError, err)
	}
	return doc, nil
}

// writeEnvelope encodes and writes a single honk_rpc envelope to w.
func writeEnvelope(w io.Writer, doc document.Document) error {
	buf, err := document.Encode(doc)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
