// Package revocation manages per-identity revocation bitmaps embedded as
// service entries on identity documents. Each bit position marks one issued
// credential as revoked when set.
package revocation

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// endpointPrefix is the data-URL prefix under which the compressed bitmap is
// embedded into a document service endpoint.
const endpointPrefix = "data:application/octet-stream;base64,"

// Bitmap is a growable bit sequence indexed from 0. The zero value is an
// empty bitmap with no revocations recorded.
type Bitmap struct {
	words []uint64
}

// NewBitmap returns an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{}
}

// Set marks position as revoked, growing the bitmap as needed. Setting an
// already-set bit is a no-op.
func (b *Bitmap) Set(position uint32) {
	word := int(position / 64)
	for len(b.words) <= word {
		b.words = append(b.words, 0)
	}
	b.words[word] |= 1 << (position % 64)
}

// IsSet reports whether position is marked revoked. Positions beyond the
// bitmap's current length are unset.
func (b *Bitmap) IsSet(position uint32) bool {
	word := int(position / 64)
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&(1<<(position%64)) != 0
}

// Encode serializes the bitmap into the service endpoint form: the raw
// little-endian words, zlib-compressed and base64-encoded behind a data-URL
// prefix.
func (b *Bitmap) Encode() (string, error) {
	raw := make([]byte, 8*len(b.words))
	for i, w := range b.words {
		for j := 0; j < 8; j++ {
			raw[8*i+j] = byte(w >> (8 * j))
		}
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("encode bitmap: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("encode bitmap: %w", err)
	}
	return endpointPrefix + base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeBitmap reverses Encode. An empty endpoint decodes to an empty
// bitmap.
func DecodeBitmap(endpoint string) (*Bitmap, error) {
	if endpoint == "" {
		return NewBitmap(), nil
	}
	if !strings.HasPrefix(endpoint, endpointPrefix) {
		return nil, fmt.Errorf("decode bitmap: unsupported endpoint format")
	}
	compressed, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(endpoint, endpointPrefix))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("decode bitmap: truncated payload")
	}
	b := NewBitmap()
	b.words = make([]uint64, len(raw)/8)
	for i := range b.words {
		var w uint64
		for j := 0; j < 8; j++ {
			w |= uint64(raw[8*i+j]) << (8 * j)
		}
		b.words[i] = w
	}
	return b, nil
}
