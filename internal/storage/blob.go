package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
)

var ErrBadKey = errors.New("invalid blob key")

// BlobStore holds exported artifacts under slash-separated keys.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	URL(key string) (string, error) // fs returns "file://..."
}

// PutJSON encodes v with two-space indentation and stores it under key.
// Non-ASCII text is written as-is.
func PutJSON(s BlobStore, key string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return s.Put(key, &buf)
}
