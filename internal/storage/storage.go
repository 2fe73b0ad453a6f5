// Package storage keeps submitted files in a key-value blob store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// ErrObjectNotFound is returned when a location does not resolve to a stored file.
var ErrObjectNotFound = errors.New("stored object not found")

// Object is a retrieved file.
type Object struct {
	Body        io.ReadCloser
	FileName    string
	ContentType string
}

// BlobStore stores byte streams and hands back an opaque location.
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64) (string, error)
	Get(ctx context.Context, location string) (Object, error)
}

const sniffLen = 3072

type readCloser struct {
	io.Reader
	io.Closer
}

// sniff detects the content type from the head of body without consuming it.
func sniff(body io.ReadCloser) (io.ReadCloser, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		body.Close()
		return nil, "", err
	}
	head = head[:n]

	contentType := mimetype.Detect(head).String()
	return readCloser{Reader: io.MultiReader(bytes.NewReader(head), body), Closer: body}, contentType, nil
}
