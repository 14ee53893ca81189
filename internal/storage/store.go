// Package storage persists the publication store and the sync run ledger.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/labsite/pubsync/internal/publication"
)

// ErrUnreadableStore wraps any failure to read or decode the store file.
var ErrUnreadableStore = errors.New("unreadable store")

// Load reads the publication store. A missing file yields an empty document
// so a first run can create it.
func Load(path string) (*publication.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &publication.Document{}, nil
		}
		return nil, fmt.Errorf("%w: reading store: %w", ErrUnreadableStore, err)
	}

	var doc publication.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing store %s: %w", ErrUnreadableStore, path, err)
	}
	return &doc, nil
}

// Marshal encodes the document the way it is written to disk: two-space
// indentation, no HTML escaping, trailing newline.
func Marshal(doc *publication.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding store: %w", err)
	}
	return buf.Bytes(), nil
}

// Save replaces the store file atomically: the document is written to a
// temporary file in the same directory and renamed over the destination.
func Save(path string, doc *publication.Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, 0644)
}

// WriteFileAtomic writes data to a temporary sibling of path and renames it
// into place. The temporary file is removed on any failure.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("writing temp file: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(fmt.Errorf("setting permissions: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
