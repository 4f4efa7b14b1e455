// Package docstore defines the document database contract the rest of the
// application is written against: path-addressed collections of JSON-shaped
// documents, filtered and ordered queries, atomic transactions and live
// queries that push a full snapshot after every committed change.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrAborted  = errors.New("transaction aborted")
	ErrClosed   = errors.New("store closed")
)

// Fields is the JSON-shaped content of a document.
type Fields map[string]any

type Document struct {
	Collection string
	ID         string
	Fields     Fields
	CreateTime time.Time
	UpdateTime time.Time
}

// DataTo decodes the document fields into v using json tags.
func (d Document) DataTo(v any) error {
	b, err := json.Marshal(d.Fields)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", d.Collection, d.ID, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Value returns the field at a dotted path, or nil.
func (d Document) Value(path string) any {
	return fieldValue(d, path)
}

// FieldsOf encodes a struct into Fields using its json tags. The key "id" is
// dropped; a document's id lives in its path, not its content.
func FieldsOf(v any) (Fields, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("encoding fields: %w", err)
	}
	delete(f, "id")
	return f, nil
}

// Snapshot is one delivery of a live query: the full ordered result set at a
// point in time. Err is set, and Documents is nil, while the backing store
// cannot be reached; the next good snapshot implies recovery.
type Snapshot struct {
	Documents []Document
	ReadTime  time.Time
	Err       error
}

type CancelFunc func()

// Handle is the read/write surface shared by a Store and the transaction
// handle passed to Transact callbacks.
type Handle interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Create stores fields under a generated id and returns it.
	Create(ctx context.Context, collection string, fields Fields) (string, error)
	// Set overwrites the document, or merges top-level keys with Merge().
	Set(ctx context.Context, collection, id string, fields Fields, opts ...SetOption) error
	// Update merges into an existing document; ErrNotFound when absent.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes the document. Deleting an absent document succeeds.
	Delete(ctx context.Context, collection, id string) error
}

type Store interface {
	Handle
	// Subscribe delivers the initial result set and then a fresh snapshot
	// after every committed change to the collection, until the returned
	// CancelFunc is called or ctx is done. Snapshots are coalesced per
	// subscriber: a slow callback only ever sees the latest state.
	Subscribe(ctx context.Context, q Query, fn func(Snapshot)) (CancelFunc, error)
	// Transact runs fn and commits all of its writes atomically, or none of
	// them when fn returns an error.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Handle) error) error
	Close() error
}

type setOptions struct {
	merge bool
}

type SetOption func(*setOptions)

// Merge makes Set merge top-level keys into an existing document instead of
// replacing it.
func Merge() SetOption {
	return func(o *setOptions) { o.merge = true }
}

// IsMerge reports whether opts request a merge write.
func IsMerge(opts []SetOption) bool {
	var o setOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o.merge
}

// ValidatePath rejects empty or malformed collection paths and ids.
func ValidatePath(collection, id string) error {
	if collection == "" || strings.HasPrefix(collection, "/") || strings.HasSuffix(collection, "/") {
		return fmt.Errorf("invalid collection %q", collection)
	}
	if strings.Count(collection, "/")%2 != 0 {
		return fmt.Errorf("invalid collection %q: odd path depth", collection)
	}
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// MergeFields applies a merge-write of patch onto base and returns the result.
func MergeFields(base, patch Fields) Fields {
	out := make(Fields, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
