// Package store is the shared document store the game runs on: a small
// key-document surface with merge writes, push subscriptions, and serialized
// atomic transactions. Two implementations exist, an in-memory store and a
// Postgres-backed one; both deliver change notifications in commit order.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNotFound = errors.New("document not found")

// Snapshot is one observed state of a single document. Exists is false when
// the document was deleted (or never created); Data is nil in that case.
type Snapshot struct {
	Path   string
	Data   json.RawMessage
	Exists bool
}

// CollectionSnapshot is the full membership of a collection at one commit.
type CollectionSnapshot struct {
	Path string
	Docs []Snapshot
}

// Unsubscribe cancels a subscription. After it returns no further callbacks
// are delivered.
type Unsubscribe func()

// Tx is the handle passed to RunAtomic closures. Reads observe prior writes
// made through the same handle. The closure must not touch the store outside
// the handle: it may be retried on contention, so it has to be free of side
// effects beyond its reads and writes.
type Tx interface {
	Get(path string) (json.RawMessage, error)
	Set(path string, v any) error
	Update(path string, fields map[string]any) error
}

type Store interface {
	// Get returns the document at path, or ErrNotFound.
	Get(ctx context.Context, path string) (json.RawMessage, error)
	// Set creates or replaces the document at path.
	Set(ctx context.Context, path string, v any) error
	// Update merge-writes the given top-level fields. Fails with ErrNotFound
	// if the document does not exist.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document; subscribers observe a removed snapshot.
	Delete(ctx context.Context, path string) error

	// SubscribeDoc delivers the current snapshot immediately and again after
	// every committed change to the document, in commit order.
	SubscribeDoc(path string, fn func(Snapshot)) Unsubscribe
	// SubscribeCollection does the same for every document directly under
	// path, delivering the whole collection each time any member changes.
	SubscribeCollection(path string, fn func(CollectionSnapshot)) Unsubscribe

	// RunAtomic executes fn against a transaction handle. Effects commit
	// all-or-nothing and serialize against other atomic operations.
	RunAtomic(ctx context.Context, fn func(tx Tx) error) error
}

// Encode marshals v for storage. Split out so both implementations and the
// transaction handles agree on one codec.
func Encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// MergeFields applies a top-level merge write to an encoded document.
func MergeFields(existing json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &doc); err != nil {
			return nil, err
		}
	}
	for k, v := range fields {
		enc, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		doc[k] = enc
	}
	return json.Marshal(doc)
}
