// Package store persists extracted policy documents. Two backends are
// provided: SQLite for single-node deployments and Postgres for shared
// ones. Both treat aiData and userUpdatedData as opaque JSON.
package store

import (
	"context"
	"time"

	"github.com/smartdoc/policyd/internal/model"
)

// ErrNotFound is returned by write operations targeting a document id
// that does not exist. Reads return (nil, nil) for missing documents.
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "document not found" }

// Store is the persistence interface for policy documents.
//
// ReplaceUserData is a single atomic replace: concurrent corrections to
// the same document race and the last writer wins. There is deliberately
// no field-level merge across writers.
type Store interface {
	InsertDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ReplaceUserData(ctx context.Context, id, ownerID string, data map[string]string, ts time.Time) error

	// ListDocuments returns all documents for an owner, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]model.Document, error)
	// ListSince returns an owner's documents with timestamp >= since, in
	// no guaranteed order. A zero since means no lower bound.
	ListSince(ctx context.Context, ownerID string, since time.Time) ([]model.Document, error)

	Migrate(ctx context.Context) error
	Close() error
}
