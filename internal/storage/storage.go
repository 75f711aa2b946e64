// Package storage defines the Storage interface — the contract any
// document store must satisfy to back the Student API.
//
// Handlers depend only on this interface. Two backends implement it:
// storage/mongo (a MongoDB collection) and storage/sqlite (JSON documents
// in a single SQLite table). Both run writes through package schema, so
// they accept and reject the same documents.
package storage

import (
	"context"

	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
)

// UpdateOptions control replace and selective-update writes. Both write
// paths honor them the same way.
type UpdateOptions struct {
	// ReturnUpdated returns the document as it is after the write.
	// When false, the document as it was before the write is returned.
	ReturnUpdated bool

	// Validate runs schema validation on the values being written.
	// Casting to the field types always happens.
	Validate bool
}

// Storage is the persistence contract.
//
// Ids are opaque strings assigned by the store. A malformed id yields an
// apperr.ErrInvalidID error; validation failures yield apperr.ErrValidation.
type Storage interface {
	// FindAll returns every student. Returns an empty slice, never nil.
	FindAll(ctx context.Context) ([]types.Student, error)

	// FindByID returns the student with the given id, or nil (and no error)
	// when nothing matches.
	FindByID(ctx context.Context, id string) (*types.Student, error)

	// Insert validates and stores a new student and returns it with its
	// assigned id. Any id already set on the argument is ignored.
	Insert(ctx context.Context, student types.Student) (types.Student, error)

	// ReplaceByID overwrites the whole document. Fields of the stored
	// document are not merged: the replacement is stored as given.
	// Returns apperr.ErrNotFound when the id matches nothing.
	ReplaceByID(ctx context.Context, id string, student types.Student, opts UpdateOptions) (types.Student, error)

	// UpdateByID applies a selective update: only the paths in spec change.
	// Returns apperr.ErrNotFound when the id matches nothing. An empty spec
	// writes nothing and returns the current document.
	UpdateByID(ctx context.Context, id string, spec update.Spec, opts UpdateOptions) (types.Student, error)

	// DeleteByID removes the document permanently. Deleting an id that
	// matches nothing is a zero-effect success.
	DeleteByID(ctx context.Context, id string) (types.DeleteResult, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
