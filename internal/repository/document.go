package repository

import (
	"context"

	"pdfvault/internal/model"
)

// DocumentRepository defines data access for document metadata.
// Each method is a single statement.
type DocumentRepository interface {
	// Create inserts a new document record. The database assigns ID; the caller sets CreatedAt.
	// Returns the stored document as read back from the database.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID, or ErrNotFound.
	FindByID(ctx context.Context, id int64) (*model.Document, error)

	// List returns documents newest first plus the total row count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Document], error)

	// Delete removes a document by ID. It returns ErrNotFound if no row was deleted.
	Delete(ctx context.Context, id int64) error

	// Ping checks the database connection.
	Ping(ctx context.Context) error
}

// PageQuery holds limit/offset pagination parameters. Limit <= 0 returns every row.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
