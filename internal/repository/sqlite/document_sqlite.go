package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"pdfvault/internal/model"
	"pdfvault/internal/repository"
)

// DocumentSQLite is a SQLite implementation of repository.DocumentRepository.
// The documents table uses AUTOINCREMENT so deleted IDs are never handed out again.
type DocumentSQLite struct {
	db *sql.DB
}

// NewDocumentSQLite creates a new DocumentSQLite repository.
func NewDocumentSQLite(db *sql.DB) *DocumentSQLite {
	return &DocumentSQLite{db: db}
}

var _ repository.DocumentRepository = (*DocumentSQLite)(nil)

const selectColumns = `id, original_name, stored_name, size_bytes, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(s scanner) (*model.Document, error) {
	var d model.Document
	if err := s.Scan(&d.ID, &d.OriginalName, &d.StoredName, &d.SizeBytes, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// Create inserts a new document row and reads it back inside one transaction.
// The row is re-selected instead of using RETURNING so created_at keeps its DATETIME
// declared type and scans into time.Time.
func (r *DocumentSQLite) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const qInsert = `
		INSERT INTO documents (original_name, stored_name, size_bytes, created_at)
		VALUES (?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, qInsert,
		doc.OriginalName,
		doc.StoredName,
		doc.SizeBytes,
		doc.CreatedAt.UTC(),
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	const qSelect = `SELECT ` + selectColumns + ` FROM documents WHERE id = ?`
	out, err := scanDocument(tx.QueryRowContext(ctx, qSelect, id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID fetches a single document by its ID.
func (r *DocumentSQLite) FindByID(ctx context.Context, id int64) (*model.Document, error) {
	const q = `SELECT ` + selectColumns + ` FROM documents WHERE id = ?`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

// List returns documents newest first. SQLite treats a negative LIMIT as unbounded.
func (r *DocumentSQLite) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	const qCount = `SELECT COUNT(*) FROM documents`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	limit := pq.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(pq.Offset, 0)

	const qList = `SELECT ` + selectColumns + ` FROM documents
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, qList, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{Items: items, Total: total}, nil
}

// Delete removes a document by ID and reports ErrNotFound when nothing was deleted.
func (r *DocumentSQLite) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ping checks the database connection.
func (r *DocumentSQLite) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
