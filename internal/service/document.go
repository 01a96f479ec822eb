package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pdfvault/internal/logging"
	"pdfvault/internal/metrics"
	"pdfvault/internal/model"
	"pdfvault/internal/repository"
	"pdfvault/internal/storage"
	"pdfvault/internal/validator"
)

const (
	opUpload = "upload"
	opList   = "list"
	opGet    = "get"
	opOpen   = "open"
	opDelete = "delete"
)

// DocumentListResult is the service-level DTO for listed documents.
type DocumentListResult struct {
	Items []model.Document `json:"documents"`
	Total int              `json:"total"`
}

// DocumentService is the document lifecycle: ingest, list, retrieve and remove.
// It keeps the blob store and the metadata store in step and reports every
// divergence it cannot repair as ErrInconsistent, ErrPartialFailure or ErrOrphanedBlob.
type DocumentService interface {
	// Upload validates and stores the content, then records its metadata.
	// If recording fails the stored blob is deleted again.
	// size is the declared length, or -1 when unknown.
	Upload(ctx context.Context, r io.Reader, originalName, contentType string, size int64) (*model.Document, error)

	// List returns documents newest first. limit <= 0 returns all of them.
	List(ctx context.Context, limit, offset int) (*DocumentListResult, error)

	// Get returns a single document record.
	Get(ctx context.Context, id int64) (*model.Document, error)

	// Open returns the record and a stream of the stored bytes. The caller closes the stream.
	Open(ctx context.Context, id int64) (*model.Document, io.ReadCloser, error)

	// Delete removes the blob, then the record.
	Delete(ctx context.Context, id int64) error

	// Ping checks both stores.
	Ping(ctx context.Context) error
}

// Option configures a documentService.
type Option func(*documentService)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(s *documentService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records operation outcomes and inconsistencies.
func WithMetrics(m *metrics.DocumentMetrics) Option {
	return func(s *documentService) { s.metrics = m }
}

// WithContentSniffing toggles magic-number detection on upload. On by default.
func WithContentSniffing(enabled bool) Option {
	return func(s *documentService) { s.sniff = enabled }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *documentService) { s.now = now }
}

type documentService struct {
	store   storage.Storage
	repo    repository.DocumentRepository
	policy  *validator.Policy
	sniff   bool
	logger  *log.Logger
	metrics *metrics.DocumentMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, policy *validator.Policy, opts ...Option) DocumentService {
	s := &documentService{
		store:  store,
		repo:   repo,
		policy: policy,
		sniff:  true,
		logger: logging.Discard(),
		tracer: otel.Tracer("pdfvault/internal/service"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "service")
	return s
}

// begin starts the span for op. The returned func records the outcome.
func (s *documentService) begin(ctx context.Context, op string, id int64) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "document."+op)
	if id != 0 {
		span.SetAttributes(attribute.Int64("document.id", id))
	}
	return ctx, func(err error) {
		res := result(err)
		span.SetAttributes(attribute.String("document.result", res))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, res)
		}
		span.End()
		s.metrics.Operation(op, res)
	}
}

func (s *documentService) Upload(ctx context.Context, r io.Reader, originalName, contentType string, size int64) (doc *model.Document, err error) {
	ctx, end := s.begin(ctx, opUpload, 0)
	defer func() { end(err) }()

	if r == nil {
		return nil, opError(opUpload, 0, ErrValidation, ErrReaderNil)
	}
	// The name is stored exactly as sent; only the extension check ignores padding.
	name := originalName
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, opError(opUpload, 0, ErrValidation, ErrNameRequired)
	}
	ext := strings.ToLower(filepath.Ext(trimmed))
	if err := s.policy.Validate(contentType, ext, size); err != nil {
		s.logger.Warn("upload_rejected", "original_name", name, "content_type", contentType, "size", size, "reason", err)
		return nil, opError(opUpload, 0, ErrValidation, err)
	}

	body := s.policy.LimitReader(r)
	if s.sniff {
		body, err = s.policy.SniffContent(body)
		if err != nil {
			if errors.Is(err, validator.ErrRejected) {
				s.logger.Warn("upload_rejected", "original_name", name, "reason", err)
				return nil, opError(opUpload, 0, ErrValidation, err)
			}
			s.logger.Error("blob_read_failed", "original_name", name, "error", err)
			return nil, opError(opUpload, 0, ErrStorage, err)
		}
	}

	info, err := s.store.Save(ctx, body, ext)
	if err != nil {
		if errors.Is(err, validator.ErrRejected) {
			s.logger.Warn("upload_rejected", "original_name", name, "reason", err)
			return nil, opError(opUpload, 0, ErrValidation, err)
		}
		s.logger.Error("blob_save_failed", "original_name", name, "error", err)
		return nil, opError(opUpload, 0, ErrStorage, err)
	}

	stored, err := s.repo.Create(ctx, &model.Document{
		OriginalName: name,
		StoredName:   info.Key,
		SizeBytes:    info.Size,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, s.rollbackBlob(ctx, info.Key, err)
	}

	s.logger.Info("document_uploaded", "document_id", stored.ID, "stored_name", stored.StoredName, "size", stored.SizeBytes)
	return stored, nil
}

// rollbackBlob removes the blob of a failed ingest. It runs detached from
// cancellation so a dropped client does not leave the blob behind.
func (s *documentService) rollbackBlob(ctx context.Context, key string, cause error) error {
	delErr := s.store.Delete(context.WithoutCancel(ctx), key)
	if delErr == nil || errors.Is(delErr, storage.ErrNotFound) {
		s.logger.Error("metadata_insert_failed", "stored_name", key, "error", cause, "rolled_back", true)
		return opError(opUpload, 0, ErrMetadata, fmt.Errorf("insert metadata: %w", cause))
	}

	s.logger.Error("orphaned_blob", "stored_name", key, "error", cause, "rollback_error", delErr)
	s.metrics.Inconsistency(metrics.KindOrphanedBlob)
	return opError(opUpload, 0, ErrMetadata, errors.Join(
		fmt.Errorf("insert metadata: %w", cause),
		fmt.Errorf("%w %s: rollback delete: %w", ErrOrphanedBlob, key, delErr),
	))
}

func (s *documentService) List(ctx context.Context, limit, offset int) (out *DocumentListResult, err error) {
	ctx, end := s.begin(ctx, opList, 0)
	defer func() { end(err) }()

	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("metadata_list_failed", "limit", limit, "offset", offset, "error", err)
		return nil, opError(opList, 0, ErrMetadata, err)
	}
	items := res.Items
	if items == nil {
		items = []model.Document{}
	}
	return &DocumentListResult{Items: items, Total: res.Total}, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (doc *model.Document, err error) {
	ctx, end := s.begin(ctx, opGet, id)
	defer func() { end(err) }()

	return s.find(ctx, opGet, id)
}

func (s *documentService) find(ctx context.Context, op string, id int64) (*model.Document, error) {
	if id <= 0 {
		return nil, opError(op, id, ErrNotFound, ErrInvalidID)
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, opError(op, id, ErrNotFound, err)
		}
		s.logger.Error("metadata_lookup_failed", "op", op, "document_id", id, "error", err)
		return nil, opError(op, id, ErrMetadata, err)
	}
	return doc, nil
}

func (s *documentService) Open(ctx context.Context, id int64) (doc *model.Document, rc io.ReadCloser, err error) {
	ctx, end := s.begin(ctx, opOpen, id)
	defer func() { end(err) }()

	doc, err = s.find(ctx, opOpen, id)
	if err != nil {
		return nil, nil, err
	}

	rc, info, err := s.store.Open(ctx, doc.StoredName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("missing_blob", "document_id", id, "stored_name", doc.StoredName)
			s.metrics.Inconsistency(metrics.KindMissingBlob)
			return nil, nil, opError(opOpen, id, ErrInconsistent, fmt.Errorf("blob %s: %w", doc.StoredName, err))
		}
		s.logger.Error("blob_open_failed", "document_id", id, "stored_name", doc.StoredName, "error", err)
		return nil, nil, opError(opOpen, id, ErrStorage, err)
	}
	if info.Size != doc.SizeBytes {
		_ = rc.Close()
		s.logger.Error("blob_size_mismatch", "document_id", id, "stored_name", doc.StoredName,
			"recorded", doc.SizeBytes, "actual", info.Size)
		s.metrics.Inconsistency(metrics.KindSizeMismatch)
		return nil, nil, opError(opOpen, id, ErrInconsistent,
			fmt.Errorf("blob %s is %d bytes, recorded %d", doc.StoredName, info.Size, doc.SizeBytes))
	}
	return doc, rc, nil
}

func (s *documentService) Delete(ctx context.Context, id int64) (err error) {
	ctx, end := s.begin(ctx, opDelete, id)
	defer func() { end(err) }()

	doc, err := s.find(ctx, opDelete, id)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, doc.StoredName); err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Error("blob_delete_failed", "document_id", id, "stored_name", doc.StoredName, "error", err)
			return opError(opDelete, id, ErrStorage, err)
		}
		s.logger.Warn("blob_already_missing", "document_id", id, "stored_name", doc.StoredName)
	}

	// The blob is gone; finish the record even if the client has left.
	if err := s.repo.Delete(context.WithoutCancel(ctx), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("record_already_deleted", "document_id", id, "stored_name", doc.StoredName)
			return opError(opDelete, id, ErrNotFound, err)
		}
		s.logger.Error("partial_delete", "document_id", id, "stored_name", doc.StoredName, "error", err)
		s.metrics.Inconsistency(metrics.KindPartialDelete)
		return opError(opDelete, id, ErrPartialFailure, err)
	}

	s.logger.Info("document_deleted", "document_id", id, "stored_name", doc.StoredName)
	return nil
}

func (s *documentService) Ping(ctx context.Context) error {
	return errors.Join(s.repo.Ping(ctx), s.store.Ping(ctx))
}
