package handler

import (
	"context"
	"mime"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"pdfvault/internal/model"
	"pdfvault/internal/service"
)

const pdfContentType = "application/pdf"

type uploadResponse struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Document *model.Document `json:"document"`
}

type listResponse struct {
	Success   bool             `json:"success"`
	Documents []model.Document `json:"documents"`
	Total     int              `json:"total"`
}

type documentResponse struct {
	Success  bool            `json:"success"`
	Document *model.Document `json:"document"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// RegisterRoutes attaches the document API and health probes to app.
func RegisterRoutes(app *fiber.App, docSvc service.DocumentService) {
	app.Get("/healthz", LivenessProbe())

	api := app.Group("/api")
	api.Get("/health", HealthCheck(docSvc))

	docs := api.Group("/documents")
	docs.Post("/upload", UploadDocument(docSvc))
	docs.Get("/", ListDocuments(docSvc))
	docs.Get("/:id", GetDocument(docSvc))
	docs.Get("/:id/download", DownloadDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))
}

// HealthCheck godoc
// @Summary Readiness probe
// @Description Pings the metadata store and the blob store.
// @Tags health
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} errorPayload
// @Router /api/health [get]
func HealthCheck(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := docSvc.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, CodeUnavailable, "dependency unavailable")
		}
		return c.JSON(healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
	}
}

// LivenessProbe reports that the process is serving requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadDocument godoc
// @Summary Upload a PDF
// @Tags documents
// @Accept mpfd
// @Produce json
// @Param file formData file true "PDF file"
// @Success 201 {object} uploadResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/documents/upload [post]
func UploadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, CodeFileRequired, "no file uploaded")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, CodeFileRequired, "cannot read uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get(fiber.HeaderContentType)
		if ct == "" {
			ct = fiber.MIMEOctetStream
		}

		doc, err := docSvc.Upload(c.UserContext(), f, fh.Filename, ct, fh.Size)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(uploadResponse{
			Success:  true,
			Message:  "document uploaded successfully",
			Document: doc,
		})
	}
}

// ListDocuments godoc
// @Summary List documents, newest first
// @Tags documents
// @Produce json
// @Param limit query int false "page size, all when omitted"
// @Param offset query int false "rows to skip"
// @Success 200 {object} listResponse
// @Failure 400 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, ok := queryInt(c, "limit")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidLimit, "limit must be a non-negative integer")
		}
		offset, ok := queryInt(c, "offset")
		if !ok {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidOffset, "offset must be a non-negative integer")
		}

		res, err := docSvc.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(listResponse{Success: true, Documents: res.Items, Total: res.Total})
	}
}

// queryInt reads an optional non-negative integer query parameter. Absent means 0.
func queryInt(c *fiber.Ctx, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func paramID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetDocument godoc
// @Summary Get document metadata
// @Tags documents
// @Produce json
// @Param id path int true "document id"
// @Success 200 {object} documentResponse
// @Failure 400 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidID, "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(documentResponse{Success: true, Document: doc})
	}
}

// DownloadDocument godoc
// @Summary Download the stored PDF
// @Tags documents
// @Produce application/pdf
// @Param id path int true "document id"
// @Success 200 {file} binary
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/documents/{id}/download [get]
func DownloadDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidID, "invalid id format")
		}
		doc, rc, err := docSvc.Open(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}

		c.Set(fiber.HeaderContentDisposition, contentDisposition(doc.OriginalName))
		c.Set(fiber.HeaderContentType, pdfContentType)
		// fasthttp closes rc once the body is written.
		return c.SendStream(rc, int(doc.SizeBytes))
	}
}

// contentDisposition suggests name verbatim: quoted when ASCII, RFC 2231 encoded otherwise.
func contentDisposition(name string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": name}); v != "" {
		return v
	}
	return "attachment"
}

// DeleteDocument godoc
// @Summary Delete a document and its file
// @Tags documents
// @Produce json
// @Param id path int true "document id"
// @Success 200 {object} messageResponse
// @Failure 404 {object} errorPayload
// @Failure 500 {object} errorPayload
// @Router /api/documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := paramID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, CodeInvalidID, "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(messageResponse{Success: true, Message: "document deleted successfully"})
	}
}
