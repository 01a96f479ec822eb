package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pdfvault/internal/http/middleware"
	"pdfvault/internal/model"
	"pdfvault/internal/service"
	serviceMocks "pdfvault/internal/service/mocks"
	"pdfvault/internal/validator"
)

var samplePDF = []byte("%PDF-1.4\n%%EOF\n")

func newApp(mockSvc *serviceMocks.MockDocumentService) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	RegisterRoutes(app, mockSvc)
	return app
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	h.Set("Content-Type", contentType)
	part, err := writer.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	return body
}

func TestHealthCheck(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp(mockSvc)

	t.Run("healthy", func(t *testing.T) {
		mockSvc.On("Ping", mock.Anything).Return(nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body healthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Status)
		assert.False(t, body.Timestamp.IsZero())
	})

	t.Run("unhealthy", func(t *testing.T) {
		mockSvc.On("Ping", mock.Anything).Return(errors.New("db error")).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, CodeUnavailable, decodeError(t, resp).Code)
	})
	mockSvc.AssertExpectations(t)
}

func TestLivenessProbe(t *testing.T) {
	app := newApp(new(serviceMocks.MockDocumentService))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp(mockSvc)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("all documents by default", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 0, 0).Return(&service.DocumentListResult{
			Items: []model.Document{
				{ID: 2, OriginalName: "b.pdf", StoredName: "secret-b.pdf", SizeBytes: 20, CreatedAt: created},
				{ID: 1, OriginalName: "a.pdf", StoredName: "secret-a.pdf", SizeBytes: 10, CreatedAt: created},
			},
			Total: 2,
		}, nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secret-")

		var body listResponse
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.True(t, body.Success)
		assert.Equal(t, 2, body.Total)
		require.Len(t, body.Documents, 2)
		assert.Equal(t, int64(2), body.Documents[0].ID)
		assert.Equal(t, "b.pdf", body.Documents[0].OriginalName)
	})

	t.Run("paged", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 10, 5).Return(&service.DocumentListResult{Items: []model.Document{}, Total: 3}, nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents?limit=10&offset=5", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents?limit=abc", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeInvalidLimit, decodeError(t, resp).Code)
	})

	t.Run("negative offset", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents?offset=-1", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeInvalidOffset, decodeError(t, resp).Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, 0, 0).Return(nil, &service.Error{Op: "list", Kind: service.ErrMetadata, Err: errors.New("db down")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, CodeInternal, body.Code)
		assert.NotContains(t, body.Error, "db down")
	})
	mockSvc.AssertExpectations(t)
}

func TestUploadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp(mockSvc)

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "report.pdf", "application/pdf", samplePDF)
		expected := &model.Document{ID: 1, OriginalName: "report.pdf", StoredName: "uuid.pdf", SizeBytes: int64(len(samplePDF))}
		mockSvc.On("Upload", mock.Anything, mock.Anything, "report.pdf", "application/pdf", int64(len(samplePDF))).
			Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result uploadResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.True(t, result.Success)
		require.NotNil(t, result.Document)
		assert.Equal(t, int64(1), result.Document.ID)
		assert.Empty(t, result.Document.StoredName)
	})

	t.Run("no file", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/documents/upload", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeFileRequired, decodeError(t, resp).Code)
	})

	t.Run("wrong field name", func(t *testing.T) {
		body, ct := multipartBody(t, "document", "report.pdf", "application/pdf", samplePDF)
		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, CodeFileRequired, decodeError(t, resp).Code)
	})

	t.Run("validation failure carries the reason", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "notes.txt", "text/plain", []byte("hello"))
		policy, err := validator.NewPolicy(0, []string{"application/pdf:.pdf"})
		require.NoError(t, err)
		rejection := policy.Validate("text/plain", ".txt", 5)
		mockSvc.On("Upload", mock.Anything, mock.Anything, "notes.txt", "text/plain", int64(5)).
			Return(nil, &service.Error{Op: "upload", Kind: service.ErrValidation, Err: rejection}).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, CodeValidationFailed, res.Code)
		assert.Contains(t, res.Error, "only PDF files are allowed")
		assert.NotEmpty(t, res.RequestID)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartBody(t, "file", "report.pdf", "application/pdf", samplePDF)
		mockSvc.On("Upload", mock.Anything, mock.Anything, "report.pdf", mock.Anything, mock.Anything).
			Return(nil, &service.Error{Op: "upload", Kind: service.ErrStorage, Err: errors.New("/var/uploads: disk full")}).Once()

		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, CodeInternal, res.Code)
		assert.NotContains(t, res.Error, "/var/uploads")
	})
	mockSvc.AssertExpectations(t)
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp(mockSvc)

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(42)).Return(&model.Document{ID: 42, OriginalName: "a.pdf"}, nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/42", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result documentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, int64(42), result.Document.ID)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Get", mock.Anything, int64(43)).Return(nil, &service.Error{Op: "get", ID: 43, Kind: service.ErrNotFound, Err: errors.New("no row")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/43", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeNotFound, decodeError(t, resp).Code)
	})

	for _, bad := range []string{"abc", "0", "-3", "1.5"} {
		t.Run("invalid id "+bad, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/"+bad, nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, CodeInvalidID, decodeError(t, resp).Code)
		})
	}
	mockSvc.AssertExpectations(t)
}

func TestDownloadDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp(mockSvc)

	t.Run("streams the file as an attachment", func(t *testing.T) {
		doc := &model.Document{ID: 7, OriginalName: "Annual Report.pdf", StoredName: "k.pdf", SizeBytes: int64(len(samplePDF))}
		mockSvc.On("Open", mock.Anything, int64(7)).Return(doc, io.NopCloser(bytes.NewReader(samplePDF)), nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/7/download", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Annual Report.pdf"`, resp.Header.Get("Content-Disposition"))

		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, samplePDF, got)
	})

	names := []struct {
		original string
		header   string
	}{
		{"report.pdf", `attachment; filename=report.pdf`},
		{"my report.pdf", `attachment; filename="my report.pdf"`},
		{`a "quoted" name.pdf`, `attachment; filename="a \"quoted\" name.pdf"`},
		{"résumé.pdf", `attachment; filename*=utf-8''r%C3%A9sum%C3%A9.pdf`},
	}
	for i, n := range names {
		t.Run("filename "+n.original, func(t *testing.T) {
			id := int64(100 + i)
			doc := &model.Document{ID: id, OriginalName: n.original, StoredName: "k.pdf", SizeBytes: int64(len(samplePDF))}
			mockSvc.On("Open", mock.Anything, id).Return(doc, io.NopCloser(bytes.NewReader(samplePDF)), nil).Once()

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/documents/%d/download", id), nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, n.header, resp.Header.Get("Content-Disposition"))

			_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
			require.NoError(t, err)
			assert.Equal(t, n.original, params["filename"])
		})
	}

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Open", mock.Anything, int64(8)).Return(nil, nil, &service.Error{Op: "open", ID: 8, Kind: service.ErrNotFound, Err: errors.New("no row")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/8/download", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeNotFound, decodeError(t, resp).Code)
	})

	t.Run("missing blob is an inconsistency", func(t *testing.T) {
		mockSvc.On("Open", mock.Anything, int64(9)).Return(nil, nil, &service.Error{Op: "open", ID: 9, Kind: service.ErrInconsistent, Err: errors.New("blob k.pdf: blob not found")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/documents/9/download", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, CodeStorageInconsistency, res.Code)
		assert.NotContains(t, res.Error, "k.pdf")
	})
	mockSvc.AssertExpectations(t)
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp(mockSvc)

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(3)).Return(nil).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/documents/3", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body messageResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Success)
	})

	t.Run("not found", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(4)).Return(&service.Error{Op: "delete", ID: 4, Kind: service.ErrNotFound, Err: errors.New("no row")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/documents/4", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeNotFound, decodeError(t, resp).Code)
	})

	t.Run("partial failure", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(5)).Return(&service.Error{Op: "delete", ID: 5, Kind: service.ErrPartialFailure, Err: errors.New("db fail")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/documents/5", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, CodePartialFailure, decodeError(t, resp).Code)
	})

	t.Run("storage error", func(t *testing.T) {
		mockSvc.On("Delete", mock.Anything, int64(6)).Return(&service.Error{Op: "delete", ID: 6, Kind: service.ErrStorage, Err: errors.New("io")}).Once()

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/documents/6", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, CodeInternal, decodeError(t, resp).Code)
	})
	mockSvc.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	app := newApp(new(serviceMocks.MockDocumentService))

	t.Run("not found route", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, CodeNotFound, decodeError(t, resp).Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, CodeMethodNotAllowed, decodeError(t, resp).Code)
	})
}

func TestWriteServiceError_Validation(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return writeServiceError(c, &service.Error{Op: "upload", Kind: service.ErrValidation, Err: service.ErrNameRequired})
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "file name is required", decodeError(t, resp).Error)
}
