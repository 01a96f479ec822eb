// Package validator is the intake gate for uploads. Every check here runs
// before a single byte reaches the blob store.
package validator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the upload limit used when none is configured (10 MiB).
const DefaultMaxBytes int64 = 10 << 20

// sniffLen is how much of the stream is inspected for magic numbers.
const sniffLen = 3072

var (
	// ErrRejected matches every validation failure.
	ErrRejected = errors.New("upload rejected")
	// ErrTooLarge marks rejections caused by the size limit.
	ErrTooLarge = errors.New("file too large")
)

// RejectedError carries a client-safe reason for a rejected upload.
type RejectedError struct {
	Reason string
	cause  error
}

func (e *RejectedError) Error() string { return e.Reason }

// Is reports ErrRejected for every RejectedError.
func (e *RejectedError) Is(target error) bool { return target == ErrRejected }

func (e *RejectedError) Unwrap() error { return e.cause }

func reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// Policy is the allow-list and size limit applied to uploads.
type Policy struct {
	maxBytes int64
	allowed  map[string]string // mime type -> extension
}

// NewPolicy builds a policy from entries of the form "application/pdf:.pdf".
func NewPolicy(maxBytes int64, allowedTypes []string) (*Policy, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	p := &Policy{maxBytes: maxBytes, allowed: make(map[string]string, len(allowedTypes))}
	for _, entry := range allowedTypes {
		mt, ext, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || mt == "" || !strings.HasPrefix(ext, ".") {
			return nil, fmt.Errorf("invalid allowed type %q: want mime:.ext", entry)
		}
		p.allowed[strings.ToLower(mt)] = strings.ToLower(ext)
	}
	if len(p.allowed) == 0 {
		return nil, errors.New("at least one allowed type is required")
	}
	return p, nil
}

// MaxBytes returns the configured upload limit.
func (p *Policy) MaxBytes() int64 { return p.maxBytes }

// Validate checks the declared MIME type, file extension and size.
// A negative size means the length is unknown; LimitReader enforces the bound then.
func (p *Policy) Validate(mimeType, ext string, size int64) error {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return reject("unsupported content type %q", mimeType)
	}
	wantExt, ok := p.allowed[mt]
	if !ok {
		return reject("only PDF files are allowed, got content type %q", mt)
	}
	if !strings.EqualFold(ext, wantExt) {
		return reject("file extension %q does not match content type %q", ext, mt)
	}
	if size > p.maxBytes {
		return p.tooLarge()
	}
	return nil
}

func (p *Policy) tooLarge() error {
	return &RejectedError{
		Reason: fmt.Sprintf("file exceeds maximum size of %s", humanize.IBytes(uint64(p.maxBytes))),
		cause:  ErrTooLarge,
	}
}

// LimitReader returns a reader that fails with a size rejection as soon as r
// yields more than the policy limit.
func (p *Policy) LimitReader(r io.Reader) io.Reader {
	return &limitReader{r: r, remaining: p.maxBytes, err: p.tooLarge()}
}

type limitReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
	err       error
}

func (l *limitReader) Read(b []byte) (int, error) {
	if l.exceeded {
		return 0, l.err
	}
	// Read one byte past the limit so overflow is detected without a second call.
	if int64(len(b)) > l.remaining+1 {
		b = b[:l.remaining+1]
	}
	n, err := l.r.Read(b)
	if int64(n) > l.remaining {
		n = int(l.remaining)
		l.remaining = 0
		l.exceeded = true
		return n, l.err
	}
	l.remaining -= int64(n)
	return n, err
}

// SniffContent inspects the head of r and rejects content whose detected type
// is not allow-listed. The returned reader replays the inspected bytes.
func (p *Policy) SniffContent(r io.Reader) (io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read content head: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	for mt := range p.allowed {
		if detected.Is(mt) {
			return io.MultiReader(bytes.NewReader(head), r), nil
		}
	}
	return nil, reject("file content is %s, not a PDF document", detected.String())
}
