// Package intake validates the photo parts of a listing submission and stores
// the accepted ones under generated names.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"kostBack/internal/models"
	"kostBack/internal/storage"
)

const (
	DefaultMaxFileBytes = 1000000
	// headroom for the text fields of a submission
	formOverheadBytes = 1 << 20
	saveAttempts      = 3
)

var DefaultAllowedTypes = []string{"jpeg", "jpg", "png", "gif"}

type Intake struct {
	Store        storage.ImageStore
	MaxFileBytes int64
	allowed      map[string]bool
	now          func() time.Time
}

func New(store storage.ImageStore, maxFileBytes int64, allowedTypes []string) *Intake {
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimPrefix(t, "."))] = true
	}
	return &Intake{Store: store, MaxFileBytes: maxFileBytes, allowed: allowed, now: time.Now}
}

// RequestLimit is the largest request body a submission may have.
func (in *Intake) RequestLimit() int64 {
	return int64(len(models.PhotoFields))*in.MaxFileBytes + formOverheadBytes
}

type acceptedPart struct {
	field  string
	header *multipart.FileHeader
}

// Accept checks every photo part first and writes nothing unless all of them
// pass. Fields without a file stay nil in the returned refs.
func (in *Intake) Accept(ctx context.Context, form *multipart.Form) (models.ImageRefs, error) {
	var refs models.ImageRefs
	if form == nil || len(form.File) == 0 {
		return refs, nil
	}

	parts, err := in.validate(form)
	if err != nil {
		return refs, err
	}

	var written []string
	for _, p := range parts {
		name, err := in.save(ctx, p)
		if err != nil {
			in.remove(ctx, written)
			return models.ImageRefs{}, err
		}
		written = append(written, name)
		refs.Set(p.field, name)
	}
	return refs, nil
}

func (in *Intake) validate(form *multipart.Form) ([]acceptedPart, error) {
	known := make(map[string]bool, len(models.PhotoFields))
	for _, f := range models.PhotoFields {
		known[f] = true
	}
	for field := range form.File {
		if !known[field] {
			return nil, fmt.Errorf("%w %q", models.ErrUnexpectedField, field)
		}
	}

	var parts []acceptedPart
	for _, field := range models.PhotoFields {
		headers := form.File[field]
		switch len(headers) {
		case 0:
			continue
		case 1:
		default:
			return nil, fmt.Errorf("%s: %w", field, models.ErrTooManyImages)
		}
		if err := in.check(headers[0]); err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		parts = append(parts, acceptedPart{field: field, header: headers[0]})
	}
	return parts, nil
}

// check requires both the extension and the declared media type to be allowed.
func (in *Intake) check(fh *multipart.FileHeader) error {
	if fh.Size > in.MaxFileBytes {
		return models.ErrImageTooLarge
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
	if !in.allowed[ext] {
		return models.ErrInvalidImage
	}

	mediaType, _, err := mime.ParseMediaType(fh.Header.Get("Content-Type"))
	if err != nil {
		return models.ErrInvalidImage
	}
	kind, sub, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" || !in.allowed[sub] {
		return models.ErrInvalidImage
	}
	return nil
}

func (in *Intake) save(ctx context.Context, p acceptedPart) (string, error) {
	contentType := p.header.Header.Get("Content-Type")
	ext := filepath.Ext(p.header.Filename)

	for attempt := 0; ; attempt++ {
		name := fmt.Sprintf("%s-%d%s", p.field, in.now().UnixNano(), ext)

		src, err := p.header.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", p.field, err)
		}
		err = in.Store.Save(ctx, name, src, contentType)
		src.Close()

		if err == nil {
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) || attempt+1 >= saveAttempts {
			return "", err
		}
	}
}

// Discard removes the files behind refs, used when the row they belong to
// could not be stored.
func (in *Intake) Discard(ctx context.Context, refs models.ImageRefs) error {
	return in.remove(ctx, refs.Names())
}

func (in *Intake) remove(ctx context.Context, names []string) error {
	var errs []error
	for _, name := range names {
		if err := in.Store.Remove(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
