package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"kostBack/internal/export"
	"kostBack/internal/models"
	"kostBack/internal/services"
)

const (
	msgUpdated = "Product updated successfully"
	msgDeleted = "Product deleted successfully"
)

var listingValidate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ListingHandler struct {
	Service *services.ListingService
	Log     *logrus.Entry
	// StrictNotFound turns update/delete of a missing id into a 404.
	StrictNotFound bool
	UploadsPrefix  string
	PublicURL      string
}

type createResponse struct {
	ID int64 `json:"id"`
}

type changeResponse struct {
	Message  string `json:"message"`
	Affected int64  `json:"affected"`
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.Service.Intake.RequestLimit())

	fields, form, err := readListingFields(r)
	if err != nil {
		h.respondReadError(w, log, err)
		return
	}
	if !h.validFields(w, r, log, fields) {
		return
	}

	id, err := h.Service.Create(r.Context(), fields, form)
	if err != nil {
		respondError(w, log, http.StatusInternalServerError, createErrorMessage(err), err)
		return
	}

	log.WithField("listing_id", id).Info("listing created")
	respondJSON(w, http.StatusOK, createResponse{ID: id})
}

func (h *ListingHandler) GetListings(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	listings, err := h.Service.List(r.Context())
	if err != nil {
		respondError(w, log, http.StatusInternalServerError, dbErrorMessage(err, "failed to fetch products"), err)
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

func (h *ListingHandler) GetListingByID(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	id, err := idParam(r)
	if err != nil {
		respondError(w, log, http.StatusBadRequest, err.Error(), nil)
		return
	}

	listing, err := h.Service.Get(r.Context(), id)
	if errors.Is(err, models.ErrListingNotFound) {
		respondError(w, log, http.StatusNotFound, "product not found", nil)
		return
	}
	if err != nil {
		respondError(w, log, http.StatusInternalServerError, dbErrorMessage(err, "failed to fetch product"), err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	id, err := idParam(r)
	if err != nil {
		respondError(w, log, http.StatusBadRequest, err.Error(), nil)
		return
	}
	log = log.WithField("listing_id", id)

	r.Body = http.MaxBytesReader(w, r.Body, h.Service.Intake.RequestLimit())
	fields, _, err := readListingFields(r)
	if err != nil {
		h.respondReadError(w, log, err)
		return
	}
	if !h.validFields(w, r, log, fields) {
		return
	}

	err = h.Service.Update(r.Context(), id, fields)
	h.respondChange(w, log, err, msgUpdated, "failed to update product")
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	id, err := idParam(r)
	if err != nil {
		respondError(w, log, http.StatusBadRequest, err.Error(), nil)
		return
	}
	log = log.WithField("listing_id", id)

	err = h.Service.Delete(r.Context(), id)
	h.respondChange(w, log, err, msgDeleted, "failed to delete product")
}

// ExportListings streams every listing as an .xlsx workbook.
func (h *ListingHandler) ExportListings(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)
	listings, err := h.Service.List(r.Context())
	if err != nil {
		respondError(w, log, http.StatusInternalServerError, dbErrorMessage(err, "failed to fetch products"), err)
		return
	}

	base := h.imageBaseURL(r)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	if err := export.WriteListings(w, listings, func(name string) string { return base + name }); err != nil {
		// Headers are already out; all that is left is to log.
		log.WithError(err).Error("export listings")
	}
}

func (h *ListingHandler) respondChange(w http.ResponseWriter, log *logrus.Entry, err error, message, failure string) {
	switch {
	case err == nil:
		log.Info(message)
		respondJSON(w, http.StatusOK, changeResponse{Message: message, Affected: 1})
	case errors.Is(err, models.ErrListingNotFound):
		if h.StrictNotFound {
			respondError(w, log, http.StatusNotFound, "product not found", nil)
			return
		}
		respondJSON(w, http.StatusOK, changeResponse{Message: message, Affected: 0})
	default:
		respondError(w, log, http.StatusInternalServerError, dbErrorMessage(err, failure), err)
	}
}

func (h *ListingHandler) validFields(w http.ResponseWriter, r *http.Request, log *logrus.Entry, fields models.ListingFields) bool {
	err := listingValidate.StructCtx(r.Context(), fields)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		problems := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
		respondError(w, log, http.StatusBadRequest, "validation failed: "+strings.Join(problems, "; "), nil)
		return false
	}
	respondError(w, log, http.StatusBadRequest, "invalid request data", err)
	return false
}

// respondReadError maps body parsing failures. An oversized body is an
// intake failure; anything else is a malformed request.
func (h *ListingHandler) respondReadError(w http.ResponseWriter, log *logrus.Entry, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, log, http.StatusInternalServerError, models.ErrImageTooLarge.Error(), err)
		return
	}
	if errors.Is(err, models.ErrMalformedList) {
		respondError(w, log, http.StatusBadRequest, err.Error(), nil)
		return
	}
	respondError(w, log, http.StatusBadRequest, "invalid request body", err)
}

func (h *ListingHandler) imageBaseURL(r *http.Request) string {
	base := strings.TrimRight(h.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + strings.TrimRight(h.UploadsPrefix, "/") + "/"
}

func (h *ListingHandler) logger(r *http.Request) *logrus.Entry {
	log := h.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if id := RequestID(r.Context()); id != "" {
		log = log.WithField("request_id", id)
	}
	return log
}

// readListingFields accepts JSON, multipart and urlencoded bodies. The
// multipart form is returned so its files can be handed to the intake.
func readListingFields(r *http.Request) (models.ListingFields, *multipart.Form, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		var fields models.ListingFields
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return fields, nil, err
		}
		return fields, nil, nil
	}

	err := r.ParseMultipartForm(32 << 20)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		return models.ListingFields{}, nil, err
	}

	fields, err := listingFieldsFromForm(r.PostForm)
	if err != nil {
		return fields, nil, err
	}
	return fields, r.MultipartForm, nil
}

func createErrorMessage(err error) string {
	for _, known := range []error{models.ErrInvalidImage, models.ErrImageTooLarge, models.ErrTooManyImages, models.ErrUnexpectedField} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return dbErrorMessage(err, "failed to create product")
}
