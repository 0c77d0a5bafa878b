package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"case-console/internal/middleware"
	"case-console/internal/model"
	"case-console/internal/storage"
	"case-console/pkg/apierror"
)

type caseService interface {
	List(ctx context.Context) ([]model.CaseRecord, error)
	Create(ctx context.Context, actorID string, input model.CaseInput, image io.Reader) (model.CaseRecord, error)
	Delete(ctx context.Context, actorID string, id string) error
	Reorder(ctx context.Context, actorID string, ids []string) error
	OpenImage(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

type CaseHandler struct {
	service       caseService
	maxUploadSize int64
}

func NewCaseHandler(service caseService, maxUploadSize int64) *CaseHandler {
	return &CaseHandler{service: service, maxUploadSize: maxUploadSize}
}

func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, records, &model.Meta{Total: len(records)})
}

func (h *CaseHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		if isPayloadTooLarge(err) {
			writeError(w, apierror.New("PAYLOAD_TOO_LARGE", "request body exceeds MAX_UPLOAD_SIZE", "MAX_UPLOAD_SIZE", http.StatusRequestEntityTooLarge))
			return
		}
		writeError(w, apierror.New("BAD_REQUEST", "invalid multipart body", err.Error(), http.StatusBadRequest))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	input := model.CaseInput{
		Title:       r.FormValue("title"),
		ServiceType: r.FormValue("service_type"),
		LocationTag: r.FormValue("location_tag"),
		Description: r.FormValue("description"),
	}

	var image io.Reader
	file, _, err := r.FormFile("image")
	switch {
	case err == nil:
		defer file.Close()
		image = file
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, apierror.New("BAD_REQUEST", "invalid image part", err.Error(), http.StatusBadRequest))
		return
	}

	record, err := h.service.Create(r.Context(), actorID(r), input, image)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, record, nil)
}

func (h *CaseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.DeleteCaseResponse{ID: id, Deleted: true}, nil)
}

func (h *CaseHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var payload model.ReorderRequest
	if !bind(w, r, &payload) {
		return
	}

	if err := h.service.Reorder(r.Context(), actorID(r), payload.IDs); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.ReorderResponse{IDs: payload.IDs}, nil)
}

// Image streams a stored case image. Keys never change once written, so
// responses are cacheable.
func (h *CaseHandler) Image(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	body, info, err := h.service.OpenImage(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	if info.ContentType != "" {
		w.Header().Set("Content-Type", info.ContentType)
	}

	if seeker, ok := body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, key, info.ModTime, seeker)
		return
	}

	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("image stream interrupted", "key", key, "error", err)
	}
}

func actorID(r *http.Request) string {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.UserID
}

func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return true
	}

	return errors.Is(err, multipart.ErrMessageTooLarge) ||
		strings.Contains(strings.ToLower(err.Error()), "request body too large")
}
