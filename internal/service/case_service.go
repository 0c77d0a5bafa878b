package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"case-console/internal/event"
	"case-console/internal/metrics"
	"case-console/internal/model"
	"case-console/internal/storage"
	"case-console/internal/util"
	"case-console/pkg/apierror"
)

const (
	maxTitleRunes       = 200
	maxLocationRunes    = 120
	maxDescriptionRunes = 4000
)

type caseStore interface {
	List(ctx context.Context) ([]model.Case, error)
	Create(ctx context.Context, c model.Case) (model.Case, error)
	Delete(ctx context.Context, id string) (model.Case, error)
	Reorder(ctx context.Context, ids []string) error
}

type CaseService struct {
	cases        caseStore
	images       storage.ImageStore
	bus          event.Bus
	allowedMIMEs map[string]struct{}
}

func NewCaseService(cases caseStore, images storage.ImageStore, allowedMIMEs []string, bus event.Bus) *CaseService {
	allowed := make(map[string]struct{}, len(allowedMIMEs))
	for _, mimeType := range allowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(mimeType))] = struct{}{}
	}

	return &CaseService{cases: cases, images: images, bus: bus, allowedMIMEs: allowed}
}

func (s *CaseService) List(ctx context.Context) ([]model.CaseRecord, error) {
	cases, err := s.cases.List(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]model.CaseRecord, 0, len(cases))
	for _, c := range cases {
		records = append(records, c.Record())
	}
	return records, nil
}

// Create validates the fields and the image, stores the image and appends a
// new case. The stored image is removed again if the row cannot be written.
func (s *CaseService) Create(ctx context.Context, actorID string, input model.CaseInput, imageData io.Reader) (model.CaseRecord, error) {
	record, err := s.create(ctx, actorID, input, imageData)
	metrics.RecordCaseMutation("create", err)
	return record, err
}

func (s *CaseService) create(ctx context.Context, actorID string, input model.CaseInput, imageData io.Reader) (model.CaseRecord, error) {
	title := util.SanitizeText(input.Title, maxTitleRunes, false)
	if title == "" {
		return model.CaseRecord{}, apierror.BadRequest("title is required", "title")
	}

	serviceType, ok := model.ParseServiceType(input.ServiceType)
	if !ok {
		return model.CaseRecord{}, apierror.BadRequest("unknown service type", input.ServiceType)
	}

	if imageData == nil {
		return model.CaseRecord{}, apierror.BadRequest("image is required", "image")
	}

	data, err := io.ReadAll(imageData)
	if err != nil {
		return model.CaseRecord{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return model.CaseRecord{}, apierror.BadRequest("image is empty", "image")
	}

	mimeType, err := s.validateImage(data)
	if err != nil {
		return model.CaseRecord{}, err
	}

	key := uuid.NewString() + util.ExtensionForImageMIME(mimeType)
	if _, err := s.images.Put(ctx, key, mimeType, bytes.NewReader(data)); err != nil {
		return model.CaseRecord{}, fmt.Errorf("store image: %w", err)
	}

	created, err := s.cases.Create(ctx, model.Case{
		ID:          uuid.NewString(),
		Title:       title,
		ServiceType: serviceType,
		ImageKey:    key,
		LocationTag: util.SanitizeText(input.LocationTag, maxLocationRunes, false),
		Description: util.SanitizeText(input.Description, maxDescriptionRunes, true),
	})
	if err != nil {
		if delErr := s.images.Delete(ctx, key); delErr != nil {
			slog.Warn("failed to remove orphaned image", "key", key, "error", delErr)
		}
		return model.CaseRecord{}, err
	}

	record := created.Record()
	s.bus.Publish(event.New(event.TypeCaseCreated, actorID, record))
	return record, nil
}

// validateImage sniffs the payload and decodes its header. The decoded
// format decides the stored content type.
func (s *CaseService) validateImage(data []byte) (string, error) {
	sniffed := util.DetectMIME(data)
	if !util.IsImageMIME(sniffed) && sniffed != "application/octet-stream" {
		return "", apierror.New("UNSUPPORTED_TYPE", "file is not an image", sniffed, http.StatusUnsupportedMediaType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", apierror.New("UNSUPPORTED_TYPE", "image could not be decoded", err.Error(), http.StatusUnsupportedMediaType)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", apierror.BadRequest("image has no pixels", "image")
	}

	mimeType := "image/" + format
	if _, ok := s.allowedMIMEs[mimeType]; !ok {
		return "", apierror.New("UNSUPPORTED_TYPE", "image type not allowed", mimeType, http.StatusUnsupportedMediaType)
	}

	return mimeType, nil
}

// Delete removes the case and then its image. A failure to remove the image
// is logged and does not fail the request.
func (s *CaseService) Delete(ctx context.Context, actorID string, id string) error {
	err := s.delete(ctx, actorID, id)
	metrics.RecordCaseMutation("delete", err)
	return err
}

func (s *CaseService) delete(ctx context.Context, actorID string, id string) error {
	if err := uuid.Validate(id); err != nil {
		return apierror.NotFound("case not found", id)
	}

	deleted, err := s.cases.Delete(ctx, id)
	if err != nil {
		return err
	}

	if deleted.ImageKey != "" {
		if err := s.images.Delete(ctx, deleted.ImageKey); err != nil {
			slog.Warn("failed to remove case image", "case_id", id, "key", deleted.ImageKey, "error", err)
		}
	}

	s.bus.Publish(event.New(event.TypeCaseDeleted, actorID, map[string]string{"id": id}))
	return nil
}

// Reorder persists ids as the complete display order.
func (s *CaseService) Reorder(ctx context.Context, actorID string, ids []string) error {
	err := s.reorder(ctx, actorID, ids)
	metrics.RecordCaseMutation("reorder", err)
	return err
}

func (s *CaseService) reorder(ctx context.Context, actorID string, ids []string) error {
	if ids == nil {
		return apierror.BadRequest("ids is required", "ids")
	}
	for _, id := range ids {
		if err := uuid.Validate(id); err != nil {
			return apierror.BadRequest("invalid case id", id)
		}
	}

	if err := s.cases.Reorder(ctx, ids); err != nil {
		return err
	}

	s.bus.Publish(event.New(event.TypeCaseReordered, actorID, map[string][]string{"ids": ids}))
	return nil
}

func (s *CaseService) OpenImage(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	return s.images.Open(ctx, key)
}
