package documents

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/storage"
)

type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Service struct {
	repo     Repository
	patients PatientLookup
	store    storage.Store
	logger   zerolog.Logger
	maxBytes int64
}

func NewService(repo Repository, patients PatientLookup, store storage.Store, logger zerolog.Logger, maxBytes int64) *Service {
	return &Service{repo: repo, patients: patients, store: store, logger: logger, maxBytes: maxBytes}
}

// Upload stores each file under patient-documents/<patient_id>/ and records
// it. Every file is checked before anything is written; on failure the files
// already stored are removed.
func (s *Service) Upload(ctx context.Context, patientID uuid.UUID, uploads []storage.Upload,
	description *string, uploadedBy uuid.UUID) ([]*Document, error) {
	if len(uploads) == 0 {
		return nil, apperr.Validation("at least one file is required")
	}
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	exts := make([]string, len(uploads))
	for i, u := range uploads {
		ext, err := storage.CheckDocument(u.Filename, u.Size, s.maxBytes)
		if err != nil {
			return nil, err
		}
		exts[i] = ext
	}
	if description != nil && strings.TrimSpace(*description) == "" {
		description = nil
	}

	var stored []*Document
	for i, u := range uploads {
		d, err := s.put(ctx, patientID, u, exts[i], description, uploadedBy)
		if err != nil {
			for _, prev := range stored {
				s.remove(ctx, prev)
			}
			return nil, err
		}
		stored = append(stored, d)
	}
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Int("files", len(stored)).
		Msg("documents uploaded")
	return stored, nil
}

func (s *Service) put(ctx context.Context, patientID uuid.UUID, u storage.Upload, ext string,
	description *string, uploadedBy uuid.UUID) (*Document, error) {
	id := uuid.New()
	key := storage.DocumentKey(patientID, id, ext)
	ct := storage.ContentTypeFor(ext, u.ContentType)
	n, err := storage.PutUpload(ctx, s.store, key, u, ct)
	if err != nil {
		return nil, err
	}
	d := &Document{
		ID:          id,
		PatientID:   patientID,
		Filename:    u.Filename,
		StorageKey:  key,
		ContentType: &ct,
		SizeBytes:   n,
		Description: description,
		UploadedBy:  &uploadedBy,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Warn().Err(derr).Str("key", key).Msg("orphan document file")
		}
		return nil, err
	}
	return d, nil
}

func (s *Service) remove(ctx context.Context, d *Document) {
	if err := s.repo.Delete(ctx, d.ID); err != nil {
		s.logger.Warn().Err(err).Str("document_id", d.ID.String()).Msg("document rollback failed")
	}
	if err := s.store.Delete(ctx, d.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn().Err(err).Str("key", d.StorageKey).Msg("orphan document file")
	}
}

func (s *Service) List(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Document, int, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	return s.repo.GetByID(ctx, id)
}

// Open streams the stored file. The caller closes the reader.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, d.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperr.NotFound(apperr.CodeDocumentNotFound, "document file missing").Wrap(err)
		}
		return nil, nil, err
	}
	return rc, d, nil
}

// Delete removes the record, then the file. A file already gone is not an
// error.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, d.StorageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn().Err(err).Str("key", d.StorageKey).Msg("document file not removed")
	}
	s.logger.Info().Str("document_id", id.String()).Str("patient_id", d.PatientID.String()).Msg("document deleted")
	return nil
}
