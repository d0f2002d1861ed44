package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/admin"
	"github.com/lasercare/clinic/internal/domain/patient"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/db"
	"github.com/lasercare/clinic/internal/platform/storage"
)

// PatientLookup is the part of the patient registry sessions depend on.
type PatientLookup interface {
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	GetZone(ctx context.Context, patientID, patientZoneID uuid.UUID) (*patient.Zone, error)
	ConsumeSession(ctx context.Context, patientZoneID uuid.UUID) error
}

// PractitionerLookup resolves the user performing a treatment.
type PractitionerLookup interface {
	GetPractitioner(ctx context.Context, id uuid.UUID) (*admin.User, error)
}

type Service struct {
	repo          Repository
	photos        PhotoRepository
	sideEffects   SideEffectRepository
	patients      PatientLookup
	practitioners PractitionerLookup
	store         storage.Store
	tx            db.TxRunner
	logger        zerolog.Logger
	maxPhotoBytes int64
	now           func() time.Time
}

func NewService(repo Repository, photos PhotoRepository, sideEffects SideEffectRepository,
	patients PatientLookup, practitioners PractitionerLookup, store storage.Store,
	tx db.TxRunner, logger zerolog.Logger, maxPhotoBytes int64) *Service {
	return &Service{
		repo:          repo,
		photos:        photos,
		sideEffects:   sideEffects,
		patients:      patients,
		practitioners: practitioners,
		store:         store,
		tx:            tx,
		logger:        logger,
		maxPhotoBytes: maxPhotoBytes,
		now:           time.Now,
	}
}

// staged tracks files written during a transaction so they can be undone
// when it rolls back.
type staged struct {
	undo []func(context.Context) error
}

func (st *staged) add(fn func(context.Context) error) {
	st.undo = append(st.undo, fn)
}

func (s *Service) revert(ctx context.Context, st *staged) {
	ctx = context.WithoutCancel(ctx)
	for i := len(st.undo) - 1; i >= 0; i-- {
		if err := st.undo[i](ctx); err != nil {
			s.logger.Warn().Err(err).Msg("photo cleanup failed")
		}
	}
}

type tempRef struct {
	id  uuid.UUID
	ext string
}

// parseTempName validates a staged photo name "<uuid><ext>".
func parseTempName(name string) (tempRef, error) {
	ext := storage.Ext(name)
	if !storage.PhotoExtensions[ext] || strings.ContainsAny(name, `/\`) {
		return tempRef{}, apperr.Validationf("invalid staged photo %q", name)
	}
	id, err := uuid.Parse(strings.TrimSuffix(name, name[len(name)-len(ext):]))
	if err != nil {
		return tempRef{}, apperr.Validationf("invalid staged photo %q", name)
	}
	return tempRef{id: id, ext: ext}, nil
}

// checkUploads validates every photo before anything is written.
func (s *Service) checkUploads(uploads []storage.Upload) ([]string, error) {
	exts := make([]string, len(uploads))
	for i, u := range uploads {
		ext, err := storage.CheckPhoto(u.Filename, u.Size, s.maxPhotoBytes)
		if err != nil {
			return nil, err
		}
		exts[i] = ext
	}
	return exts, nil
}

// putPhoto stores an upload under key and returns the photo row to insert.
func (s *Service) putPhoto(ctx context.Context, st *staged, key, ext string, u storage.Upload, owner uuid.UUID) (*Photo, error) {
	ct := storage.ContentTypeFor(ext, u.ContentType)
	n, err := storage.PutUpload(ctx, s.store, key, u, ct)
	if err != nil {
		return nil, err
	}
	st.add(func(ctx context.Context) error { return s.store.Delete(ctx, key) })
	return &Photo{OwnerID: owner, Filename: u.Filename, StorageKey: key, ContentType: &ct, SizeBytes: n}, nil
}

func validateParams(req *CreateRequest) error {
	req.TypeLaser = strings.TrimSpace(req.TypeLaser)
	if req.TypeLaser == "" {
		return apperr.Validation("type_laser is required")
	}
	if req.PatientID == uuid.Nil || req.PatientZoneID == uuid.Nil {
		return apperr.Validation("patient_id and patient_zone_id are required")
	}
	if req.DureeMinutes != nil && *req.DureeMinutes <= 0 {
		return apperr.Validation("duree_minutes must be positive")
	}
	for name, v := range map[string]*float64{
		"spot_size": req.SpotSize, "fluence": req.Fluence,
		"pulse_duration_ms": req.PulseDurationMs, "frequency_hz": req.FrequencyHz,
	} {
		if v != nil && *v < 0 {
			return apperr.Validationf("%s must not be negative", name)
		}
	}
	return nil
}

// Create records a treatment. The session row, its photos and the zone
// counter are committed together; a zone already at quota fails with
// QUOTA_EXCEEDED and nothing is kept.
func (s *Service) Create(ctx context.Context, req CreateRequest, uploads []storage.Upload, actor *auth.CurrentUser) (*Session, error) {
	if err := validateParams(&req); err != nil {
		return nil, err
	}
	praticienID := actor.ID
	if req.PraticienID != nil {
		praticienID = *req.PraticienID
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if _, err := s.practitioners.GetPractitioner(ctx, praticienID); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetZone(ctx, req.PatientID, req.PatientZoneID); err != nil {
		return nil, err
	}
	temps := make([]tempRef, 0, len(req.TempPhotos))
	for _, name := range req.TempPhotos {
		ref, err := parseTempName(name)
		if err != nil {
			return nil, err
		}
		temps = append(temps, ref)
	}
	exts, err := s.checkUploads(uploads)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:              uuid.New(),
		PatientID:       req.PatientID,
		PatientZoneID:   req.PatientZoneID,
		PraticienID:     praticienID,
		DateSeance:      s.now(),
		TypeLaser:       req.TypeLaser,
		Parametres:      req.Parametres,
		SpotSize:        req.SpotSize,
		Fluence:         req.Fluence,
		PulseDurationMs: req.PulseDurationMs,
		FrequencyHz:     req.FrequencyHz,
		Notes:           req.Notes,
		DureeMinutes:    req.DureeMinutes,
	}
	if req.DateSeance != nil {
		if req.DateSeance.After(sess.DateSeance) {
			return nil, apperr.Validation("date_seance cannot be in the future")
		}
		sess.DateSeance = *req.DateSeance
	}

	st := &staged{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, sess); err != nil {
			return err
		}
		if err := s.patients.ConsumeSession(ctx, sess.PatientZoneID); err != nil {
			return err
		}
		for _, ref := range temps {
			from := storage.TempPhotoKey(ref.id, ref.ext)
			to := storage.SessionPhotoKey(sess.ID, ref.ext)
			if err := s.store.Move(ctx, from, to); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					return apperr.NotFound(apperr.CodePhotoNotFound, "staged photo not found").
						WithDetails("photo", ref.id.String()+ref.ext)
				}
				return err
			}
			st.add(func(ctx context.Context) error { return s.store.Move(ctx, to, from) })
			ct := storage.ContentTypeFor(ref.ext, "")
			p := &Photo{OwnerID: sess.ID, Filename: ref.id.String() + ref.ext, StorageKey: to, ContentType: &ct}
			if err := s.photos.Add(ctx, p); err != nil {
				return err
			}
			sess.Photos = append(sess.Photos, p)
		}
		for i, u := range uploads {
			p, err := s.putPhoto(ctx, st, storage.SessionPhotoKey(sess.ID, exts[i]), exts[i], u, sess.ID)
			if err != nil {
				return err
			}
			if err := s.photos.Add(ctx, p); err != nil {
				return err
			}
			sess.Photos = append(sess.Photos, p)
		}
		return nil
	})
	if err != nil {
		s.revert(ctx, st)
		return nil, err
	}

	s.logger.Info().
		Str("session_id", sess.ID.String()).
		Str("patient_id", sess.PatientID.String()).
		Str("patient_zone_id", sess.PatientZoneID.String()).
		Int("photos", len(sess.Photos)).
		Msg("session recorded")
	return s.Get(ctx, sess.ID)
}

func (s *Service) attachPhotos(ctx context.Context, sessions ...*Session) error {
	if len(sessions) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(sessions))
	byID := make(map[uuid.UUID]*Session, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
		byID[sess.ID] = sess
		sess.Photos = []*Photo{}
	}
	photos, err := s.photos.ListBySessions(ctx, ids)
	if err != nil {
		return err
	}
	for _, p := range photos {
		if sess, ok := byID[p.OwnerID]; ok {
			sess.Photos = append(sess.Photos, p)
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachPhotos(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Session, int, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if err := s.attachPhotos(ctx, items...); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// UpdateNotes replaces the free-text notes, the only editable field.
func (s *Service) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Session, error) {
	if err := s.repo.UpdateNotes(ctx, id, strings.TrimSpace(notes)); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *Service) AddPhoto(ctx context.Context, sessionID uuid.UUID, u storage.Upload) (*Photo, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ext, err := storage.CheckPhoto(u.Filename, u.Size, s.maxPhotoBytes)
	if err != nil {
		return nil, err
	}
	st := &staged{}
	p, err := s.putPhoto(ctx, st, storage.SessionPhotoKey(sess.ID, ext), ext, u, sess.ID)
	if err != nil {
		return nil, err
	}
	if err := s.photos.Add(ctx, p); err != nil {
		s.revert(ctx, st)
		return nil, err
	}
	return p, nil
}

// UploadTemp stages a photo before its session exists.
func (s *Service) UploadTemp(ctx context.Context, u storage.Upload) (*TempPhoto, error) {
	ext, err := storage.CheckPhoto(u.Filename, u.Size, s.maxPhotoBytes)
	if err != nil {
		return nil, err
	}
	id := uuid.New()
	if _, err := storage.PutUpload(ctx, s.store, storage.TempPhotoKey(id, ext), u, storage.ContentTypeFor(ext, u.ContentType)); err != nil {
		return nil, err
	}
	return &TempPhoto{ID: id, Filename: id.String() + ext}, nil
}

// LastParams returns the laser settings of the latest session on a zone.
func (s *Service) LastParams(ctx context.Context, patientID, patientZoneID uuid.UUID) (*LastParams, error) {
	if _, err := s.patients.GetZone(ctx, patientID, patientZoneID); err != nil {
		return nil, err
	}
	last, err := s.repo.Last(ctx, patientID, patientZoneID)
	if err != nil {
		return nil, err
	}
	return &LastParams{
		SessionID:       last.ID,
		DateSeance:      last.DateSeance,
		TypeLaser:       last.TypeLaser,
		Parametres:      last.Parametres,
		SpotSize:        last.SpotSize,
		Fluence:         last.Fluence,
		PulseDurationMs: last.PulseDurationMs,
		FrequencyHz:     last.FrequencyHz,
		DureeMinutes:    last.DureeMinutes,
	}, nil
}

func (s *Service) open(ctx context.Context, p *Photo) (io.ReadCloser, *Photo, error) {
	rc, err := s.store.Open(ctx, p.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperr.NotFound(apperr.CodePhotoNotFound, "photo file missing").Wrap(err)
		}
		return nil, nil, err
	}
	return rc, p, nil
}

// OpenPhoto streams a session photo. The caller closes the reader.
func (s *Service) OpenPhoto(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Photo, error) {
	p, err := s.photos.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, p)
}

// OpenSideEffectPhoto streams a side effect photo. The caller closes the reader.
func (s *Service) OpenSideEffectPhoto(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Photo, error) {
	p, err := s.sideEffects.GetPhoto(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, p)
}

// -- Side effects --

func (s *Service) CreateSideEffect(ctx context.Context, sessionID uuid.UUID, req SideEffectRequest,
	uploads []storage.Upload, actor *auth.CurrentUser) (*SideEffect, error) {
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		return nil, apperr.Validation("description is required")
	}
	if req.Severity != nil && *req.Severity == "" {
		req.Severity = nil
	}
	if req.Severity != nil && !severities[*req.Severity] {
		return nil, apperr.Validationf("severity must be mild, moderate or severe, got %q", *req.Severity)
	}
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	pz, err := s.patients.GetZone(ctx, sess.PatientID, sess.PatientZoneID)
	if err != nil {
		return nil, err
	}
	exts, err := s.checkUploads(uploads)
	if err != nil {
		return nil, err
	}

	se := &SideEffect{
		ID:            uuid.New(),
		SessionID:     sess.ID,
		PatientZoneID: sess.PatientZoneID,
		ZoneID:        pz.ZoneID,
		ZoneNom:       sess.ZoneNom,
		DateSeance:    sess.DateSeance,
		Description:   req.Description,
		Severity:      req.Severity,
		Photos:        []*Photo{},
	}
	if actor != nil {
		se.CreatedBy = &actor.ID
	}
	st := &staged{}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sideEffects.Create(ctx, se); err != nil {
			return err
		}
		for i, u := range uploads {
			p, err := s.putPhoto(ctx, st, storage.SideEffectPhotoKey(sess.ID, exts[i]), exts[i], u, se.ID)
			if err != nil {
				return err
			}
			if err := s.sideEffects.AddPhoto(ctx, p); err != nil {
				return err
			}
			se.Photos = append(se.Photos, p)
		}
		return nil
	})
	if err != nil {
		s.revert(ctx, st)
		return nil, err
	}
	s.logger.Info().
		Str("side_effect_id", se.ID.String()).
		Str("session_id", sess.ID.String()).
		Msg("side effect reported")
	return se, nil
}

func (s *Service) ListSideEffects(ctx context.Context, patientID uuid.UUID) ([]*SideEffect, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	return s.sideEffects.ListByPatient(ctx, patientID)
}

// ZoneActivity returns, per treated zone, the date of the latest session.
func (s *Service) ZoneActivity(ctx context.Context, patientID uuid.UUID) ([]*ZoneActivity, error) {
	return s.repo.ZoneActivity(ctx, patientID)
}
