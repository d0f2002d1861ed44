package box

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/domain/admin"
	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// assignLockKey serializes box assignment changes.
const assignLockKey int64 = 0x626f78

// UserLookup resolves the user being assigned.
type UserLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*admin.User, error)
}

// Locker takes a transaction-scoped lock. It is a no-op outside Postgres.
type Locker func(ctx context.Context, key int64) error

type Service struct {
	repo        Repository
	assignments AssignmentRepository
	users       UserLookup
	tx          db.TxRunner
	lock        Locker
	logger      zerolog.Logger
}

func NewService(repo Repository, assignments AssignmentRepository, users UserLookup, tx db.TxRunner,
	lock Locker, logger zerolog.Logger) *Service {
	if lock == nil {
		lock = func(context.Context, int64) error { return nil }
	}
	return &Service{repo: repo, assignments: assignments, users: users, tx: tx, lock: lock, logger: logger}
}

func validate(b *Box) error {
	if b.Nom == "" {
		return apperr.Validation("nom is required")
	}
	if b.Numero <= 0 {
		return apperr.Validation("numero must be positive")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*Box, error) {
	b := &Box{Nom: strings.TrimSpace(req.Nom), Numero: req.Numero, IsActive: true}
	if err := validate(b); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Box, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]*Box, error) {
	return s.repo.List(ctx, includeInactive)
}

// Update edits a box. Deactivating a box releases its holder.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Box, error) {
	var out *Box
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Nom != nil {
			b.Nom = strings.TrimSpace(*req.Nom)
		}
		if req.Numero != nil {
			b.Numero = *req.Numero
		}
		if req.IsActive != nil {
			b.IsActive = *req.IsActive
		}
		if err := validate(b); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, b); err != nil {
			return err
		}
		if !b.IsActive && b.AssignedUserID != nil {
			if _, err := s.assignments.DeleteByUser(ctx, *b.AssignedUserID); err != nil {
				return err
			}
			b.AssignedUserID, b.AssignedUserName = nil, nil
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Assign pairs userID with boxID. Re-assigning the same pair is a no-op;
// a box held by someone else fails BOX_BUSY. Any box the user held before
// is released.
func (s *Service) Assign(ctx context.Context, boxID, userID uuid.UUID) (*Assignment, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Validation("user is inactive")
	}

	var out *Assignment
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.lock(ctx, assignLockKey); err != nil {
			return err
		}
		b, err := s.repo.GetByID(ctx, boxID)
		if err != nil {
			return err
		}
		if !b.IsActive {
			return apperr.InvalidState(apperr.CodeBoxInactive, "box is inactive")
		}
		current, err := s.assignments.ForBox(ctx, boxID)
		if err != nil {
			return err
		}
		if current != nil {
			if current.UserID == userID {
				out = current
				return nil
			}
			return apperr.Duplicate(apperr.CodeBoxBusy, "box is already assigned").
				WithDetails("user_id", current.UserID.String())
		}
		if _, err := s.assignments.DeleteByUser(ctx, userID); err != nil {
			return err
		}
		a := &Assignment{BoxID: b.ID, BoxNom: b.Nom, BoxNumero: b.Numero, UserID: userID,
			UserName: strings.TrimSpace(user.Prenom + " " + user.Nom)}
		if err := s.assignments.Create(ctx, a); err != nil {
			return err
		}
		out = a
		s.logger.Info().
			Str("box_id", boxID.String()).
			Str("user_id", userID.String()).
			Msg("box assigned")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Unassign releases the user's box. Releasing when nothing is held is not
// an error.
func (s *Service) Unassign(ctx context.Context, userID uuid.UUID) error {
	released, err := s.assignments.DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	if released {
		s.logger.Info().Str("user_id", userID.String()).Msg("box released")
	}
	return nil
}

// ForUser returns the user's current assignment, or nil.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) (*Assignment, error) {
	return s.assignments.ForUser(ctx, userID)
}

func (s *Service) Assignments(ctx context.Context) ([]*Assignment, error) {
	return s.assignments.List(ctx)
}
