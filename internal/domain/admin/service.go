package admin

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
	"github.com/lasercare/clinic/internal/platform/db"
)

type Service struct {
	roles  RoleRepository
	users  UserRepository
	tokens *auth.TokenIssuer
	tx     db.TxRunner
	logger zerolog.Logger
}

func NewService(roles RoleRepository, users UserRepository, tokens *auth.TokenIssuer, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{roles: roles, users: users, tokens: tokens, tx: tx, logger: logger}
}

// -- Authentication --

// Login checks credentials and issues a session token. Unknown users and
// wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperr.AuthInvalid("username and password are required")
	}
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.AuthInvalid("invalid credentials")
		}
		return nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, apperr.AuthInvalid("invalid credentials")
	}
	if !u.IsActive {
		return nil, apperr.AuthDisabled("account disabled")
	}
	cu := u.ToCurrentUser()
	token, err := s.tokens.Issue(cu)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", u.RoleName).Msg("user logged in")
	return &LoginResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.TTL().Seconds()),
		User:        cu,
	}, nil
}

// ResolveUser implements auth.UserResolver.
func (s *Service) ResolveUser(ctx context.Context, id uuid.UUID) (*auth.CurrentUser, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.ToCurrentUser(), nil
}

func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, req ChangePasswordRequest) error {
	if len(req.NewPassword) < minPasswordLen {
		return apperr.Validationf("new_password must be at least %d characters", minPasswordLen)
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, req.CurrentPassword) {
		return apperr.ValidationCode(apperr.CodeWrongPassword, "current password does not match")
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperr.Internal(err)
	}
	return s.users.UpdatePassword(ctx, userID, hash)
}

// -- Users --

func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if len(req.Password) < minPasswordLen {
		return nil, apperr.Validationf("password must be at least %d characters", minPasswordLen)
	}
	if req.RoleID == uuid.Nil {
		return nil, apperr.Validation("role_id is required")
	}
	role, err := s.roles.GetByID(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	u := &User{
		Username:     username,
		PasswordHash: hash,
		Nom:          strings.TrimSpace(req.Nom),
		Prenom:       strings.TrimSpace(req.Prenom),
		RoleID:       role.ID,
		RoleName:     role.Name,
		Permissions:  role.Permissions,
		IsActive:     true,
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// GetPractitioner loads a user acting as practitioner on a session.
func (s *Service) GetPractitioner(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound(apperr.CodePractitionerNotFound, "practitioner not found")
		}
		return nil, err
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// ListActiveUsers returns every active account, used for doctor matching.
func (s *Service) ListActiveUsers(ctx context.Context) ([]*User, error) {
	return s.users.ListActive(ctx)
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, req UpdateUserRequest) (*User, error) {
	var out *User
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if req.Nom != nil {
			u.Nom = strings.TrimSpace(*req.Nom)
		}
		if req.Prenom != nil {
			u.Prenom = strings.TrimSpace(*req.Prenom)
		}
		if req.IsActive != nil {
			u.IsActive = *req.IsActive
		}
		if req.RoleID != nil && *req.RoleID != u.RoleID {
			role, err := s.roles.GetByID(ctx, *req.RoleID)
			if err != nil {
				return err
			}
			u.RoleID, u.RoleName, u.Permissions = role.ID, role.Name, role.Permissions
		}
		if err := s.users.Update(ctx, u); err != nil {
			return err
		}
		if req.Password != nil {
			if len(*req.Password) < minPasswordLen {
				return apperr.Validationf("password must be at least %d characters", minPasswordLen)
			}
			hash, err := auth.HashPassword(*req.Password)
			if err != nil {
				return apperr.Internal(err)
			}
			if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	return out, err
}

// DeleteUser removes an account. Users cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, actorID, id uuid.UUID) error {
	if actorID == id {
		return apperr.ValidationCode(apperr.CodeSelfDelete, "cannot delete own account")
	}
	return s.users.Delete(ctx, id)
}

// -- Roles --

func (s *Service) ListRoles(ctx context.Context) ([]*Role, error) {
	return s.roles.List(ctx)
}

func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (*Role, error) {
	return s.roles.GetByID(ctx, id)
}

func validateRole(req RoleRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return apperr.Validation("name is required")
	}
	if unknown := auth.UnknownPermissions(req.Permissions); len(unknown) > 0 {
		return apperr.Validation("unknown permissions").WithDetails("permissions", unknown)
	}
	return nil
}

func (s *Service) CreateRole(ctx context.Context, req RoleRequest) (*Role, error) {
	if err := validateRole(req); err != nil {
		return nil, err
	}
	r := &Role{Name: strings.TrimSpace(req.Name), Permissions: dedupe(req.Permissions)}
	if err := s.roles.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) UpdateRole(ctx context.Context, id uuid.UUID, req RoleRequest) (*Role, error) {
	if err := validateRole(req); err != nil {
		return nil, err
	}
	r, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.IsSystem {
		return nil, apperr.InvalidState(apperr.CodeSystemRole, "system roles are read-only")
	}
	r.Name = strings.TrimSpace(req.Name)
	r.Permissions = dedupe(req.Permissions)
	if err := s.roles.Update(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// DeleteRole refuses system roles and roles still held by users.
func (s *Service) DeleteRole(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.roles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if r.IsSystem {
			return apperr.InvalidState(apperr.CodeSystemRole, "system roles cannot be deleted")
		}
		n, err := s.roles.CountUsers(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.InvalidState(apperr.CodeRoleInUse, "role is assigned to users").WithDetails("users", n)
		}
		return s.roles.Delete(ctx, id)
	})
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
