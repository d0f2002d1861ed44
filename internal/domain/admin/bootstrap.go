package admin

import (
	"context"
	"slices"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/auth"
)

type systemRole struct {
	name        string
	permissions []string
}

func systemRoles() []systemRole {
	return []systemRole{
		{RoleAdmin, auth.AllPermissions()},
		{RoleDoctor, auth.DoctorPermissions},
		{RoleSecretary, auth.SecretaryPermissions},
	}
}

// Bootstrap seeds the system roles and the initial administrator. The admin
// role always holds the whole vocabulary; the other system roles are created
// with their default set and left alone afterwards. The admin account is
// only created when missing and a password is configured.
func (s *Service) Bootstrap(ctx context.Context, adminUsername, adminPassword string) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var adminRole *Role
		for _, sr := range systemRoles() {
			r, err := s.roles.GetByName(ctx, sr.name)
			switch {
			case apperr.Is(err, apperr.KindNotFound):
				r = &Role{Name: sr.name, Permissions: sr.permissions, IsSystem: true}
				if err := s.roles.Create(ctx, r); err != nil {
					return err
				}
				s.logger.Info().Str("role", sr.name).Msg("system role created")
			case err != nil:
				return err
			case sr.name == RoleAdmin && !samePermissions(r.Permissions, sr.permissions):
				r.Permissions = sr.permissions
				if err := s.roles.Update(ctx, r); err != nil {
					return err
				}
			}
			if sr.name == RoleAdmin {
				adminRole = r
			}
		}

		if adminUsername == "" {
			return nil
		}
		_, err := s.users.GetByUsername(ctx, adminUsername)
		if err == nil {
			return nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}
		if adminPassword == "" {
			s.logger.Warn().Str("username", adminUsername).Msg("ADMIN_PASSWORD not set, admin account not created")
			return nil
		}
		hash, err := auth.HashPassword(adminPassword)
		if err != nil {
			return err
		}
		u := &User{
			Username:     adminUsername,
			PasswordHash: hash,
			Nom:          "Administrateur",
			RoleID:       adminRole.ID,
			RoleName:     adminRole.Name,
			Permissions:  adminRole.Permissions,
			IsActive:     true,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		s.logger.Info().Str("username", adminUsername).Msg("admin account created")
		return nil
	})
}

func samePermissions(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
