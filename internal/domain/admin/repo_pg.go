package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lasercare/clinic/internal/platform/apperr"
	"github.com/lasercare/clinic/internal/platform/db"
)

// -- Role Repository --

type roleRepoPG struct {
	q db.Querier
}

func NewRoleRepo(q db.Querier) RoleRepository {
	return &roleRepoPG{q: q}
}

const roleColumns = `id, name, permissions, is_system, created_at, updated_at`

func (r *roleRepoPG) Create(ctx context.Context, role *Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO roles (id, name, permissions, is_system)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		role.ID, role.Name, role.Permissions, role.IsSystem,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	return db.Classify(err)
}

func (r *roleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Role, error) {
	return r.scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

func (r *roleRepoPG) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.scan(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

func (r *roleRepoPG) Update(ctx context.Context, role *Role) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE roles SET name = $2, permissions = $3, updated_at = NOW()
		WHERE id = $1`,
		role.ID, role.Name, role.Permissions,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeRoleNotFound, "role not found")
	}
	return nil
}

func (r *roleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeRoleNotFound, "role not found")
	}
	return nil
}

func (r *roleRepoPG) List(ctx context.Context) ([]*Role, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT r.id, r.name, r.permissions, r.is_system, r.created_at, r.updated_at,
		       (SELECT COUNT(*) FROM users u WHERE u.role_id = r.id)
		FROM roles r ORDER BY r.is_system DESC, r.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []*Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Permissions, &role.IsSystem,
			&role.CreatedAt, &role.UpdatedAt, &role.UserCount); err != nil {
			return nil, err
		}
		roles = append(roles, &role)
	}
	return roles, rows.Err()
}

func (r *roleRepoPG) CountUsers(ctx context.Context, roleID uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n)
	return n, err
}

func (r *roleRepoPG) scan(row pgx.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Permissions, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeRoleNotFound)
	}
	return &role, nil
}

// -- User Repository --

type userRepoPG struct {
	q db.Querier
}

func NewUserRepo(q db.Querier) UserRepository {
	return &userRepoPG{q: q}
}

const userSelect = `
	SELECT u.id, u.username, u.password_hash, u.nom, u.prenom, u.role_id,
	       r.name, r.permissions, u.is_active, u.created_at, u.updated_at
	FROM users u JOIN roles r ON r.id = u.role_id`

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, nom, prenom, role_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.Nom, u.Prenom, u.RoleID, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return db.Classify(err)
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scan(db.Conn(ctx, r.q).QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.scan(db.Conn(ctx, r.q).QueryRow(ctx, userSelect+` WHERE u.username = $1`, username))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE users SET nom = $2, prenom = $3, role_id = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1`,
		u.ID, u.Nom, u.Prenom, u.RoleID, u.IsActive,
	)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeUserNotFound, "user not found")
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeUserNotFound, "user not found")
	}
	return nil
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeUserNotFound, "user not found")
	}
	return nil
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := db.Conn(ctx, r.q).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	users, err := r.query(ctx, userSelect+` ORDER BY u.nom, u.prenom LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *userRepoPG) ListActive(ctx context.Context) ([]*User, error) {
	return r.query(ctx, userSelect+` WHERE u.is_active ORDER BY u.nom, u.prenom`)
}

func (r *userRepoPG) query(ctx context.Context, sql string, args ...any) ([]*User, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepoPG) scan(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Nom, &u.Prenom, &u.RoleID,
		&u.RoleName, &u.Permissions, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, db.NotFoundAs(err, apperr.CodeUserNotFound)
	}
	return &u, nil
}
