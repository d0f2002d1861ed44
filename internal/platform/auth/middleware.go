package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

type contextKey string

const currentUserKey contextKey = "current_user"

// SessionCookie carries the token for browser clients.
const SessionCookie = "session_token"

// CurrentUser is the authenticated principal for one request.
type CurrentUser struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Nom         string    `json:"nom"`
	Prenom      string    `json:"prenom"`
	RoleName    string    `json:"role_name"`
	Permissions []string  `json:"permissions"`
	IsActive    bool      `json:"is_active"`
}

func (u *CurrentUser) Has(permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// FullName is "prenom nom" with empty parts dropped.
func (u *CurrentUser) FullName() string {
	return strings.TrimSpace(u.Prenom + " " + u.Nom)
}

// UserResolver loads the user named by a token subject along with the
// permissions of its role.
type UserResolver interface {
	ResolveUser(ctx context.Context, id uuid.UUID) (*CurrentUser, error)
}

// Gate authenticates requests and authorizes operations by permission code.
type Gate struct {
	tokens *TokenIssuer
	users  UserResolver
}

func NewGate(tokens *TokenIssuer, users UserResolver) *Gate {
	return &Gate{tokens: tokens, users: users}
}

// Authenticate validates the token and re-resolves the user so that role
// changes and deactivation take effect immediately.
func (g *Gate) Authenticate(ctx context.Context, token string) (*CurrentUser, error) {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	id, _ := uuid.Parse(claims.Subject)
	u, err := g.users.ResolveUser(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.AuthInvalid("unknown user")
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.AuthDisabled("user is inactive")
	}
	return u, nil
}

// TokenFromRequest reads the session cookie first, then the bearer header.
func TokenFromRequest(c echo.Context) string {
	if ck, err := c.Cookie(SessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Middleware authenticates every request of the group it is attached to.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, err := g.Authenticate(c.Request().Context(), TokenFromRequest(c))
			if err != nil {
				return err
			}
			c.SetRequest(c.Request().WithContext(WithUser(c.Request().Context(), u)))
			c.Set("user_id", u.ID.String())
			return next(c)
		}
	}
}

func WithUser(ctx context.Context, u *CurrentUser) context.Context {
	return context.WithValue(ctx, currentUserKey, u)
}

func UserFromContext(ctx context.Context) *CurrentUser {
	u, _ := ctx.Value(currentUserKey).(*CurrentUser)
	return u
}

// UserFromEcho returns the authenticated user or AUTH_INVALID.
func UserFromEcho(c echo.Context) (*CurrentUser, error) {
	u := UserFromContext(c.Request().Context())
	if u == nil {
		return nil, apperr.AuthInvalid("not authenticated")
	}
	return u, nil
}
