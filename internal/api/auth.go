// internal/api/auth.go
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "admissions-workflow/internal/common/errors"
	"admissions-workflow/internal/models"
)

// AuthConfig verifies the HS256 bearer tokens issued by the identity
// provider.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

type actorKey struct{}

// Claims is the token payload. Role wins over Roles when both are present.
type Claims struct {
	jwt.RegisteredClaims
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

func withActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the authenticated caller.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	return a, ok && a.ID != ""
}

func authenticateJWT(token string, cfg AuthConfig) (models.Actor, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return models.Actor{}, errors.New("jwt secret not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	claims := &Claims{}
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		return models.Actor{}, err
	}
	if !parsed.Valid {
		return models.Actor{}, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return models.Actor{}, errors.New("subject claim required")
	}
	return models.Actor{ID: claims.Subject, Role: roleFromClaims(claims)}, nil
}

// roleFromClaims picks the most privileged of the token's roles.
func roleFromClaims(c *Claims) models.Role {
	if c.Role != "" {
		return models.Role(c.Role)
	}
	var picked models.Role
	for _, r := range c.Roles {
		role := models.Role(r)
		switch {
		case role == models.RoleSuperAdmin:
			return role
		case role == models.RoleAdmin:
			picked = role
		case picked == "":
			picked = role
		}
	}
	return picked
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware requires a valid bearer token on every route under
// basePath. Health, readiness, metrics and the OpenAPI document stay open.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath+"/") && req.URL.Path != basePath {
				next.ServeHTTP(w, req)
				return
			}

			token, ok := bearerToken(strings.TrimSpace(req.Header.Get("Authorization")))
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, string(apperrors.ErrCodeUnauthenticated), "authentication required", nil))
				return
			}
			actor, err := authenticateJWT(token, cfg)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, string(apperrors.ErrCodeUnauthenticated), "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withActor(req.Context(), actor)))
		})
	}
}
