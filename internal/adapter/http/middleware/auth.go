package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/askhat-b/taxi-dispatch/internal/domain/models"
	"github.com/askhat-b/taxi-dispatch/internal/domain/types"
	wrap "github.com/askhat-b/taxi-dispatch/pkg/logger/wrapper"
	"github.com/askhat-b/taxi-dispatch/pkg/uuid"
)

// HeaderGuestToken carries the opaque ownership token issued when a guest
// ride is created.
const HeaderGuestToken = "X-Guest-Token"

// --- base auth middleware ---

// Auth resolves the request actor and injects it into context.
// A bearer JWT yields a rider or driver actor, the guest token header
// yields a guest actor, everything else stays anonymous. Ownership and
// role checks happen downstream; an invalid token is still a 401 here.
func (m *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			actor := models.AnonymousActor()
			if token := r.Header.Get(HeaderGuestToken); token != "" {
				actor = models.Actor{Role: types.RoleGuest, GuestToken: token}
			}
			next.ServeHTTP(w, r.WithContext(models.WithActor(ctx, actor)))
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		actor, err := m.parseActor(token)
		if err != nil {
			m.log.Error(wrap.ErrorCtx(ctx, err), "failed to authenticate request", err)
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = wrap.WithActorID(ctx, actor.String())
		next.ServeHTTP(w, r.WithContext(models.WithActor(ctx, actor)))
	})
}

// RequireRoles wraps a handler and allows only actors with one of the given roles.
func (m *Middleware) RequireRoles(next http.HandlerFunc, allowedRoles ...types.ActorRole) http.Handler {
	allowed := make(map[types.ActorRole]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		allowed[role] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := models.ActorFromContext(r.Context())
		if actor.IsAnonymous() {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[actor.Role]; !ok {
				errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

type actorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// parseActor validates the JWT signature and maps its claims onto an actor.
func (m *Middleware) parseActor(token string) (models.Actor, error) {
	var claims actorClaims

	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(m.auth.JWTSecret), nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return models.Actor{}, fmt.Errorf("token is not valid")
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return models.Actor{}, fmt.Errorf("invalid subject claim: %w", err)
	}

	role := types.ActorRole(claims.Role)
	if role != types.RoleRider && role != types.RoleDriver {
		return models.Actor{}, fmt.Errorf("unknown role claim %q", claims.Role)
	}

	return models.Actor{ID: id, Role: role}, nil
}

// --- header parser ---
func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
