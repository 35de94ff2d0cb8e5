package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/BlackLotus/nomad/pkg/controller"
)

type contextKey string

const claimsContextKey contextKey = "claims"

func claimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsContextKey).(*Claims)
	return claims
}

// actorFromContext derives a controller.Actor from the verified claims,
// defaulting to an anonymous, non-admin actor if JWTAuth has not run
// (routes that opt out of auth by never mounting the middleware).
func actorFromContext(ctx context.Context) controller.Actor {
	claims := claimsFromContext(ctx)
	if claims == nil {
		return controller.Actor{}
	}
	return controller.Actor{UserID: claims.UserID, IsAdmin: claims.IsAdmin}
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// jwtAuth validates the bearer token and stores its claims in the request
// context, mirroring dittofs's pkg/api/middleware.JWTAuth.
func jwtAuth(verifier *tokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := extractBearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrMissingToken.Error())
				return
			}
			claims, err := verifier.parse(tokenString)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
