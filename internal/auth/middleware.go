package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Middleware requires a valid bearer token and stores the actor in the
// request context.
//
// With disabled set (dev only) no token is needed: the actor is taken from
// the X-Actor-Role and X-Actor-ID headers, defaulting to admin.
func Middleware(secret []byte, disabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				actor Actor
				err   error
			)
			if disabled {
				actor = devActor(r)
			} else {
				actor, err = fromRequest(r, secret)
				if err != nil {
					unauthorized(w, err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func fromRequest(r *http.Request, secret []byte) (Actor, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Actor{}, ErrMissingToken
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return Actor{}, ErrInvalidToken
	}

	return ParseToken(secret, strings.TrimSpace(parts[1]))
}

func devActor(r *http.Request) Actor {
	actor := Actor{Role: RoleAdmin}
	if role := Role(strings.ToLower(r.Header.Get("X-Actor-Role"))); role.valid() {
		actor.Role = role
	}
	if id, err := uuid.Parse(r.Header.Get("X-Actor-ID")); err == nil {
		actor.ID = id
	}
	return actor
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="scheduling"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": err.Error(),
	})
}
