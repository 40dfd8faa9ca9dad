// Package auth resolves the calling actor from a bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	// RoleSystem is used by background jobs.
	RoleSystem Role = "system"
)

func (r Role) valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Actor is the identity on whose behalf an operation runs. For patients and
// doctors ID is their directory id.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

var System = Actor{Role: RoleSystem}

func (a Actor) String() string {
	if a.ID == uuid.Nil {
		return string(a.Role)
	}
	return fmt.Sprintf("%s:%s", a.Role, a.ID)
}

func (a Actor) privileged() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

// CanActForPatient reports whether a may book or view on behalf of the patient.
func (a Actor) CanActForPatient(patientID uuid.UUID) bool {
	return a.privileged() || (a.Role == RolePatient && a.ID == patientID)
}

// CanActForDoctor reports whether a may manage the doctor's calendar.
func (a Actor) CanActForDoctor(doctorID uuid.UUID) bool {
	return a.privileged() || (a.Role == RoleDoctor && a.ID == doctorID)
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the actor. Used by seed tooling and
// tests; production tokens come from the hospital identity provider.
func IssueToken(secret []byte, actor Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates an HS256 token and returns its actor.
func ParseToken(secret []byte, tokenString string) (Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return Actor{}, ErrInvalidToken
	}

	role := Role(claims.Role)
	if !role.valid() {
		return Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	var id uuid.UUID
	if claims.Subject != "" {
		id, err = uuid.Parse(claims.Subject)
		if err != nil {
			return Actor{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
		}
	}
	if (role == RolePatient || role == RoleDoctor) && id == uuid.Nil {
		return Actor{}, fmt.Errorf("%w: %s token without subject", ErrInvalidToken, role)
	}

	return Actor{ID: id, Role: role}, nil
}

type contextKey string

const actorKey contextKey = "actor"

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFrom returns the actor placed in ctx by the middleware.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}
