package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testSecret = []byte("test-secret")

func TestIssueAndParseToken(t *testing.T) {
	patient := Actor{ID: uuid.New(), Role: RolePatient}
	tok, err := IssueToken(testSecret, patient, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	got, err := ParseToken(testSecret, tok)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if got != patient {
		t.Fatalf("expected %v, got %v", patient, got)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	now := time.Now()
	doctor := Actor{ID: uuid.New(), Role: RoleDoctor}

	expired, _ := IssueToken(testSecret, doctor, time.Minute, now.Add(-time.Hour))
	wrongKey, _ := IssueToken([]byte("other"), doctor, time.Hour, now)
	noSubject, _ := IssueToken(testSecret, Actor{Role: RoleDoctor}, time.Hour, now)
	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "janitor",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
	}).SignedString(testSecret)

	tests := map[string]string{
		"expired":    expired,
		"wrong key":  wrongKey,
		"no subject": noSubject,
		"bad role":   badRole,
		"garbage":    "not-a-token",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseToken(testSecret, tok); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestActorPermissions(t *testing.T) {
	patientID, doctorID := uuid.New(), uuid.New()
	patient := Actor{ID: patientID, Role: RolePatient}
	doctor := Actor{ID: doctorID, Role: RoleDoctor}
	admin := Actor{Role: RoleAdmin}

	if !patient.CanActForPatient(patientID) || patient.CanActForPatient(uuid.New()) {
		t.Error("patient may only act for themselves")
	}
	if patient.CanActForDoctor(doctorID) {
		t.Error("patient must not manage a doctor")
	}
	if !doctor.CanActForDoctor(doctorID) || doctor.CanActForDoctor(uuid.New()) {
		t.Error("doctor may only manage their own calendar")
	}
	if !admin.CanActForDoctor(doctorID) || !admin.CanActForPatient(patientID) {
		t.Error("admin may act for anyone")
	}
	if !System.CanActForDoctor(doctorID) {
		t.Error("system actor may act for anyone")
	}
}

func TestMiddleware(t *testing.T) {
	patient := Actor{ID: uuid.New(), Role: RolePatient}
	tok, _ := IssueToken(testSecret, patient, time.Hour, time.Now())

	var seen Actor
	h := Middleware(testSecret, false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + tok, http.StatusNoContent},
		{"lowercase scheme", "bearer " + tok, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Actor{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
			if tt.want == http.StatusNoContent && seen != patient {
				t.Fatalf("expected actor %v in context, got %v", patient, seen)
			}
		})
	}
}

func TestMiddleware_Disabled(t *testing.T) {
	doctorID := uuid.New()
	var seen Actor
	h := Middleware(nil, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen.Role != RoleAdmin {
		t.Fatalf("expected admin default, got %v", seen)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Actor-Role", "doctor")
	req.Header.Set("X-Actor-ID", doctorID.String())
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen.Role != RoleDoctor || seen.ID != doctorID {
		t.Fatalf("expected doctor actor from headers, got %v", seen)
	}
}
