package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, subject string, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

func TestAuthMiddleware_ValidTokenPopulatesContext(t *testing.T) {
	memberID := uuid.New()
	var gotMemberID uuid.UUID
	var gotRole string

	handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMemberID, _ = CallerMemberID(r.Context())
		gotRole, _ = CallerRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/purchases/mine", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, memberID.String(), RoleCobranza))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotMemberID != memberID {
		t.Fatalf("expected member id %s in context, got %s", memberID, gotMemberID)
	}
	if gotRole != RoleCobranza {
		t.Fatalf("expected role %q in context, got %q", RoleCobranza, gotRole)
	}
}

func TestAuthMiddleware_MissingRoleDefaultsToCliente(t *testing.T) {
	var gotRole string
	handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole, _ = CallerRole(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/purchases/mine", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, uuid.New().String(), ""))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if gotRole != RoleCliente {
		t.Fatalf("expected default role %q, got %q", RoleCliente, gotRole)
	}
}

func TestAuthMiddleware_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name      string
		setHeader func(r *http.Request, t *testing.T)
	}{
		{
			name:      "missing header",
			setHeader: func(r *http.Request, t *testing.T) {},
		},
		{
			name: "not a bearer token",
			setHeader: func(r *http.Request, t *testing.T) {
				r.Header.Set("Authorization", "Basic abc123")
			},
		},
		{
			name: "wrong signing secret",
			setHeader: func(r *http.Request, t *testing.T) {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
					"sub": uuid.New().String(),
					"exp": time.Now().Add(time.Hour).Unix(),
				})
				signed, err := token.SignedString([]byte("other-secret"))
				if err != nil {
					t.Fatalf("failed to sign token: %v", err)
				}
				r.Header.Set("Authorization", "Bearer "+signed)
			},
		},
		{
			name: "expired token",
			setHeader: func(r *http.Request, t *testing.T) {
				token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
					"sub": uuid.New().String(),
					"exp": time.Now().Add(-time.Hour).Unix(),
				})
				signed, err := token.SignedString([]byte(testSecret))
				if err != nil {
					t.Fatalf("failed to sign token: %v", err)
				}
				r.Header.Set("Authorization", "Bearer "+signed)
			},
		},
		{
			name: "subject is not a uuid",
			setHeader: func(r *http.Request, t *testing.T) {
				r.Header.Set("Authorization", "Bearer "+signTestToken(t, "member-42", RoleCliente))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be reached")
			}))

			req := httptest.NewRequest(http.MethodGet, "/purchases/mine", nil)
			tt.setHeader(req, t)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		role     string
		wantCode int
	}{
		{name: "allowed role passes", role: RoleCobranza, wantCode: http.StatusOK},
		{name: "admin always passes", role: RoleAdmin, wantCode: http.StatusOK},
		{name: "other role is forbidden", role: RoleCliente, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AuthMiddleware(testSecret)(
				RequireRole(RoleCobranza)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusOK)
				})),
			)

			req := httptest.NewRequest(http.MethodGet, "/payments/pending", nil)
			req.Header.Set("Authorization", "Bearer "+signTestToken(t, uuid.New().String(), tt.role))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}
