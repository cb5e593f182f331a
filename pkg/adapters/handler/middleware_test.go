package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/tinylinks/pkg/config"
	"github.com/wadjakorntonsri/tinylinks/pkg/core/domain"
)

const testSecret = "testservlet"

func TestAuthMiddleware(t *testing.T) {
	cfg := &config.Config{JWTSecret: testSecret}
	mw := NewMiddleware(cfg, zerolog.Nop())

	tests := []struct {
		name           string
		header         string
		cookieValue    string
		expectedStatus int
		expected       domain.Principal
	}{
		{
			name:           "No Token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Cookie",
			cookieValue:    "invalid",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Wrong Secret",
			header:         "Bearer " + generateTestToken(t, "other-secret", "test@example.com", false),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Expired Token",
			header:         "Bearer " + expiredToken(t),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Subject",
			header:         "Bearer " + generateTestToken(t, testSecret, "", false),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Valid Cookie",
			cookieValue:    generateTestToken(t, testSecret, "test@example.com", false),
			expectedStatus: http.StatusOK,
			expected:       domain.Principal{ID: "test@example.com"},
		},
		{
			name:           "Valid Bearer",
			header:         "Bearer " + generateTestToken(t, testSecret, "test@example.com", false),
			expectedStatus: http.StatusOK,
			expected:       domain.Principal{ID: "test@example.com"},
		},
		{
			name:           "Staff Claim",
			header:         "bearer " + generateTestToken(t, testSecret, "admin@example.com", true),
			expectedStatus: http.StatusOK,
			expected:       domain.Principal{ID: "admin@example.com", Staff: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/links", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: authCookie, Value: tt.cookieValue})
			}

			var got domain.Principal
			rr := httptest.NewRecorder()
			handler := mw.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = PrincipalFrom(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Equal(t, tt.expected, got)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	handler := RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("hello"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	dec := json.NewDecoder(&buf)
	var first, second map[string]any
	require.NoError(t, dec.Decode(&first))
	require.NoError(t, dec.Decode(&second))

	assert.Equal(t, "info", first["level"])
	assert.Equal(t, "/ok", first["path"])
	assert.EqualValues(t, 200, first["status"])
	assert.EqualValues(t, 5, first["bytes"])

	assert.Equal(t, "warn", second["level"])
	assert.EqualValues(t, 404, second["status"])
}

func TestIssueToken(t *testing.T) {
	signed, expires, err := IssueToken([]byte(testSecret), "test@example.com", true, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, time.Minute)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(signed, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "test@example.com", claims.Subject)
	assert.True(t, claims.Staff)
}

func generateTestToken(t *testing.T, secret, owner string, staff bool) string {
	t.Helper()
	tokenString, _, err := IssueToken([]byte(secret), owner, staff, 5*time.Minute)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}

func expiredToken(t *testing.T) string {
	t.Helper()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "test@example.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}
