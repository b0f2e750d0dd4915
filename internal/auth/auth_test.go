package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "test-issuer"}

func signed(t *testing.T, claims *Claims) string {
	t.Helper()
	token, err := Sign(claims, testConfig)
	require.NoError(t, err)
	return token
}

func TestParseRoundTrip(t *testing.T) {
	token := signed(t, &Claims{
		Subject:   "coach-1",
		Scopes:    map[string]struct{}{ScopeResultsRead: {}},
		ExpiresAt: time.Now().Add(time.Hour),
	})

	claims, err := Parse(token, testConfig)
	require.NoError(t, err)
	require.Equal(t, "coach-1", claims.Subject)
	require.False(t, claims.Admin)
	require.True(t, claims.HasScope(ScopeResultsRead))
	require.False(t, claims.HasScope(ScopeResultsWrite))
}

func TestAdminHoldsEveryScope(t *testing.T) {
	claims, err := Parse(signed(t, &Claims{Subject: "root", Admin: true, ExpiresAt: time.Now().Add(time.Hour)}), testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeResultsWrite))

	var none *Claims
	require.False(t, none.HasScope(ScopeResultsRead))
}

func TestParseRejects(t *testing.T) {
	_, err := Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)

	expired := signed(t, &Claims{Subject: "a", ExpiresAt: time.Now().Add(-time.Hour)})
	_, err = Parse(expired, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)

	valid := signed(t, &Claims{Subject: "a", ExpiresAt: time.Now().Add(time.Hour)})
	_, err = Parse(valid, Config{Secret: "other", Issuer: testConfig.Issuer})
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = Parse(valid, Config{Secret: testConfig.Secret, Issuer: "someone-else"})
	require.ErrorIs(t, err, ErrInvalidToken)

	noSubject := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"iss": testConfig.Issuer, "exp": time.Now().Add(time.Hour).Unix()})
	raw, err := noSubject.SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	_, err = Parse(raw, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNormalizeScopesFromString(t *testing.T) {
	scopes := normalizeScopes("results:read  results:write")
	require.Len(t, scopes, 2)
}

func TestMiddleware(t *testing.T) {
	var seen *Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	var rejected error
	mw := NewMiddleware(testConfig)
	mw.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		rejected = err
		w.WriteHeader(http.StatusUnauthorized)
	}
	handler := mw.Wrap(next)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Nil(t, seen)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.True(t, errors.Is(rejected, ErrMissingToken))

	req := httptest.NewRequest(http.MethodGet, "/v1/leaderboards", nil)
	req.Header.Set("Authorization", "Token abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.ErrorIs(t, rejected, ErrInvalidToken)

	req = httptest.NewRequest(http.MethodGet, "/v1/leaderboards", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, &Claims{Subject: "u", ExpiresAt: time.Now().Add(time.Hour)}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, "u", seen.Subject)
}
