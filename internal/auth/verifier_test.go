package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-hackreg/internal/common"
)

const testSecret = "unit-test-secret"

func signedToken(t *testing.T, mutate func(b *jwt.Builder)) string {
	t.Helper()
	b := jwt.NewBuilder().
		Issuer("hackreg").
		Audience([]string{"hackreg-api"}).
		Subject("user-1").
		Claim("email", "owner@example.com").
		IssuedAt(time.Now()).
		Expiration(time.Now().Add(time.Hour))
	if mutate != nil {
		mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(testSecret)))
	require.NoError(t, err)
	return string(signed)
}

func newTestVerifier() *Verifier {
	return NewVerifier(testSecret, "hackreg", "hackreg-api")
}

func TestParseAccessTokenReturnsEmail(t *testing.T) {
	v := newTestVerifier()
	email, err := v.ParseAccessToken(signedToken(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "owner@example.com", email)
}

func TestParseAccessTokenFallsBackToSubject(t *testing.T) {
	v := newTestVerifier()
	token := signedToken(t, func(b *jwt.Builder) {
		b.Subject("subject@example.com").Claim("email", "")
	})
	email, err := v.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "subject@example.com", email)
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	v := newTestVerifier()
	token := signedToken(t, func(b *jwt.Builder) {
		b.Expiration(time.Now().Add(-time.Hour))
	})
	_, err := v.ParseAccessToken(token)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", common.ErrorCode(err))
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	v := newTestVerifier()
	token := signedToken(t, func(b *jwt.Builder) {
		b.Issuer("someone-else")
	})
	_, err := v.ParseAccessToken(token)
	require.Error(t, err)
}

func TestParseAccessTokenRejectsWrongSecret(t *testing.T) {
	v := NewVerifier("different-secret", "hackreg", "hackreg-api")
	_, err := v.ParseAccessToken(signedToken(t, nil))
	require.Error(t, err)
}

func TestParseAccessTokenRejectsEmpty(t *testing.T) {
	v := newTestVerifier()
	_, err := v.ParseAccessToken("  ")
	require.Error(t, err)
	_, err = v.ParseAccessToken("not-a-jwt")
	require.Error(t, err)
}

func TestRequireAuthPropagatesEmail(t *testing.T) {
	mw := Middleware{Verifier: newTestVerifier()}
	var seen string
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = common.UserEmail(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/t1/status", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, nil))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "owner@example.com", seen)
}

func TestRequireAuthRejectsMissingToken(t *testing.T) {
	mw := Middleware{Verifier: newTestVerifier()}
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/payments/t1/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
