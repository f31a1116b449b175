package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gowa-gateway/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(t *testing.T, auth *service.AuthService, header string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	next := func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	}

	require.NoError(t, JWTAuth(auth)(next)(c))
	return rec, called
}

func newAuth(t *testing.T) *service.AuthService {
	t.Helper()
	auth, err := service.NewAuthService("super-secret", "admin", "rahasia", time.Hour)
	require.NoError(t, err)
	return auth
}

func TestJWTAuthRejectsMissingHeader(t *testing.T) {
	rec, called := runMiddleware(t, newAuth(t), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestJWTAuthRejectsMalformedHeader(t *testing.T) {
	rec, called := runMiddleware(t, newAuth(t), "Basic abcdef")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestJWTAuthRejectsInvalidToken(t *testing.T) {
	rec, called := runMiddleware(t, newAuth(t), "Bearer bukan.token.valid")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	auth := newAuth(t)
	token, err := auth.Login("admin", "rahasia")
	require.NoError(t, err)

	rec, called := runMiddleware(t, auth, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}
