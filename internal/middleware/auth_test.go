package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meemli/meemli-api/internal/models"
	"github.com/meemli/meemli-api/pkg/logger"
)

type stubVerifier struct {
	principals map[string]*models.Principal
}

func (s stubVerifier) Verify(ctx context.Context, token string) (*models.Principal, error) {
	if p, ok := s.principals[token]; ok {
		return p, nil
	}
	return nil, errors.New("bad token")
}

type stubAdmins map[string]bool

func (s stubAdmins) IsAdmin(ctx context.Context, uid string) (bool, error) {
	return s[uid], nil
}

func newAuthRouter(verifier TokenVerifier, bypass bool, guards ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth(verifier, bypass)}, guards...)
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.UIDKey))
	})
	r.GET("/api/user/:id", handlers...)
	return r
}

func doGet(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newAuthRouter(stubVerifier{}, false)

	w := doGet(r, "/api/user/u1", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing bearer token")

	w = doGet(r, "/api/user/u1", "forged")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid token")
}

func TestAuthStoresPrincipal(t *testing.T) {
	r := newAuthRouter(stubVerifier{principals: map[string]*models.Principal{"good": {UID: "u1"}}}, false)

	w := doGet(r, "/api/user/u1", "good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestAuthBypassAdmitsSyntheticAdmin(t *testing.T) {
	r := newAuthRouter(nil, true, RequireAdmin(nil))

	w := doGet(r, "/api/user/u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, BypassUID, w.Body.String())
}

func TestRBACAdminAndSelf(t *testing.T) {
	verifier := stubVerifier{principals: map[string]*models.Principal{
		"claim-admin": {UID: "a1", Admin: true},
		"row-admin":   {UID: "a2"},
		"teacher":     {UID: "t1"},
	}}
	admins := stubAdmins{"a2": true}
	r := newAuthRouter(verifier, false, RBAC(admins, RoleAdmin, RoleSelf))

	assert.Equal(t, http.StatusOK, doGet(r, "/api/user/zz", "claim-admin").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/api/user/zz", "row-admin").Code)
	assert.Equal(t, http.StatusOK, doGet(r, "/api/user/t1", "teacher").Code)
	assert.Equal(t, http.StatusForbidden, doGet(r, "/api/user/zz", "teacher").Code)

	adminOnly := newAuthRouter(verifier, false, RequireAdmin(admins))
	assert.Equal(t, http.StatusForbidden, doGet(adminOnly, "/api/user/t1", "teacher").Code)
}
