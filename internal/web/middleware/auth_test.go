package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signed(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func protectedRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	m := NewMiddlewareManager(secret, zap.NewNop())
	r := gin.New()
	r.GET("/rules", m.RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("subject"))
	})
	return r
}

func get(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/rules", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_DisabledWithoutSecret(t *testing.T) {
	w := get(protectedRouter(""), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth(t *testing.T) {
	r := protectedRouter("s3cret")
	valid := signed(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.RegisteredClaims{
		Subject:   "dashboard",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})

	w := get(r, "Bearer "+valid)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dashboard", w.Body.String())

	tests := map[string]string{
		"missing":   "",
		"garbage":   "Bearer not-a-token",
		"wrong key": "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("other"), jwt.RegisteredClaims{Subject: "x"}),
		"wrong alg": "Bearer " + signed(t, jwt.SigningMethodHS512, []byte("s3cret"), jwt.RegisteredClaims{Subject: "x"}),
		"expired":   "Bearer " + signed(t, jwt.SigningMethodHS256, []byte("s3cret"), jwt.RegisteredClaims{Subject: "x", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))}),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, get(r, header).Code)
		})
	}
}
