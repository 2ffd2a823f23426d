package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKid = "test-key"

type jwksServer struct {
	*httptest.Server
	key      *rsa.PrivateKey
	requests atomic.Int32
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	s := &jwksServer{key: key}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": testKid,
				"kty": "RSA",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) sign(t *testing.T, claims *KeycloakClaims, kid string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(s.key)
	require.NoError(t, err)
	return signed
}

func testClaims(issuer string, expiresIn time.Duration) *KeycloakClaims {
	claims := &KeycloakClaims{PreferredUsername: "alice", Email: "alice@example.com"}
	claims.Subject = "user-1"
	claims.Issuer = issuer
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(expiresIn))
	claims.RealmAccess.Roles = []string{"technician"}
	return claims
}

func TestValidateToken(t *testing.T) {
	srv := newJWKSServer(t)
	issuer := "https://sso.example.com/realms/ops"
	v := NewKeycloakTokenValidator(issuer, srv.URL)

	claims, err := v.ValidateToken(context.Background(), srv.sign(t, testClaims(issuer, time.Hour), testKid))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "alice", claims.Operator())

	// 公钥已缓存
	_, err = v.ValidateToken(context.Background(), srv.sign(t, testClaims(issuer, time.Hour), testKid))
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.requests.Load())
}

func TestValidateTokenRejects(t *testing.T) {
	srv := newJWKSServer(t)
	issuer := "https://sso.example.com/realms/ops"
	v := NewKeycloakTokenValidator(issuer, srv.URL)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", srv.sign(t, testClaims(issuer, -time.Hour), testKid)},
		{"wrong issuer", srv.sign(t, testClaims("https://evil.example.com", time.Hour), testKid)},
		{"unknown kid", srv.sign(t, testClaims(issuer, time.Hour), "other")},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateToken(context.Background(), tt.token)
			assert.Error(t, err)
		})
	}
}

func TestDefaultJWKSURL(t *testing.T) {
	v := NewKeycloakTokenValidator("https://sso.example.com/realms/ops/", "")
	assert.Equal(t, "https://sso.example.com/realms/ops", v.Issuer())
	assert.Equal(t, "https://sso.example.com/realms/ops/protocol/openid-connect/certs", v.jwksURL)
}

func TestKeycloakAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := newJWKSServer(t)
	issuer := "https://sso.example.com/realms/ops"
	v := NewKeycloakTokenValidator(issuer, srv.URL)

	router := gin.New()
	router.Use(KeycloakAuthMiddleware(v))
	router.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer nope")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+srv.sign(t, testClaims(issuer, time.Hour), testKid))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", w.Body.String())
	})
}
