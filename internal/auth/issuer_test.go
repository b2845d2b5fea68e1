package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/franciscosanchezn/pizza-mcp/internal/config"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
)

func setupAuthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// Every sqlite pool connection gets its own in-memory database, so the
	// pool must stay pinned to a single connection.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.OAuthClient{}, &models.OAuthToken{}))
	return db
}

func registerTestClient(t *testing.T, db *gorm.DB, id, secret, scopes string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.OAuthClient{
		ID:         id,
		Secret:     string(hash),
		Name:       "Test Client",
		Scopes:     scopes,
		GrantTypes: "client_credentials",
	}).Error)
}

func newIssuerRouter(t *testing.T) (*gorm.DB, *OAuthService, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := setupAuthDB(t)

	svc, err := NewOAuthService(db, &config.Config{AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	router := gin.New()
	router.POST("/oauth/token", svc.HandleToken)
	router.GET("/.well-known/jwks.json", svc.HandleJWKS)
	return db, svc, router
}

func postTokenForm(router *gin.Engine, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNewOAuthServiceInitialization(t *testing.T) {
	_, svc, _ := newIssuerRouter(t)

	assert.NotEmpty(t, svc.KeyID())

	jwks := svc.JWKS()
	require.Len(t, jwks.Keys, 1)
	key := jwks.Keys[0]
	assert.Equal(t, "RSA", key.Kty)
	assert.Equal(t, "sig", key.Use)
	assert.Equal(t, "RS256", key.Alg)
	assert.Equal(t, svc.KeyID(), key.Kid)
	assert.NotEmpty(t, key.N)
	assert.NotEmpty(t, key.E)
}

func TestTokenEndpointClientCredentials(t *testing.T) {
	db, svc, router := newIssuerRouter(t)
	registerTestClient(t, db, "mcp-client", "s3cret", "pizza:read pizza:write")

	w := postTokenForm(router, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"mcp-client"},
		"client_secret": {"s3cret"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	accessToken, _ := body["access_token"].(string)
	require.NotEmpty(t, accessToken)
	assert.Equal(t, 2, strings.Count(accessToken, "."), "access token must be a JWT")
	assert.Equal(t, "Bearer", body["token_type"])
	assert.EqualValues(t, 3600, body["expires_in"])
	assert.Equal(t, "pizza:read pizza:write", body["scope"])

	// The minted claims drive downstream validation, so pin them down.
	claims := &AccessClaims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	require.NoError(t, err)
	assert.Equal(t, svc.KeyID(), parsed.Header["kid"])
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.Contains(t, claims.Audience, DefaultAudience)
	assert.Equal(t, "mcp-client", claims.ClientID)
	assert.Equal(t, "mcp-client", claims.Subject, "client credentials tokens are subject to the client itself")
	assert.Equal(t, "pizza:read pizza:write", claims.Scope)
	assert.NotEmpty(t, claims.ID)

	// The issued token is persisted for bookkeeping.
	var count int64
	require.NoError(t, db.Model(&models.OAuthToken{}).Where("client_id = ?", "mcp-client").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestTokenEndpointScopeNarrowing(t *testing.T) {
	db, _, router := newIssuerRouter(t)
	registerTestClient(t, db, "mcp-client", "s3cret", "pizza:read pizza:write")

	t.Run("subset granted", func(t *testing.T) {
		w := postTokenForm(router, url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"mcp-client"},
			"client_secret": {"s3cret"},
			"scope":         {"pizza:read"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "pizza:read", body["scope"])
	})

	t.Run("superset rejected", func(t *testing.T) {
		w := postTokenForm(router, url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"mcp-client"},
			"client_secret": {"s3cret"},
			"scope":         {"pizza:read pizza:admin"},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrInvalidScope, body["error"])
	})
}

func TestTokenEndpointRejectsBadCredentials(t *testing.T) {
	db, _, router := newIssuerRouter(t)
	registerTestClient(t, db, "mcp-client", "s3cret", "pizza:read")

	t.Run("wrong secret", func(t *testing.T) {
		w := postTokenForm(router, url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"mcp-client"},
			"client_secret": {"wrong"},
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrInvalidClient, body["error"])
	})

	t.Run("unknown client", func(t *testing.T) {
		w := postTokenForm(router, url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {"nobody"},
			"client_secret": {"s3cret"},
		})
		require.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing credentials", func(t *testing.T) {
		w := postTokenForm(router, url.Values{
			"grant_type": {"client_credentials"},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrInvalidRequest, body["error"])
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		w := postTokenForm(router, url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {"mcp-client"},
			"client_secret": {"s3cret"},
		})
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, models.ErrUnsupportedGrantType, body["error"])
	})
}

func TestJWKSEndpoint(t *testing.T) {
	_, svc, router := newIssuerRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var doc JWKSDocument
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	require.Len(t, doc.Keys, 1)
	assert.Equal(t, svc.KeyID(), doc.Keys[0].Kid)
}

// TestIssuedTokenValidates closes the loop: a token minted by the issuer
// must authenticate against a validator pointed at the issuer's JWKS.
func TestIssuedTokenValidates(t *testing.T) {
	db, svc, router := newIssuerRouter(t)
	registerTestClient(t, db, "mcp-client", "s3cret", "pizza:read pizza:write")

	w := postTokenForm(router, url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {"mcp-client"},
		"client_secret": {"s3cret"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	accessToken, _ := body["access_token"].(string)
	require.NotEmpty(t, accessToken)

	jwksServer := newJWKSServer(t, svc.JWKS())
	v := NewValidator(&config.Config{
		AuthEnabled:  true,
		APIKeyHeader: "X-API-Key",
		JWKSURI:      jwksServer.URL,
		JWKSRefresh:  5 * time.Minute,
		JWTIssuer:    DefaultIssuer,
		JWTAudience:  DefaultAudience,
	})

	authCtx, err := v.Authenticate(context.Background(), authRequest(map[string]string{
		"Authorization": "Bearer " + accessToken,
	}))
	require.NoError(t, err)
	assert.True(t, authCtx.Authenticated)
	assert.Equal(t, SchemeJWT, authCtx.Scheme)
	assert.Equal(t, "mcp-client", authCtx.ClientID)
	assert.Equal(t, "mcp-client", authCtx.UserID)
	assert.Equal(t, []string{"pizza:read", "pizza:write"}, authCtx.Scopes)
	assert.Equal(t, LevelAuthenticated, authCtx.Level)
}

func TestScopeWithin(t *testing.T) {
	testCases := []struct {
		requested  string
		registered string
		expected   bool
	}{
		{"pizza:read", "pizza:read pizza:write", true},
		{"pizza:read pizza:write", "pizza:read pizza:write", true},
		{"", "pizza:read", true},
		{"pizza:admin", "pizza:read pizza:write", false},
		{"pizza:read pizza:admin", "pizza:read pizza:write", false},
		{"pizza:read", "", false},
	}
	for _, tt := range testCases {
		assert.Equal(t, tt.expected, scopeWithin(tt.requested, tt.registered),
			"requested=%q registered=%q", tt.requested, tt.registered)
	}
}
