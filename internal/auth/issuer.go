package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/manage"
	"github.com/go-oauth2/oauth2/v4/server"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/franciscosanchezn/pizza-mcp/internal/config"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Default claim values used when the validation side has no explicit
// issuer/audience configured.
const (
	DefaultIssuer   = "pizza-mcp"
	DefaultAudience = "pizza-mcp"
)

// OAuthService is the development token issuer: an RS256-signing OAuth2
// server restricted to the client_credentials grant. Tokens it mints verify
// against the JWKS document it publishes, so a deployment can point the
// validation side at its own /.well-known/jwks.json.
type OAuthService struct {
	server   *server.Server
	db       *gorm.DB
	keyID    string
	issuer   string
	audience string
	jwks     JWKSDocument
}

// JSONWebKey is the published form of the issuer's RSA public key.
type JSONWebKey struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSDocument is the response body of the JWKS endpoint.
type JWKSDocument struct {
	Keys []JSONWebKey `json:"keys"`
}

func NewOAuthService(db *gorm.DB, cfg *config.Config) (*OAuthService, error) {
	key, err := loadSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, err
	}
	keyID := computeKeyID(&key.PublicKey)

	issuer := cfg.JWTIssuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := cfg.JWTAudience
	if audience == "" {
		audience = DefaultAudience
	}

	manager := manage.NewDefaultManager()
	manager.SetClientTokenCfg(&manage.Config{AccessTokenExp: cfg.AccessTokenTTL})

	// Use RS256 JWTs for access tokens
	manager.MapAccessGenerate(NewJWTAccessGenerate(issuer, audience, keyID, key))

	// Configure token store
	tokenStore := NewGormTokenStore(db)
	manager.MustTokenStorage(tokenStore, nil)

	// Configure client store
	clientStore := NewGormClientStore(db)
	manager.MapClientStorage(clientStore)

	srv := server.NewDefaultServer(manager)
	srv.SetAllowedGrantType(oauth2.ClientCredentials)
	srv.SetClientInfoHandler(server.ClientFormHandler)

	log.WithFields(logrus.Fields{
		"issuer":   issuer,
		"audience": audience,
		"kid":      keyID,
	}).Info("OAuth token issuer initialized")

	return &OAuthService{
		server:   srv,
		db:       db,
		keyID:    keyID,
		issuer:   issuer,
		audience: audience,
		jwks:     JWKSDocument{Keys: []JSONWebKey{publicJWK(&key.PublicKey, keyID)}},
	}, nil
}

func (o *OAuthService) GetServer() *server.Server {
	return o.server
}

// KeyID returns the kid the issuer stamps into token headers.
func (o *OAuthService) KeyID() string {
	return o.keyID
}

// JWKS returns the published key set.
func (o *OAuthService) JWKS() JWKSDocument {
	return o.jwks
}

// HandleJWKS serves the issuer's public key set
// @Summary JSON Web Key Set
// @Description Public keys for verifying access tokens issued by this server
// @Tags OAuth2
// @Produce json
// @Success 200 {object} auth.JWKSDocument
// @Router /.well-known/jwks.json [get]
func (o *OAuthService) HandleJWKS(c *gin.Context) {
	c.JSON(http.StatusOK, o.jwks)
}

// loadSigningKey reads an RSA private key from path, or generates an
// ephemeral one when no path is configured. Ephemeral keys mean issued
// tokens stop verifying after a restart, which is acceptable for the
// development issuer.
func loadSigningKey(path string) (*rsa.PrivateKey, error) {
	if path == "" {
		log.Warn("OAUTH_SIGNING_KEY not set, generating an ephemeral RSA signing key")
		return rsa.GenerateKey(rand.Reader, 2048)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("signing key %s is not PEM encoded", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing signing key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key %s is not an RSA key", path)
	}
	return key, nil
}

// computeKeyID derives a stable kid from the public key material so that
// restarts with the same key keep the same kid.
func computeKeyID(pub *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "pizza-mcp-signing-key"
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8])
}

func publicJWK(pub *rsa.PublicKey, kid string) JSONWebKey {
	return JSONWebKey{
		Kty: "RSA",
		Use: "sig",
		Alg: "RS256",
		Kid: kid,
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}
}
