package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/franciscosanchezn/pizza-mcp/internal/config"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
)

// Scopes understood by the authorization model.
const (
	ScopeRead  = "pizza:read"
	ScopeWrite = "pizza:write"
	ScopeAdmin = "pizza:admin"
)

// Scheme identifiers, reported in auth errors and get_auth_info.
const (
	SchemeAPIKey      = "api_key"
	SchemeBearerToken = "bearer_token"
	SchemeJWT         = "jwt"
	SchemeDisabled    = "disabled"
	SchemeNone        = "none"
)

// Level is the authorization level a validated credential grants.
type Level int

const (
	LevelPublic Level = iota
	LevelAuthenticated
	LevelAdministrative
)

func (l Level) String() string {
	switch l {
	case LevelAdministrative:
		return "administrative"
	case LevelAuthenticated:
		return "authenticated"
	default:
		return "public"
	}
}

// AuthContext is the outcome of credential validation for one request.
// Authenticated is false for both the anonymous context (no credential
// presented) and the disabled context (validation switched off entirely).
type AuthContext struct {
	Authenticated bool     `json:"authenticated"`
	Scheme        string   `json:"scheme"`
	ClientID      string   `json:"client_id"`
	UserID        string   `json:"user_id,omitempty"`
	Scopes        []string `json:"scopes,omitempty"`
	Level         Level    `json:"-"`
}

// Allows reports whether this context meets the required level.
func (a *AuthContext) Allows(required Level) bool {
	return a.Level >= required
}

// HasScope reports whether the context carries the given scope.
func (a *AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AnonymousContext is the outcome when auth is enabled but the request
// presented no credential any configured scheme could process. Dispatch
// rejects it for anything beyond public tools.
func AnonymousContext() *AuthContext {
	return &AuthContext{
		Scheme:   SchemeNone,
		ClientID: "anonymous",
		Level:    LevelPublic,
	}
}

// DisabledContext is the outcome when auth is switched off: every caller is
// anonymous and unrestricted.
func DisabledContext() *AuthContext {
	return &AuthContext{
		Scheme:   SchemeDisabled,
		ClientID: "anonymous",
		Level:    LevelAdministrative,
	}
}

// Validator runs the credential scheme chain. Precedence is fixed: ApiKey,
// then BearerToken, then Jwt. A scheme participates only when its material
// is configured and the request presents its credential kind; the first
// participating scheme decides, and its failure is final.
type Validator struct {
	cfg  *config.Config
	jwks *JWKSCache
}

func NewValidator(cfg *config.Config) *Validator {
	v := &Validator{cfg: cfg}
	if cfg.HasJWT() {
		v.jwks = NewJWKSCache(cfg.JWKSURI, cfg.JWKSRefresh)
	}
	return v
}

// ConfiguredSchemes lists the schemes the deployment accepts, in precedence
// order.
func (v *Validator) ConfiguredSchemes() []string {
	if !v.cfg.AuthEnabled {
		return []string{SchemeDisabled}
	}
	var schemes []string
	if v.cfg.HasAPIKeys() {
		schemes = append(schemes, SchemeAPIKey)
	}
	if v.cfg.HasBearerToken() {
		schemes = append(schemes, SchemeBearerToken)
	}
	if v.cfg.HasJWT() {
		schemes = append(schemes, SchemeJWT)
	}
	return schemes
}

// Authenticate validates the request's credential and returns the resulting
// AuthContext. A missing credential is not an error: it yields the anonymous
// context. An invalid credential returns an Unauthorized *models.APIError
// naming the scheme that rejected it.
func (v *Validator) Authenticate(ctx context.Context, r *http.Request) (*AuthContext, error) {
	if !v.cfg.AuthEnabled {
		return DisabledContext(), nil
	}

	apiKey := r.Header.Get(v.cfg.APIKeyHeader)
	bearer := bearerToken(r)

	switch {
	case v.cfg.HasAPIKeys() && apiKey != "":
		return v.validateAPIKey(apiKey)
	case v.cfg.HasBearerToken() && bearer != "":
		return v.validateBearerToken(bearer)
	case v.cfg.HasJWT() && bearer != "":
		return v.validateJWT(ctx, bearer)
	default:
		return AnonymousContext(), nil
	}
}

func (v *Validator) validateAPIKey(key string) (*AuthContext, error) {
	for i, configured := range v.cfg.APIKeys {
		if subtle.ConstantTimeCompare([]byte(configured), []byte(key)) == 1 {
			return &AuthContext{
				Authenticated: true,
				Scheme:        SchemeAPIKey,
				ClientID:      fmt.Sprintf("api-key-client-%d", i+1),
				Scopes:        []string{ScopeRead, ScopeWrite},
				Level:         LevelAuthenticated,
			}, nil
		}
	}
	log.WithField("scheme", SchemeAPIKey).Debug("Credential validation failed")
	return nil, unauthorized(SchemeAPIKey, "Invalid API key")
}

func (v *Validator) validateBearerToken(token string) (*AuthContext, error) {
	if subtle.ConstantTimeCompare([]byte(v.cfg.BearerToken), []byte(token)) == 1 {
		return &AuthContext{
			Authenticated: true,
			Scheme:        SchemeBearerToken,
			ClientID:      "bearer-client",
			Scopes:        []string{ScopeRead, ScopeWrite, ScopeAdmin},
			Level:         LevelAdministrative,
		}, nil
	}
	log.WithField("scheme", SchemeBearerToken).Debug("Credential validation failed")
	return nil, unauthorized(SchemeBearerToken, "Invalid bearer token")
}

func (v *Validator) validateJWT(ctx context.Context, raw string) (*AuthContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(v.cfg.JWTIssuer))
	}
	if v.cfg.JWTAudience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.JWTAudience))
	}

	claims := &AccessClaims{}
	token, err := jwt.NewParser(opts...).ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.jwks.Key(ctx, kid)
	})
	if err != nil || !token.Valid {
		log.WithField("scheme", SchemeJWT).WithError(err).Debug("Credential validation failed")
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, unauthorized(SchemeJWT, "Access token expired")
		}
		return nil, unauthorized(SchemeJWT, "Invalid access token")
	}

	scopes := strings.Fields(claims.Scope)
	for _, required := range v.cfg.RequiredScopes {
		if !containsScope(scopes, required) {
			log.WithFields(map[string]interface{}{
				"scheme":        SchemeJWT,
				"missing_scope": required,
			}).Debug("Credential validation failed")
			return nil, models.NewAPIError(models.ErrUnauthorized, "Access token missing required scope",
				map[string]interface{}{"scheme": SchemeJWT, "missing_scope": required})
		}
	}

	clientID := claims.ClientID
	if clientID == "" {
		clientID = claims.Subject
	}

	return &AuthContext{
		Authenticated: true,
		Scheme:        SchemeJWT,
		ClientID:      clientID,
		UserID:        claims.Subject,
		Scopes:        scopes,
		Level:         levelFromScopes(scopes),
	}, nil
}

func levelFromScopes(scopes []string) Level {
	if containsScope(scopes, ScopeAdmin) {
		return LevelAdministrative
	}
	return LevelAuthenticated
}

func containsScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}

func unauthorized(scheme, message string) *models.APIError {
	return models.NewAPIError(models.ErrUnauthorized, message, map[string]interface{}{
		"scheme": scheme,
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
