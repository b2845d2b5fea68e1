package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"strings"

	"github.com/go-oauth2/oauth2/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims is the claim set minted into issued access tokens. The scope
// and client_id claims are what the validation side inspects to derive the
// caller's access level.
type AccessClaims struct {
	Scope    string `json:"scope,omitempty"`
	ClientID string `json:"client_id"`
	jwt.RegisteredClaims
}

// JWTAccessGenerate signs RS256 access tokens carrying issuer, audience and
// scope claims so that tokens minted here verify against the JWKS document
// the issuer publishes.
type JWTAccessGenerate struct {
	Issuer     string
	Audience   string
	KeyID      string
	PrivateKey *rsa.PrivateKey
}

func NewJWTAccessGenerate(issuer, audience, kid string, key *rsa.PrivateKey) *JWTAccessGenerate {
	return &JWTAccessGenerate{
		Issuer:     issuer,
		Audience:   audience,
		KeyID:      kid,
		PrivateKey: key,
	}
}

// Token implements oauth2.AccessGenerate.
func (g *JWTAccessGenerate) Token(ctx context.Context, data *oauth2.GenerateBasic, isGenRefresh bool) (string, string, error) {
	createAt := data.TokenInfo.GetAccessCreateAt()
	expiresAt := createAt.Add(data.TokenInfo.GetAccessExpiresIn())

	// Client credentials grants carry no end user, so the client itself
	// is the token subject.
	subject := data.UserID
	if subject == "" {
		subject = data.Client.GetID()
	}

	claims := &AccessClaims{
		Scope:    data.TokenInfo.GetScope(),
		ClientID: data.Client.GetID(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.Issuer,
			Audience:  jwt.ClaimStrings{g.Audience},
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(createAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.KeyID != "" {
		token.Header["kid"] = g.KeyID
	}

	access, err := token.SignedString(g.PrivateKey)
	if err != nil {
		return "", "", err
	}

	refresh := ""
	if isGenRefresh {
		t := uuid.NewSHA1(uuid.Must(uuid.NewRandom()), []byte(access)).String()
		refresh = base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(t))
		refresh = strings.ToUpper(refresh)
	}

	return access, refresh, nil
}
