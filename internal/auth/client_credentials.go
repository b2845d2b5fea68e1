package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-oauth2/oauth2/v4"
	"gorm.io/gorm"

	internalmodels "github.com/franciscosanchezn/pizza-mcp/internal/models"
)

// HandleToken handles the token endpoint for the client credentials grant
// @Summary Token Endpoint
// @Description Obtain an access token using the client_credentials grant
// @Tags OAuth2
// @Accept application/x-www-form-urlencoded
// @Produce json
// @Param grant_type formData string true "Grant type: client_credentials"
// @Param client_id formData string true "Client ID"
// @Param client_secret formData string true "Client Secret"
// @Param scope formData string false "Requested scope (space separated, must be within the client's registered scopes)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} models.OAuth2Error
// @Failure 401 {object} models.OAuth2Error
// @Router /oauth/token [post]
func (o *OAuthService) HandleToken(c *gin.Context) {
	grantType := c.PostForm("grant_type")

	switch grantType {
	case "client_credentials":
		o.handleClientCredentials(c)
	default:
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(
			internalmodels.ErrUnsupportedGrantType,
			"only the client_credentials grant is supported"))
	}
}

func (o *OAuthService) handleClientCredentials(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")

	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(
			internalmodels.ErrInvalidRequest,
			"client_id and client_secret are required"))
		return
	}

	// Validate client
	var client internalmodels.OAuthClient
	if err := o.db.WithContext(c).Where("id = ?", clientID).First(&client).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusUnauthorized, internalmodels.NewOAuth2Error(
				internalmodels.ErrInvalidClient, "unknown client"))
			return
		}
		log.WithError(err).Error("Failed to load OAuth client")
		c.JSON(http.StatusInternalServerError, internalmodels.NewOAuth2Error(
			"server_error", "client lookup failed"))
		return
	}

	// Verify client secret against the stored bcrypt hash
	if !client.VerifyPassword(clientSecret) {
		c.JSON(http.StatusUnauthorized, internalmodels.NewOAuth2Error(
			internalmodels.ErrInvalidClient, "client authentication failed"))
		return
	}

	// A requested scope must stay within the client's registered scopes;
	// absent a request the full registered set is granted.
	scope := c.PostForm("scope")
	if scope == "" {
		scope = client.Scopes
	} else if !scopeWithin(scope, client.Scopes) {
		c.JSON(http.StatusBadRequest, internalmodels.NewOAuth2Error(
			internalmodels.ErrInvalidScope,
			"requested scope exceeds the client's registered scopes"))
		return
	}

	// Generate token using the OAuth2 manager
	ti, err := o.server.Manager.GenerateAccessToken(c, oauth2.ClientCredentials, &oauth2.TokenGenerateRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scope:        scope,
	})
	if err != nil {
		log.WithError(err).Error("Access token generation failed")
		c.JSON(http.StatusInternalServerError, internalmodels.NewOAuth2Error(
			"server_error", "token generation failed"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": ti.GetAccess(),
		"token_type":   "Bearer",
		"expires_in":   int64(ti.GetAccessExpiresIn().Seconds()),
		"scope":        ti.GetScope(),
	})
}

// scopeWithin reports whether every requested scope is present in the
// space-separated registered set.
func scopeWithin(requested, registered string) bool {
	allowed := make(map[string]bool)
	for _, s := range strings.Fields(registered) {
		allowed[s] = true
	}
	for _, s := range strings.Fields(requested) {
		if !allowed[s] {
			return false
		}
	}
	return true
}
