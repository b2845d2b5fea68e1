package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/mcp"
	"github.com/franciscosanchezn/pizza-mcp/internal/metrics"
	"github.com/franciscosanchezn/pizza-mcp/internal/middleware"
	"github.com/franciscosanchezn/pizza-mcp/internal/models"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// Server identity reported in the initialize handshake.
const (
	serverName    = "pizza-mcp"
	serverVersion = "1.0.0"
)

// MCPController serves the tool invocation endpoint: JSON-RPC 2.0 over
// POST /mcp plus the SSE notification stream on GET /mcp
type MCPController interface {
	// HandleRPC processes one JSON-RPC request envelope
	HandleRPC(c *gin.Context)
	// HandleSSE upgrades the request to a server-sent event stream
	HandleSSE(c *gin.Context)
}

type mcpController struct {
	catalog  services.CatalogCache
	orders   services.OrderService
	notifier services.Notifier

	// schemes lists the configured credential schemes, reported by
	// get_auth_info to unauthenticated callers.
	schemes []string

	tools []toolDefinition
	index map[string]*toolDefinition
}

// NewMCPController creates a new instance of MCPController
func NewMCPController(catalog services.CatalogCache, orders services.OrderService, notifier services.Notifier, schemes []string) *mcpController {
	ctrl := &mcpController{
		catalog:  catalog,
		orders:   orders,
		notifier: notifier,
		schemes:  schemes,
	}
	ctrl.tools = ctrl.toolDefinitions()
	ctrl.index = make(map[string]*toolDefinition, len(ctrl.tools))
	for i := range ctrl.tools {
		ctrl.index[ctrl.tools[i].Tool.Name] = &ctrl.tools[i]
	}
	return ctrl
}

// HandleRPC godoc
// @Summary Tool invocation endpoint
// @Description JSON-RPC 2.0 endpoint speaking the MCP tool protocol: initialize, ping, tools/list and tools/call. Notifications are acknowledged with 202 and no body.
// @Tags mcp
// @Accept json
// @Produce json
// @Param request body mcp.Request true "JSON-RPC request"
// @Success 200 {object} mcp.Response
// @Success 202 "Notification accepted"
// @Failure 400 {object} mcp.Response
// @Failure 401 {object} models.APIError
// @Security ApiKeyAuth
// @Security BearerAuth
// @Router /mcp [post]
func (ctrl *mcpController) HandleRPC(c *gin.Context) {
	var req mcp.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, mcp.NewErrorResponse(nil, mcp.CodeParseError, "Parse error", nil))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		c.JSON(http.StatusBadRequest, mcp.NewErrorResponse(req.ID, mcp.CodeInvalidRequest, "Invalid request", nil))
		return
	}

	// Client-to-server notifications carry no ID and expect no response.
	if req.IsNotification() {
		log.WithField("method", req.Method).Debug("Notification received")
		c.Status(http.StatusAccepted)
		return
	}

	var resp mcp.Response
	switch req.Method {
	case mcp.MethodInitialize:
		resp = ctrl.handleInitialize(req)
	case mcp.MethodPing:
		resp = mcp.NewResponse(req.ID, struct{}{})
	case mcp.MethodToolsList:
		resp = mcp.NewResponse(req.ID, mcp.ListToolsResult{Tools: ctrl.listTools()})
	case mcp.MethodToolsCall:
		resp = ctrl.handleToolsCall(c, req)
	default:
		resp = mcp.NewErrorResponse(req.ID, mcp.CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method), nil)
	}
	c.JSON(http.StatusOK, resp)
}

// initializeParams is the subset of the initialize params the server reads.
type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      mcp.Implementation `json:"clientInfo"`
}

func (ctrl *mcpController) handleInitialize(req mcp.Request) mcp.Response {
	var params initializeParams
	if len(req.Params) > 0 {
		// Params are advisory here; a malformed clientInfo never fails the
		// handshake.
		_ = json.Unmarshal(req.Params, &params)
	}
	log.WithFields(logrus.Fields{
		"client_name":      params.ClientInfo.Name,
		"client_version":   params.ClientInfo.Version,
		"protocol_version": params.ProtocolVersion,
	}).Info("Client initialized")

	return mcp.NewResponse(req.ID, mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.Capabilities{
			Tools:     &mcp.ToolsCapability{ListChanged: true},
			Resources: &mcp.ResourcesCapability{ListChanged: true},
		},
		ServerInfo: mcp.Implementation{Name: serverName, Version: serverVersion},
	})
}

// listTools returns the wire descriptions of every registered tool. The
// full registry is always advertised; level checks happen at call time.
func (ctrl *mcpController) listTools() []mcp.Tool {
	tools := make([]mcp.Tool, len(ctrl.tools))
	for i, def := range ctrl.tools {
		tools[i] = def.Tool
	}
	return tools
}

func (ctrl *mcpController) handleToolsCall(c *gin.Context, req mcp.Request) mcp.Response {
	var params mcp.CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.CodeInvalidParams, "Invalid tools/call params", nil)
	}
	def, ok := ctrl.index[params.Name]
	if !ok {
		return mcp.NewErrorResponse(req.ID, mcp.CodeInvalidParams, fmt.Sprintf("Unknown tool: %s", params.Name), nil)
	}

	caller := middleware.GetAuthContext(c)
	outcome := "error"
	defer metrics.ObserveToolCall(params.Name, &outcome, time.Now())

	// Dispatch-level rejection: the caller never reaches the tool, so the
	// failure is a protocol error rather than an in-band result.
	if !caller.Allows(def.Level) {
		if !caller.Authenticated {
			outcome = "unauthorized"
			apiErr := models.NewAPIError(models.ErrUnauthorized, "Authentication required",
				map[string]interface{}{"tool": params.Name})
			return mcp.NewErrorResponse(req.ID, mcp.CodeUnauthorized, apiErr.Message, apiErr)
		}
		outcome = "forbidden"
		log.WithFields(logrus.Fields{
			"tool":      params.Name,
			"client_id": caller.ClientID,
			"required":  def.Level.String(),
		}).Warn("Tool call forbidden")
		apiErr := models.NewAPIError(models.ErrForbidden, "Insufficient permissions",
			map[string]interface{}{"tool": params.Name, "required_level": def.Level.String()})
		return mcp.NewErrorResponse(req.ID, mcp.CodeForbidden, apiErr.Message, apiErr)
	}

	args := params.Arguments
	if args == nil {
		args = map[string]interface{}{}
	}

	payload, err := def.Handler(c.Request.Context(), caller, args)
	if err != nil {
		apiErr, ok := models.AsAPIError(err)
		if !ok {
			log.WithFields(logrus.Fields{
				"tool":  params.Name,
				"error": err.Error(),
			}).Error("Tool call failed")
			apiErr = models.NewAPIError(models.ErrInternalServer, "Internal error")
		}
		return mcp.NewResponse(req.ID, mcp.ErrorResult(apiErr))
	}

	result, err := mcp.TextResult(payload)
	if err != nil {
		log.WithFields(logrus.Fields{
			"tool":  params.Name,
			"error": err.Error(),
		}).Error("Failed to encode tool result")
		return mcp.NewErrorResponse(req.ID, mcp.CodeInternalError, "Failed to encode tool result", nil)
	}
	outcome = "ok"
	return mcp.NewResponse(req.ID, result)
}

// requireActingUser enforces the caller/user binding on order mutations:
// a credential that carries a user identity may only act as that user,
// unless it holds administrative access.
func requireActingUser(caller *auth.AuthContext, userID string) error {
	if caller.UserID == "" || caller.UserID == userID {
		return nil
	}
	if caller.Allows(auth.LevelAdministrative) {
		return nil
	}
	return models.NewAPIError(models.ErrForbidden, "Cannot act on behalf of another user",
		map[string]interface{}{"token_user": caller.UserID, "requested_user": userID})
}
