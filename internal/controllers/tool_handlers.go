package controllers

import (
	"context"
	"fmt"

	"github.com/franciscosanchezn/pizza-mcp/internal/auth"
	"github.com/franciscosanchezn/pizza-mcp/internal/services"
)

func (ctrl *mcpController) handleGetPizzas(ctx context.Context, _ *auth.AuthContext, _ map[string]interface{}) (interface{}, error) {
	return ctrl.catalog.ListPizzas(ctx)
}

func (ctrl *mcpController) handleGetPizzaByID(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	id, err := requiredStringArg(args, "id")
	if err != nil {
		return nil, err
	}
	return ctrl.catalog.GetPizza(ctx, id)
}

func (ctrl *mcpController) handleGetToppings(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	return ctrl.catalog.ListToppings(ctx, stringArg(args, "category"))
}

func (ctrl *mcpController) handleGetToppingByID(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	id, err := requiredStringArg(args, "id")
	if err != nil {
		return nil, err
	}
	return ctrl.catalog.GetTopping(ctx, id)
}

func (ctrl *mcpController) handleGetToppingCategories(ctx context.Context, _ *auth.AuthContext, _ map[string]interface{}) (interface{}, error) {
	return ctrl.catalog.ListCategories(ctx)
}

func (ctrl *mcpController) handleGetPopularToppings(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	limit, err := intArg(args, "limit", 10)
	if err != nil {
		return nil, err
	}
	return ctrl.catalog.PopularToppings(ctx, limit)
}

func (ctrl *mcpController) handleGetOrders(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	filter := services.OrderFilter{
		UserID:   stringArg(args, "userId"),
		Statuses: services.ParseStatusFilter(stringArg(args, "status")),
		Since:    services.ParseSinceFilter(stringArg(args, "since")),
	}
	return ctrl.orders.ListOrders(ctx, filter)
}

func (ctrl *mcpController) handleGetOrderByID(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	id, err := requiredStringArg(args, "id")
	if err != nil {
		return nil, err
	}
	return ctrl.orders.GetOrder(ctx, id)
}

func (ctrl *mcpController) handlePlaceOrder(ctx context.Context, caller *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	userID, err := requiredStringArg(args, "userId")
	if err != nil {
		return nil, err
	}
	if err := requireActingUser(caller, userID); err != nil {
		return nil, err
	}
	items, err := parseOrderItems(args["items"])
	if err != nil {
		return nil, err
	}

	var nickname *string
	if s := stringArg(args, "nickname"); s != "" {
		nickname = &s
	}

	return ctrl.orders.PlaceOrder(ctx, userID, nickname, items)
}

func (ctrl *mcpController) handleDeleteOrderByID(ctx context.Context, caller *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	id, err := requiredStringArg(args, "id")
	if err != nil {
		return nil, err
	}
	userID, err := requiredStringArg(args, "userId")
	if err != nil {
		return nil, err
	}
	if err := requireActingUser(caller, userID); err != nil {
		return nil, err
	}

	// Administrative contexts may cancel on behalf of any owner.
	admin := caller.Allows(auth.LevelAdministrative)
	if err := ctrl.orders.CancelOrder(ctx, id, userID, admin); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Order %s has been cancelled", id),
	}, nil
}

func (ctrl *mcpController) handleGetStoreLocations(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	return ctrl.catalog.ListLocations(ctx, stringArg(args, "city"))
}

func (ctrl *mcpController) handleGetActiveOffers(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	return ctrl.catalog.ActiveOffers(ctx, stringArg(args, "location_id"))
}

func (ctrl *mcpController) handleGetAuthInfo(_ context.Context, caller *auth.AuthContext, _ map[string]interface{}) (interface{}, error) {
	if !caller.Authenticated {
		message := "No authentication provided"
		if caller.Scheme == auth.SchemeDisabled {
			message = "Authentication is disabled on this server"
		}
		return map[string]interface{}{
			"authenticated": false,
			"message":       message,
			"schemes":       ctrl.schemes,
		}, nil
	}

	info := map[string]interface{}{
		"authenticated": true,
		"scheme":        caller.Scheme,
		"client_id":     caller.ClientID,
		"scopes":        caller.Scopes,
		"level":         caller.Level.String(),
	}
	if caller.UserID != "" {
		info["user_id"] = caller.UserID
	}
	return info, nil
}

func (ctrl *mcpController) handleNotifyMenuUpdate(ctx context.Context, _ *auth.AuthContext, args map[string]interface{}) (interface{}, error) {
	result, err := ctrl.notifier.NotifyCatalogChange(ctx, stringArg(args, "notification_type"))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":            true,
		"message":            "MCP notifications sent to connected clients",
		"notifications_sent": result.NotificationsSent,
		"notification_type":  result.NotificationType,
		"delivery":           result.Delivery,
	}, nil
}

func (ctrl *mcpController) handleRefreshMenuCache(ctx context.Context, _ *auth.AuthContext, _ map[string]interface{}) (interface{}, error) {
	result, err := ctrl.notifier.RefreshAndNotify(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"success":           true,
		"message":           "Menu cache refreshed and clients notified",
		"summary":           result.Summary,
		"notification_sent": result.NotificationSent,
		"delivery":          result.Delivery,
	}, nil
}
