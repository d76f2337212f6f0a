package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/livebridge/internal/api/models"
	"github.com/smazurov/livebridge/internal/gateway"
)

func (s *Server) registerGatewayRoutes() {
	gw := s.options.Gateway

	// Authenticated by the shared hook token, not by admin credentials
	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-hook",
		Method:      http.MethodPost,
		Path:        "/api/gateway/hooks",
		Summary:     "RTMP gateway hook",
		Description: "Publish lifecycle callback from the RTMP gateway. Accepts SRS http_hooks bodies (on_publish, on_unpublish) " +
			"and generic bodies (prePublish, postPublish, donePublish with streamPath). Code 0 allows the publish.",
		Tags:     []string{"gateway"},
		Security: []map[string][]string{},
		Errors:   []int{400, 401},
	}, func(ctx context.Context, input *models.GatewayHookInput) (*models.GatewayHookResponse, error) {
		if !gateway.TokenAuthorized(s.options.HookToken, input.Authorization, input.Token) {
			return nil, huma.Error401Unauthorized("invalid hook token")
		}

		action, streamPath := hookTarget(input)
		if gateway.NormalizeAction(action) == "" {
			return nil, huma.Error400BadRequest("unsupported hook action: " + action)
		}
		if streamPath == "" {
			return nil, huma.Error400BadRequest("stream path is required")
		}

		if err := gw.Dispatch(ctx, action, streamPath); err != nil {
			return &models.GatewayHookResponse{
				Status: http.StatusForbidden,
				Body:   models.GatewayHookData{Code: http.StatusForbidden, Message: err.Error()},
			}, nil
		}

		return &models.GatewayHookResponse{
			Status: http.StatusOK,
			Body:   models.GatewayHookData{Code: 0},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "list-gateway-publishes",
		Method:      http.MethodGet,
		Path:        "/api/admin/gateway/publishes",
		Summary:     "Active publishes",
		Description: "Streams the gateway allowed and has not yet seen end, with stream keys masked",
		Tags:        []string{"gateway", "admin"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.GatewayPublishesResponse, error) {
		active := gw.Active()
		return &models.GatewayPublishesResponse{
			Body: models.GatewayPublishesData{Publishes: active, Count: len(active)},
		}, nil
	})
}

// hookTarget merges body and query fields. SRS sends app and stream,
// generic gateways send streamPath.
func hookTarget(input *models.GatewayHookInput) (action, streamPath string) {
	body := input.Body
	action = firstNonEmpty(body.Action, input.QueryAction)

	if body.StreamPath != "" {
		return action, body.StreamPath
	}

	app := firstNonEmpty(body.App, input.QueryApp)
	stream := firstNonEmpty(body.Stream, input.QueryStream)
	if app == "" || stream == "" {
		return action, ""
	}
	return action, "/" + app + "/" + stream
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
