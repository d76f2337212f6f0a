package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smazurov/livebridge/internal/api/models"
	"github.com/smazurov/livebridge/internal/gateway"
	"github.com/smazurov/livebridge/internal/logging"
)

func newHookAPI(t *testing.T, policy, key, token string) humatest.TestAPI {
	t.Helper()
	p, err := gateway.NewPolicy(policy, key, logging.GetLogger("gateway"))
	require.NoError(t, err)

	_, api := humatest.New(t)
	s := &Server{
		api:     api,
		options: &Options{Gateway: gateway.New(p, nil), HookToken: token},
		logger:  logging.GetLogger("api"),
	}
	s.registerGatewayRoutes()
	return api
}

func decodeHook(t *testing.T, body []byte) models.GatewayHookData {
	t.Helper()
	var data models.GatewayHookData
	require.NoError(t, json.Unmarshal(body, &data))
	return data
}

func TestHookTargetMergesQuery(t *testing.T) {
	tests := []struct {
		name       string
		input      models.GatewayHookInput
		wantAction string
		wantPath   string
	}{
		{
			name:       "srs body",
			input:      models.GatewayHookInput{Body: models.GatewayHookRequest{Action: "on_publish", App: "live", Stream: "abc"}},
			wantAction: "on_publish",
			wantPath:   "/live/abc",
		},
		{
			name:       "generic body",
			input:      models.GatewayHookInput{Body: models.GatewayHookRequest{Action: "prePublish", StreamPath: "/live/abc"}},
			wantAction: "prePublish",
			wantPath:   "/live/abc",
		},
		{
			name:       "query only",
			input:      models.GatewayHookInput{QueryAction: "on_unpublish", QueryApp: "live", QueryStream: "abc"},
			wantAction: "on_unpublish",
			wantPath:   "/live/abc",
		},
		{
			name:       "missing stream",
			input:      models.GatewayHookInput{Body: models.GatewayHookRequest{Action: "on_publish", App: "live"}},
			wantAction: "on_publish",
			wantPath:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, path := hookTarget(&tt.input)
			assert.Equal(t, tt.wantAction, action)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestHookAcceptAllAllowsAnyKey(t *testing.T) {
	api := newHookAPI(t, gateway.PolicyAcceptAll, "", "")

	resp := api.Post("/api/gateway/hooks", map[string]any{
		"action": "on_publish",
		"app":    "live",
		"stream": "whatever",
	})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 0, decodeHook(t, resp.Body.Bytes()).Code)
}

func TestHookMatchPolicyDenies(t *testing.T) {
	api := newHookAPI(t, gateway.PolicyMatch, "s3cret", "")

	resp := api.Post("/api/gateway/hooks", map[string]any{
		"action":     "prePublish",
		"streamPath": "/live/wrong",
	})
	require.Equal(t, http.StatusForbidden, resp.Code)
	data := decodeHook(t, resp.Body.Bytes())
	assert.Equal(t, http.StatusForbidden, data.Code)
	assert.NotContains(t, data.Message, "wrong")

	resp = api.Post("/api/gateway/hooks", map[string]any{
		"action":     "prePublish",
		"streamPath": "/live/s3cret",
	})
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestHookTokenRequired(t *testing.T) {
	api := newHookAPI(t, gateway.PolicyAcceptAll, "", "hooktoken")
	body := map[string]any{"action": "on_publish", "app": "live", "stream": "abc"}

	assert.Equal(t, http.StatusUnauthorized, api.Post("/api/gateway/hooks", body).Code)
	assert.Equal(t, http.StatusOK, api.Post("/api/gateway/hooks", "Authorization: Bearer hooktoken", body).Code)
	assert.Equal(t, http.StatusOK, api.Post("/api/gateway/hooks?token=hooktoken", body).Code)
}

func TestHookRejectsUnknownAction(t *testing.T) {
	api := newHookAPI(t, gateway.PolicyAcceptAll, "", "")

	resp := api.Post("/api/gateway/hooks", map[string]any{"action": "on_play", "app": "live", "stream": "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestActivePublishesListed(t *testing.T) {
	api := newHookAPI(t, gateway.PolicyMatch, "livestream", "")

	resp := api.Post("/api/gateway/hooks", map[string]any{"action": "on_publish", "app": "live", "stream": "livestream"})
	require.Equal(t, http.StatusOK, resp.Code)
	resp = api.Post("/api/gateway/hooks", map[string]any{"action": "on_publish", "app": "live", "stream": "guess"})
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = api.Get("/api/admin/gateway/publishes")
	require.Equal(t, http.StatusOK, resp.Code)
	var data models.GatewayPublishesData
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &data))
	require.Equal(t, 1, data.Count)
	assert.Equal(t, "/live/li***am", data.Publishes[0].Path)
	assert.NotContains(t, resp.Body.String(), "livestream")

	resp = api.Post("/api/gateway/hooks", map[string]any{"action": "on_unpublish", "app": "live", "stream": "livestream"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = api.Get("/api/admin/gateway/publishes")
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &data))
	assert.Equal(t, 0, data.Count)
	assert.Empty(t, data.Publishes)
}
