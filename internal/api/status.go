package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/livebridge/internal/api/models"
)

func (s *Server) registerStatusRoutes() {
	agg := s.options.Status

	huma.Register(s.api, huma.Operation{
		OperationID: "get-stream-status",
		Method:      http.MethodGet,
		Path:        "/api/stream/status",
		Summary:     "Stream status",
		Description: "Normalized live status from the first streaming backend that answers. Always 200; failures are reported in the body.",
		Tags:        []string{"stream"},
		Security:    []map[string][]string{},
	}, func(ctx context.Context, _ *struct{}) (*models.StreamStatusResponse, error) {
		return &models.StreamStatusResponse{
			CacheControl: "no-store",
			Body:         agg.GetStatus(ctx).Public(),
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-admin-stream-status",
		Method:      http.MethodGet,
		Path:        "/api/admin/stream/status",
		Summary:     "Stream status with credentials",
		Description: "Same as the public status, including the RTMP stream key.",
		Tags:        []string{"stream", "admin"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(ctx context.Context, _ *struct{}) (*models.StreamStatusResponse, error) {
		return &models.StreamStatusResponse{
			CacheControl: "no-store",
			Body:         agg.GetStatus(ctx),
		}, nil
	})
}
