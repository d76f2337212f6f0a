package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/livebridge/internal/api/models"
	"github.com/smazurov/livebridge/internal/ingest"
)

func (s *Server) registerEncoderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-encoder",
		Method:      http.MethodGet,
		Path:        "/api/admin/encoder",
		Summary:     "Encoder status",
		Description: "Encoder supervisor counters, the encoder command line and live publishers",
		Tags:        []string{"encoder", "admin"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EncoderResponse, error) {
		sup := s.options.Supervisor

		publishers := []ingest.PublisherInfo{}
		if s.options.Ingest != nil {
			publishers = s.options.Ingest.Publishers()
		}

		return &models.EncoderResponse{
			Body: models.EncoderData{
				Stats:      sup.Stats(),
				Args:       sup.RedactedArgs(),
				Publishers: publishers,
			},
		}, nil
	})
}
