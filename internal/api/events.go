package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/livebridge/internal/api/models"
	"github.com/smazurov/livebridge/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time publisher, encoder, gateway and calendar events",
		Tags:        []string{"events", "admin"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":              models.SSEConnected{},
		"publisher-connected":    events.PublisherConnectedEvent{},
		"publisher-disconnected": events.PublisherDisconnectedEvent{},
		"publisher-rejected":     events.PublisherRejectedEvent{},
		"encoder-state-changed":  events.EncoderStateChangedEvent{},
		"gateway-publish":        events.GatewayPublishEvent{},
		"calendar-changed":       events.CalendarChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)
		unsubscribe := events.SubscribeAll(s.eventBus, eventCh)
		defer unsubscribe()

		if err := send.Data(models.SSEConnected{
			Message:   "SSE connection established",
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
