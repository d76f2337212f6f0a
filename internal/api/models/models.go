package models

import (
	"github.com/smazurov/livebridge/internal/calendar"
	"github.com/smazurov/livebridge/internal/encoder"
	"github.com/smazurov/livebridge/internal/gateway"
	"github.com/smazurov/livebridge/internal/ingest"
	"github.com/smazurov/livebridge/internal/status"
	"github.com/smazurov/livebridge/internal/version"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

type VersionResponse struct {
	Body version.Info
}

// Stream status models
type StreamStatusResponse struct {
	CacheControl string `header:"Cache-Control"`
	Body         status.Snapshot
}

// Encoder models
type EncoderData struct {
	Stats      encoder.Stats          `json:"stats" doc:"Encoder supervisor counters"`
	Args       []string               `json:"args,omitempty" doc:"Encoder argv with the stream key masked"`
	Publishers []ingest.PublisherInfo `json:"publishers" doc:"Live ingest connections"`
}

type EncoderResponse struct {
	Body EncoderData
}

// Gateway hook models
type GatewayHookRequest struct {
	_ struct{} `json:"-" additionalProperties:"true"`

	Action     string `json:"action,omitempty" example:"on_publish" doc:"Hook action: on_publish, on_unpublish, prePublish, postPublish, donePublish"`
	App        string `json:"app,omitempty" example:"live" doc:"SRS application name"`
	Stream     string `json:"stream,omitempty" example:"livestream" doc:"SRS stream name (the stream key)"`
	Param      string `json:"param,omitempty" example:"?token=abc" doc:"SRS query parameters of the publish URL"`
	StreamPath string `json:"streamPath,omitempty" example:"/live/livestream" doc:"Stream path for generic gateways"`
	ClientID   string `json:"client_id,omitempty" doc:"Gateway client identifier"`
	IP         string `json:"ip,omitempty" example:"203.0.113.7" doc:"Publisher address"`
}

type GatewayHookInput struct {
	Authorization string             `header:"Authorization" doc:"Bearer hook token"`
	Token         string             `query:"token" doc:"Hook token for gateways that cannot set headers"`
	QueryAction   string             `query:"action" doc:"Hook action when the gateway sends no body"`
	QueryApp      string             `query:"app" doc:"Application name when the gateway sends no body"`
	QueryStream   string             `query:"stream" doc:"Stream name when the gateway sends no body"`
	Body          GatewayHookRequest `required:"false"`
}

type GatewayHookData struct {
	Code    int    `json:"code" example:"0" doc:"0 allows the publish, anything else denies it"`
	Message string `json:"message,omitempty" doc:"Denial reason"`
}

type GatewayHookResponse struct {
	Status int
	Body   GatewayHookData
}

type GatewayPublishesData struct {
	Publishes []gateway.Publish `json:"publishes" doc:"Active publishes ordered by app"`
	Count     int               `json:"count" example:"1" doc:"Number of active publishes"`
}

type GatewayPublishesResponse struct {
	Body GatewayPublishesData
}

// Calendar models
type CalendarListData struct {
	Events []calendar.Event `json:"events" doc:"Calendar events ordered by start time"`
	Count  int              `json:"count" example:"3" doc:"Number of events"`
}

type CalendarListResponse struct {
	Body CalendarListData
}

type CalendarEventResponse struct {
	Body calendar.Event
}

type CalendarIDInput struct {
	ID string `path:"id" doc:"Event identifier"`
}

type CalendarCreateInput struct {
	Body calendar.Input
}

type CalendarUpdateInput struct {
	ID   string `path:"id" doc:"Event identifier"`
	Body calendar.Input
}

// SSEConnected is the first message on every event stream.
type SSEConnected struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Greeting"`
	Timestamp string `json:"timestamp" doc:"Connection time"`
}
