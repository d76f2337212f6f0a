// Package gateway answers the RTMP gateway's publish lifecycle callbacks
// and applies the stream-key policy before a publish may proceed.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/livebridge/internal/events"
	"github.com/smazurov/livebridge/internal/logging"
	"github.com/smazurov/livebridge/internal/metrics"
)

// Hook actions.
const (
	ActionPrePublish  = "prePublish"
	ActionPostPublish = "postPublish"
	ActionDonePublish = "donePublish"
)

// ErrInvalidPath is returned for stream paths without app and key.
var ErrInvalidPath = errors.New("gateway: stream path must look like /<app>/<key>")

// ErrUnknownAction is returned by Dispatch for unsupported actions.
var ErrUnknownAction = errors.New("gateway: unknown hook action")

// Hooks receives the gateway lifecycle callbacks keyed by stream path.
type Hooks interface {
	// PrePublish decides whether the publish may proceed.
	PrePublish(ctx context.Context, streamPath string) error
	PostPublish(ctx context.Context, streamPath string)
	DonePublish(ctx context.Context, streamPath string)
}

// StreamPath is a parsed "/<app>/<key>" path.
type StreamPath struct {
	App string
	Key string
}

// String returns the path with the key masked.
func (p StreamPath) String() string {
	return "/" + p.App + "/" + maskKey(p.Key)
}

// ParseStreamPath extracts app and key from "/live/<key>". Full RTMP URLs
// and query strings are accepted; the key is the last path segment.
func ParseStreamPath(raw string) (StreamPath, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return StreamPath{}, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		raw = u.Path
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}

	parts := strings.Split(strings.Trim(raw, "/"), "/")
	if len(parts) < 2 {
		return StreamPath{}, ErrInvalidPath
	}
	app := strings.Join(parts[:len(parts)-1], "/")
	key := parts[len(parts)-1]
	if app == "" || key == "" {
		return StreamPath{}, ErrInvalidPath
	}
	return StreamPath{App: app, Key: key}, nil
}

// Publish is one stream currently published through the gateway.
type Publish struct {
	App       string    `json:"app" example:"live" doc:"Application name"`
	Path      string    `json:"path" example:"/live/li***am" doc:"Stream path with the key masked"`
	StartedAt time.Time `json:"startedAt" doc:"When the publish was first allowed"`
}

// Gateway implements Hooks with a KeyPolicy.
type Gateway struct {
	policy KeyPolicy
	bus    *events.Bus
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]Publish
}

// New creates a gateway hook handler. bus may be nil.
func New(policy KeyPolicy, bus *events.Bus) *Gateway {
	logger := logging.GetLogger("gateway")
	if policy == nil {
		policy = AcceptAll{logger: logger}
	}
	return &Gateway{
		policy: policy,
		bus:    bus,
		logger: logger,
		active: make(map[string]Publish),
	}
}

// Policy returns the configured key policy.
func (g *Gateway) Policy() KeyPolicy {
	return g.policy
}

// PrePublish implements Hooks.
func (g *Gateway) PrePublish(ctx context.Context, streamPath string) error {
	path, err := ParseStreamPath(streamPath)
	if err == nil {
		err = g.policy.Validate(ctx, path)
	}

	allowed := err == nil
	g.record(ActionPrePublish, streamPath, allowed, err)
	if !allowed {
		g.logger.Warn("Publish rejected", "path", maskPath(streamPath), "policy", g.policy.Name(), "error", err)
		return err
	}
	// SRS sends no postPublish, so an allowed publish counts as active.
	g.markActive(path)
	g.logger.Info("Publish allowed", "path", path.String(), "policy", g.policy.Name())
	return nil
}

// PostPublish implements Hooks.
func (g *Gateway) PostPublish(_ context.Context, streamPath string) {
	if path, err := ParseStreamPath(streamPath); err == nil {
		g.markActive(path)
	}
	g.record(ActionPostPublish, streamPath, true, nil)
	g.logger.Info("Publish started", "path", maskPath(streamPath))
}

// DonePublish implements Hooks.
func (g *Gateway) DonePublish(_ context.Context, streamPath string) {
	if path, err := ParseStreamPath(streamPath); err == nil {
		g.mu.Lock()
		delete(g.active, path.Key)
		g.mu.Unlock()
	}
	g.record(ActionDonePublish, streamPath, true, nil)
	g.logger.Info("Publish ended", "path", maskPath(streamPath))
}

// Dispatch routes a hook action to the matching Hooks method. Action names
// are case-insensitive and accept SRS spellings (on_publish, on_unpublish).
func (g *Gateway) Dispatch(ctx context.Context, action, streamPath string) error {
	switch NormalizeAction(action) {
	case ActionPrePublish:
		return g.PrePublish(ctx, streamPath)
	case ActionPostPublish:
		g.PostPublish(ctx, streamPath)
		return nil
	case ActionDonePublish:
		g.DonePublish(ctx, streamPath)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// NormalizeAction maps accepted spellings to the canonical action, or "".
func NormalizeAction(action string) string {
	normalized := strings.ToLower(strings.TrimSpace(action))
	normalized = strings.TrimPrefix(normalized, "on_")
	switch normalized {
	case "prepublish", "publish":
		return ActionPrePublish
	case "postpublish":
		return ActionPostPublish
	case "donepublish", "unpublish":
		return ActionDonePublish
	default:
		return ""
	}
}

// Active returns the streams currently published, sorted by app.
func (g *Gateway) Active() []Publish {
	g.mu.Lock()
	list := make([]Publish, 0, len(g.active))
	for _, p := range g.active {
		list = append(list, p)
	}
	g.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].App != list[j].App {
			return list[i].App < list[j].App
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// markActive records path as published, keeping the first start time.
func (g *Gateway) markActive(path StreamPath) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[path.Key]; ok {
		return
	}
	g.active[path.Key] = Publish{App: path.App, Path: path.String(), StartedAt: time.Now()}
}

func (g *Gateway) record(action, streamPath string, allowed bool, err error) {
	metrics.IncGatewayHook(action, allowed)

	ev := events.GatewayPublishEvent{
		Action:     action,
		StreamPath: maskPath(streamPath),
		Allowed:    allowed,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if err != nil {
		ev.Reason = err.Error()
	}
	g.bus.Publish(ev)
}

func maskPath(raw string) string {
	if path, err := ParseStreamPath(raw); err == nil {
		return path.String()
	}
	return raw
}

func maskKey(key string) string {
	runes := []rune(key)
	if len(runes) <= 4 {
		return "***"
	}
	return string(runes[:2]) + "***" + string(runes[len(runes)-2:])
}

var _ Hooks = (*Gateway)(nil)
