package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Policy names accepted by NewPolicy.
const (
	PolicyAcceptAll = "accept-all"
	PolicyMatch     = "match"
)

// ErrKeyRejected is returned when a stream key fails validation.
var ErrKeyRejected = errors.New("gateway: stream key rejected")

// KeyPolicy decides whether a stream key may publish.
type KeyPolicy interface {
	Name() string
	Validate(ctx context.Context, path StreamPath) error
}

// NewPolicy returns the policy with the given name. "match" requires a
// configured stream key.
func NewPolicy(name, streamKey string, logger *slog.Logger) (KeyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PolicyAcceptAll:
		return AcceptAll{logger: logger}, nil
	case PolicyMatch:
		if strings.TrimSpace(streamKey) == "" {
			return nil, fmt.Errorf("gateway: policy %q requires a stream key", PolicyMatch)
		}
		return MatchKey{key: strings.TrimSpace(streamKey)}, nil
	default:
		return nil, fmt.Errorf("gateway: unknown key policy %q", name)
	}
}

// AcceptAll lets every stream key publish. Each accepted publish is
// logged as unvalidated.
type AcceptAll struct {
	logger *slog.Logger
}

// Name implements KeyPolicy.
func (AcceptAll) Name() string { return PolicyAcceptAll }

// Validate implements KeyPolicy.
func (p AcceptAll) Validate(_ context.Context, path StreamPath) error {
	if p.logger != nil {
		p.logger.Warn("Stream key not validated, accepting publish", "app", path.App, "policy", PolicyAcceptAll)
	}
	return nil
}

// MatchKey accepts only the configured stream key.
type MatchKey struct {
	key string
}

// Name implements KeyPolicy.
func (MatchKey) Name() string { return PolicyMatch }

// Validate implements KeyPolicy.
func (p MatchKey) Validate(_ context.Context, path StreamPath) error {
	if !constantTimeEqual(p.key, path.Key) {
		return ErrKeyRejected
	}
	return nil
}

// TokenAuthorized reports whether a hook request carries the shared token,
// either as a Bearer Authorization header or as a token query value.
// An empty expected token authorizes every request.
func TokenAuthorized(expected, authHeader, queryToken string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}

	if authHeader = strings.TrimSpace(authHeader); authHeader != "" {
		if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if constantTimeEqual(expected, strings.TrimSpace(parts[1])) {
				return true
			}
		}
	}

	if queryToken = strings.TrimSpace(queryToken); queryToken != "" {
		return constantTimeEqual(expected, queryToken)
	}
	return false
}

func constantTimeEqual(expected, provided string) bool {
	if expected == "" || provided == "" {
		return false
	}
	if len(expected) != len(provided) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
