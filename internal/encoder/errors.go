package encoder

import "errors"

// Sentinel errors returned by Acquire.
var (
	// ErrNoTarget means no RTMP URL is configured.
	ErrNoTarget = errors.New("encoder: rtmp target not configured")
	// ErrPublisherLimit means the publisher limit is already reached.
	ErrPublisherLimit = errors.New("encoder: publisher limit reached")
	// ErrClosed means the supervisor was closed.
	ErrClosed = errors.New("encoder: supervisor closed")
)
