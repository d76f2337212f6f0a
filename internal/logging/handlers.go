package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// fanout sends each record to every sink that accepts its level.
type fanout []slog.Handler

func newFanout(sinks ...slog.Handler) slog.Handler {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return fanout(sinks)
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanout) WithGroup(name string) slog.Handler {
	next := make(fanout, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}

// Redactor masks known secret values in strings.
type Redactor struct {
	replacer *strings.Replacer
}

// NewRedactor returns a Redactor for the non-empty secrets, or nil when
// there are none. A nil Redactor returns its input unchanged.
func NewRedactor(secrets ...string) *Redactor {
	var pairs []string
	for _, secret := range secrets {
		if secret != "" {
			pairs = append(pairs, secret, "***")
		}
	}
	if len(pairs) == 0 {
		return nil
	}
	return &Redactor{replacer: strings.NewReplacer(pairs...)}
}

// Redact masks every secret in s.
func (r *Redactor) Redact(s string) string {
	if r == nil {
		return s
	}
	return r.replacer.Replace(s)
}

func (r *Redactor) attr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(r.Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = r.attr(ga)
		}
		a.Value = slog.GroupValue(masked...)
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case error:
			a.Value = slog.StringValue(r.Redact(v.Error()))
		case fmt.Stringer:
			a.Value = slog.StringValue(r.Redact(v.String()))
		case []string:
			masked := make([]string, len(v))
			for i, s := range v {
				masked[i] = r.Redact(s)
			}
			a.Value = slog.AnyValue(masked)
		}
	}
	return a
}

// redactHandler masks secrets before the record reaches next. The
// redactor is looked up per record so loggers built before Initialize
// pick up the configured secrets.
type redactHandler struct {
	next   slog.Handler
	lookup func() *Redactor
}

func newRedactHandler(next slog.Handler, lookup func() *Redactor) slog.Handler {
	return &redactHandler{next: next, lookup: lookup}
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, r slog.Record) error {
	red := h.lookup()
	if red == nil {
		return h.next.Handle(ctx, r)
	}

	masked := slog.NewRecord(r.Time, r.Level, red.Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(red.attr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if red := h.lookup(); red != nil {
		masked := make([]slog.Attr, len(attrs))
		for i, a := range attrs {
			masked[i] = red.attr(a)
		}
		attrs = masked
	}
	return &redactHandler{next: h.next.WithAttrs(attrs), lookup: h.lookup}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), lookup: h.lookup}
}
