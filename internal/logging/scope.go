package logging

import (
	"log/slog"
	"slices"
)

// scopedAttr is an attribute together with the groups open when it was added.
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

// scope tracks WithAttrs and WithGroup calls for handlers that flatten
// records themselves.
type scope struct {
	attrs  []scopedAttr
	groups []string
}

func (s scope) withAttrs(attrs []slog.Attr) scope {
	next := scope{attrs: slices.Clone(s.attrs), groups: s.groups}
	for _, a := range attrs {
		next.attrs = append(next.attrs, scopedAttr{groups: s.groups, attr: a})
	}
	return next
}

func (s scope) withGroup(name string) scope {
	if name == "" {
		return s
	}
	return scope{attrs: s.attrs, groups: append(slices.Clone(s.groups), name)}
}

// walk calls fn for every leaf attribute of the scope and the record,
// expanding nested groups. Empty attributes are skipped.
func (s scope) walk(r slog.Record, fn func(groups []string, a slog.Attr)) {
	for _, sa := range s.attrs {
		walkAttr(sa.groups, sa.attr, fn)
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(s.groups, a, fn)
		return true
	})
}

func walkAttr(groups []string, a slog.Attr, fn func([]string, slog.Attr)) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() != slog.KindGroup {
		fn(groups, a)
		return
	}
	nested := groups
	if a.Key != "" {
		nested = append(slices.Clone(groups), a.Key)
	}
	for _, ga := range a.Value.Group() {
		walkAttr(nested, ga, fn)
	}
}
