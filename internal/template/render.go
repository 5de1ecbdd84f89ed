// Package template implements the placeholder renderer used for notice
// subjects and bodies. Rendering is a pure function: no shared state,
// no errors, malformed templates pass through as literal text.
package template

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Placeholders embed a dotted path between double braces. The path
// token itself must match [A-Za-z0-9_.-]+ after trimming; anything else
// is left alone.
var placeholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Render substitutes context values into tpl in a single linear pass.
// A path that cannot be resolved yields an empty string, never an
// error. Non-string values are substituted as their JSON text form.
// In htmlMode the substituted value is HTML-escaped.
func Render(tpl string, ctx map[string]any, htmlMode bool) string {
	return placeholderRe.ReplaceAllStringFunc(tpl, func(m string) string {
		path := strings.TrimSpace(m[2 : len(m)-2])
		v, ok := lookup(ctx, path)
		if !ok {
			return ""
		}
		s := stringify(v)
		if htmlMode {
			s = htmlEscaper.Replace(s)
		}
		return s
	})
}

// HasPath reports whether the dotted path resolves to a non-nil value.
func HasPath(ctx map[string]any, path string) bool {
	_, ok := lookup(ctx, path)
	return ok
}

func lookup(ctx map[string]any, path string) (any, bool) {
	var cur any = ctx
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
