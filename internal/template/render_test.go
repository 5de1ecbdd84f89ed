package template

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BiblioOps/Noticus/internal/domain/notice"
)

func TestRenderResolvesDottedPaths(t *testing.T) {
	ctx := map[string]any{"a": map[string]any{"b": "X"}}
	require.Equal(t, "X", Render("{{a.b}}", ctx, false))
	require.Equal(t, "X", Render("{{ a.b }}", ctx, false))
}

func TestRenderMissingPathYieldsEmpty(t *testing.T) {
	require.Equal(t, "", Render("{{missing}}", map[string]any{}, false))
	require.Equal(t, "-", Render("{{a.b.c}}-{{x}}", map[string]any{"a": map[string]any{}}, false))
}

func TestRenderNilValueYieldsEmpty(t *testing.T) {
	ctx := map[string]any{"a": nil}
	require.Equal(t, "", Render("{{a}}", ctx, false))
}

func TestRenderHTMLEscaping(t *testing.T) {
	ctx := map[string]any{"x": "<script>"}
	require.Equal(t, "<&lt;script&gt;>", Render("<{{x}}>", ctx, true))
	require.Equal(t, "<<script>>", Render("<{{x}}>", ctx, false))

	ctx = map[string]any{"x": `&"'`}
	require.Equal(t, "&amp;&quot;&#39;", Render("{{x}}", ctx, true))
}

func TestRenderNonStringValuesAsJSON(t *testing.T) {
	ctx := map[string]any{
		"n":    42,
		"f":    true,
		"list": []any{"a", "b"},
	}
	require.Equal(t, "42", Render("{{n}}", ctx, false))
	require.Equal(t, "true", Render("{{f}}", ctx, false))
	require.Equal(t, `["a","b"]`, Render("{{list}}", ctx, false))
}

func TestRenderMalformedTemplateLeftAlone(t *testing.T) {
	ctx := map[string]any{"a": "X"}
	require.Equal(t, "{{a", Render("{{a", ctx, false))
	require.Equal(t, "{{ bad token }}", Render("{{ bad token }}", ctx, false))
	require.Equal(t, "}}X", Render("}}{{a}}", ctx, false))
}

func TestRenderIsPure(t *testing.T) {
	ctx := map[string]any{"a": map[string]any{"b": "X"}}
	first := Render("{{a.b}} {{a.b}}", ctx, false)
	second := Render("{{a.b}} {{a.b}}", ctx, false)
	require.Equal(t, "X X", first)
	require.Equal(t, first, second)
}

func TestHasPath(t *testing.T) {
	ctx := map[string]any{"patron": map[string]any{"name": "Ada"}}
	require.True(t, HasPath(ctx, "patron.name"))
	require.False(t, HasPath(ctx, "patron.email"))
	require.False(t, HasPath(ctx, "item.title"))
}

func TestEveryNoticeTypeHasTemplatesAndRequirements(t *testing.T) {
	for _, nt := range []notice.Type{notice.TypeHoldReady, notice.TypeOverdue, notice.TypeEventReminder} {
		set, ok := ForType(nt)
		require.True(t, ok, "templates for %s", nt)
		require.NotEmpty(t, set.Subject)
		require.NotEmpty(t, set.HTML)
		require.NotEmpty(t, set.Text)
		require.NotEmpty(t, Required(nt))
	}
}

func TestEventReminderRendering(t *testing.T) {
	set, ok := ForType(notice.TypeEventReminder)
	require.True(t, ok)

	ctx := map[string]any{
		"patron":  map[string]any{"name": "Ada Lovelace"},
		"event":   map[string]any{"title": "Poetry Night", "starts_at": "Fri, 05 Sep 2025 18:00", "location": "Reading Room"},
		"library": map[string]any{"name": "City Library"},
	}
	subject := Render(set.Subject, ctx, false)
	require.Equal(t, "Reminder: Poetry Night", subject)

	body := Render(set.Text, ctx, false)
	require.Contains(t, body, "Ada Lovelace")
	require.Contains(t, body, "Reading Room")
	require.Contains(t, body, "City Library")
}
