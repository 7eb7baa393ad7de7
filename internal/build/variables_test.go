package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	vars := Variables{
		"name":    "stitch",
		"count":   3,
		"ratio":   1.5,
		"empty":   "",
		"nested":  "{{ name }}",
		"complex": []string{"a"},
	}

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "{{name}}", "stitch"},
		{"whitespace", "{{   name  }}", "stitch"},
		{"number", "n={{ count }}", "n=3"},
		{"float", "{{ ratio }}", "1.5"},
		{"unknown kept", "{{ doesNotExist }}", "{{ doesNotExist }}"},
		{"empty value", "[{{ empty }}]", "[]"},
		{"single pass", "{{ nested }}", "{{ name }}"},
		{"non scalar kept", "{{ complex }}", "{{ complex }}"},
		{"not an identifier", "{{ a-b }}", "{{ a-b }}"},
		{"repeated", "{{name}}/{{name}}", "stitch/stitch"},
		{"no placeholders", "<p>{ name }</p>", "<p>{ name }</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.in, vars))
		})
	}
}

func TestDefaultVariables(t *testing.T) {
	vars := DefaultVariables(BuildContext{
		Now:       fixedNow,
		SiteName:  "Museo",
		Variables: Variables{"siteName": "Override", "curator": "Ana"},
	})

	assert.Equal(t, "2026", vars["year"])
	assert.Equal(t, "2026-03-14T09:26:53.589Z", vars["buildTime"])
	assert.Equal(t, "Override", vars["siteName"])
	assert.Equal(t, "Ana", vars["curator"])
}

func TestPageVariables(t *testing.T) {
	tests := []struct {
		rel   string
		name  string
		title string
		dir   string
		root  string
	}{
		{"index.html", "index", "Index", "", ""},
		{"docs/getting-started.html", "getting-started", "Getting Started", "docs", "../"},
		{"a/b/my_page.md", "my_page", "My Page", "a/b", "../../"},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			vars := PageVariables(tt.rel)
			assert.Equal(t, tt.name, vars["pageName"])
			assert.Equal(t, tt.title, vars["pageTitle"])
			assert.Equal(t, tt.rel, vars["relativePath"])
			assert.Equal(t, tt.dir, vars["pageDir"])
			assert.Equal(t, tt.root, vars["rootPath"])
		})
	}
}

func TestOverlayDoesNotMutate(t *testing.T) {
	base := Variables{"a": "1"}
	top := Variables{"a": "2", "b": "3"}

	out := base.Overlay(top)

	assert.Equal(t, Variables{"a": "2", "b": "3"}, out)
	assert.Equal(t, Variables{"a": "1"}, base)
}
