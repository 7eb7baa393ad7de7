package build

import (
	"maps"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// variablePattern matches {{ name }} with optional inner whitespace.
var variablePattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// buildTimeLayout renders buildTime as ISO-8601 UTC with milliseconds.
const buildTimeLayout = "2006-01-02T15:04:05.000Z"

// Variables maps placeholder names to scalar values.
type Variables map[string]interface{}

// Overlay returns a new map holding v with every entry of top applied over it.
func (v Variables) Overlay(top Variables) Variables {
	out := make(Variables, len(v)+len(top))
	maps.Copy(out, v)
	maps.Copy(out, top)
	return out
}

// BuildContext is captured once per build and is the only source of
// time-dependent values.
type BuildContext struct {
	Now       time.Time
	SiteName  string
	Variables Variables
}

// DefaultVariables returns the defaults layer for ctx, with the configured
// site variables applied over it.
func DefaultVariables(ctx BuildContext) Variables {
	defaults := Variables{
		"year":      strconv.Itoa(ctx.Now.Year()),
		"buildTime": ctx.Now.UTC().Format(buildTimeLayout),
		"siteName":  ctx.SiteName,
	}
	return defaults.Overlay(ctx.Variables)
}

var titleCaser = cases.Title(language.Und)

// PageVariables returns the page layer for a page at rel, a slash path
// relative to the page root.
func PageVariables(rel string) Variables {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))

	dir := path.Dir(rel)
	if dir == "." {
		dir = ""
	}

	return Variables{
		"pageName":     name,
		"pageTitle":    titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(name)),
		"relativePath": rel,
		"pageDir":      dir,
		"rootPath":     strings.Repeat("../", strings.Count(rel, "/")),
	}
}

// Substitute replaces each {{ name }} in text with the string form of
// vars[name]. Unknown names and values that have no string form are left
// as written. Inserted values are not scanned again.
func Substitute(text string, vars Variables) string {
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]

		value, ok := vars[name]
		if !ok {
			return match
		}

		s, err := cast.ToStringE(value)
		if err != nil {
			return match
		}
		return s
	})
}
