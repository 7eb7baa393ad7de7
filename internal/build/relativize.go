package build

import "regexp"

// rootAbsoluteRef matches href="/x" and src="/x" but not href="//host" or
// a bare href="/".
var rootAbsoluteRef = regexp.MustCompile(`(href|src)="/([^/"][^"]*)"`)

// Relativize strips the leading slash from root-absolute href and src values
// so the output can be served from a sub-path.
func Relativize(text string) string {
	return rootAbsoluteRef.ReplaceAllString(text, `${1}="${2}"`)
}
