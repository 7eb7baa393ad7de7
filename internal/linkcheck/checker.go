// Package linkcheck finds href and src references in compiled pages that do
// not point at a file in the output tree.
package linkcheck

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ExistsFunc reports whether a slash path relative to the output root exists.
type ExistsFunc func(rel string) bool

// BrokenLink is one reference that does not resolve.
type BrokenLink struct {
	Page      string // output-relative page the reference appears in
	Tag       string
	Attribute string
	Ref       string // value as written
	Target    string // output-relative path it resolved to
}

func (b BrokenLink) String() string {
	return fmt.Sprintf("%s: <%s %s=%q> -> %s", b.Page, b.Tag, b.Attribute, b.Ref, b.Target)
}

// Checker resolves references against the output tree.
type Checker struct {
	exists ExistsFunc
}

// New creates a Checker.
func New(exists ExistsFunc) *Checker {
	return &Checker{exists: exists}
}

// Check parses content, the compiled page at page, and returns every local
// reference that does not exist. External, fragment-only and non-file
// references are ignored.
func (c *Checker) Check(page, content string) ([]BrokenLink, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", page, err)
	}

	var broken []BrokenLink
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				if attr.Key != "href" && attr.Key != "src" {
					continue
				}
				target, ok := resolve(page, attr.Val)
				if !ok || c.found(target) {
					continue
				}
				broken = append(broken, BrokenLink{
					Page:      page,
					Tag:       n.Data,
					Attribute: attr.Key,
					Ref:       attr.Val,
					Target:    target,
				})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			traverse(child)
		}
	}
	traverse(doc)

	return broken, nil
}

func (c *Checker) found(target string) bool {
	if c.exists(target) {
		return true
	}
	return c.exists(path.Join(target, "index.html"))
}

// resolve maps ref, found in page, to an output-relative path. ok is false
// for references that are not local files.
func resolve(page, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}

	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	if u.Path == "" {
		return "", false
	}

	if strings.HasPrefix(u.Path, "/") {
		return strings.TrimPrefix(path.Clean(u.Path), "/"), true
	}

	target := path.Join(path.Dir(page), u.Path)
	if target == "." {
		target = ""
	}
	return target, true
}
