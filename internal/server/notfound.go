package server

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// NotFoundPage renders the page served for missing files.
func NotFoundPage(path string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>404 Not Found</title></head>
<body>
<h1>404 Not Found</h1>
<p>No file at <code>`+templ.EscapeString(path)+`</code> in the output tree.</p>
<p><a href="/">Back to index</a></p>
</body>
</html>
`)
		return err
	})
}
