package server

import (
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"

	stitcherrors "github.com/conneroisu/stitch/internal/errors"
	"github.com/conneroisu/stitch/internal/validation"
	"github.com/spf13/afero"
)

// contentTypes is the fixed extension table; anything else is served as
// application/octet-stream.
var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript",
	".json": "application/json",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".ico":  "image/x-icon",
	".pdf":  "application/pdf",
	".glb":  "model/gltf-binary",
	".gltf": "model/gltf+json",
}

// ContentType returns the served content type for name.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// StaticHandler serves files below the output root. "/" and directories
// map to index.html; paths escaping the root are forbidden.
func (s *DevServer) StaticHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "" || urlPath == "/" {
			urlPath = "/index.html"
		}

		target, err := validation.ResolveWithin(s.opts.Root, strings.TrimPrefix(urlPath, "/"))
		if err != nil {
			if errors.Is(err, stitcherrors.ErrPathEscapesRoot) {
				s.logger.Warn(r.Context(), err, "Rejected path outside output root", "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		if info, err := s.fs.Stat(target); err == nil && info.IsDir() {
			target = filepath.Join(target, "index.html")
		}

		data, err := afero.ReadFile(s.fs, target)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				s.logger.Error(r.Context(), err, "Could not read file", "path", target)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			s.notFound(w, r)
			return
		}

		contentType := ContentType(target)
		if s.opts.LiveReload && strings.HasPrefix(contentType, "text/html") {
			data = InjectReloadScript(data)
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(data)
	})
}

func (s *DevServer) notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := NotFoundPage(r.URL.Path).Render(r.Context(), w); err != nil {
		s.logger.Warn(r.Context(), err, "Could not render not found page")
	}
}
