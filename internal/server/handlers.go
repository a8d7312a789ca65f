package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/conneroisu/treebark/internal/logging"
	"github.com/conneroisu/treebark/internal/markdown"
	"github.com/conneroisu/treebark/internal/tree"
	"github.com/conneroisu/treebark/internal/validation"
	"github.com/conneroisu/treebark/internal/version"
	"github.com/conneroisu/treebark/pkg/treebark"
)

const (
	// maxBodySize caps render requests and template files.
	maxBodySize = 1 << 20

	// maxListed bounds the index page.
	maxListed = 1000
)

// Diagnostic is one render diagnostic in API responses.
type Diagnostic struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Code      string `json:"code,omitempty"`
	Tag       string `json:"tag,omitempty"`
	Attribute string `json:"attribute,omitempty"`
}

// RenderResponse is the body returned by POST /api/render.
type RenderResponse struct {
	HTML        string       `json:"html"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func diagnostics(entries []logging.Entry) []Diagnostic {
	out := make([]Diagnostic, 0, len(entries))
	for _, e := range entries {
		out = append(out, Diagnostic{
			Level:     e.LevelName(),
			Message:   e.Message,
			Code:      field(e, "code"),
			Tag:       field(e, "tag"),
			Attribute: field(e, "attribute"),
		})
	}

	return out
}

func field(e logging.Entry, key string) string {
	v, ok := e.Fields[key]
	if !ok || v == nil {
		return ""
	}

	return fmt.Sprint(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

// handleHealth returns the server health status for health checks
func (s *PreviewServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   version.GetShortVersion(),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
		"root":      s.root,
		"clients":   s.ClientCount(),
	}

	if err := writeJSON(w, http.StatusOK, health); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode health response")
	}
}

// handleRender renders a {template, data, indent} body and returns the HTML
// with the diagnostics the render produced.
func (s *PreviewServer) handleRender(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	parsed, err := treebark.ParseData(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	req, ok := tree.AsObject(parsed)
	if !ok {
		http.Error(w, "Request body must be an object", http.StatusBadRequest)
		return
	}
	template, ok := req.Get("template")
	if !ok {
		http.Error(w, "Request body is missing template", http.StatusBadRequest)
		return
	}
	data, _ := req.Get("data")

	rec := treebark.NewRecorder()
	opts := s.renderOptions(rec)
	if indent, ok := req.Get("indent"); ok {
		opts.Indent = treebark.ParseIndent(indent)
	}

	resp := RenderResponse{
		HTML: treebark.RenderString(treebark.Input{Template: template, Data: data}, opts),
	}
	resp.Diagnostics = diagnostics(rec.Entries())

	if err := writeJSON(w, http.StatusOK, resp); err != nil {
		s.logger.Warn(r.Context(), err, "failed to encode render response")
	}
}

// handlePreview renders a template file from the root inside the page shell.
func (s *PreviewServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := validation.ValidateTemplateName(name); err != nil {
		http.Error(w, "Invalid template name", http.StatusBadRequest)
		return
	}

	src, err := s.readTemplate(name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		http.NotFound(w, r)
		return
	case err != nil:
		s.logger.Warn(r.Context(), err, "failed to read template", "name", name)
		http.Error(w, "Failed to read template", http.StatusInternalServerError)
		return
	}

	var body templ.Component
	status := http.StatusOK

	in, err := treebark.ParseDocument(src)
	if err != nil {
		status = http.StatusUnprocessableEntity
		body = previewBody(markdown.ErrorBanner(err.Error()), nil)
	} else {
		rec := treebark.NewRecorder()
		fragment := treebark.RenderString(in, s.renderOptions(rec))
		body = previewBody(fragment, rec.Entries())
	}

	templ.Handler(pageShell(name, name, body), templ.WithStatus(status)).ServeHTTP(w, r)
}

// readTemplate reads a template below the root. Symlinks are resolved first
// and a target outside the root is reported as missing.
func (s *PreviewServer) readTemplate(name string) ([]byte, error) {
	root, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	path, err := filepath.EvalSymlinks(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		return nil, err
	}
	if rel, err := filepath.Rel(root, path); err != nil || rel == ".." ||
		strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return nil, fmt.Errorf("template %s resolves outside the root: %w", name, fs.ErrNotExist)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fs.ErrNotExist
	}
	if info.Size() > maxBodySize {
		return nil, fmt.Errorf("template %s is larger than %d bytes", name, maxBodySize)
	}

	return os.ReadFile(path)
}

// handleIndex lists the template files below the root.
func (s *PreviewServer) handleIndex(w http.ResponseWriter, r *http.Request) {
	names, err := s.listTemplates()
	if err != nil {
		s.logger.Warn(r.Context(), err, "failed to list templates")
	}

	templ.Handler(pageShell("templates", "", indexBody(names))).ServeHTTP(w, r)
}

func (s *PreviewServer) listTemplates() ([]string, error) {
	var names []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !validation.IsTemplateFile(path) || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		if len(names) >= maxListed {
			return filepath.SkipAll
		}

		return nil
	})
	sort.Strings(names)

	return names, err
}
