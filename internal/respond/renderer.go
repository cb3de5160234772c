package respond

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
)

// Renderer executes a named template. Implementations are provided by
// the application; TemplateSet is the built-in html/template one.
type Renderer interface {
	Render(w io.Writer, name string, data any) error
}

// TemplateSet is a Renderer backed by html/template.
type TemplateSet struct {
	t *template.Template
}

// LoadTemplates parses every file in dir matching pattern (e.g.
// "*.html") into a TemplateSet. Templates are addressed by base
// filename.
func LoadTemplates(dir, pattern string) (*TemplateSet, error) {
	t, err := template.ParseGlob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &TemplateSet{t: t}, nil
}

// Render executes the named template with data.
func (s *TemplateSet) Render(w io.Writer, name string, data any) error {
	return s.t.ExecuteTemplate(w, name, data)
}
