package template

import (
	"bytes"
	"embed"
	"fmt"
	"sync"
	"text/template"

	log "github.com/sirupsen/logrus"
)

var logger = log.WithField("package", "template")

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Renderer renders the embedded templates used for generated files.
type Renderer struct {
	once sync.Once
	tmpl *template.Template
	err  error
}

// NewRenderer creates a renderer; templates are parsed on first use.
func NewRenderer() *Renderer {
	return &Renderer{}
}

func (r *Renderer) load() error {
	r.once.Do(func() {
		r.tmpl, r.err = template.ParseFS(templatesFS, "templates/*.tmpl")
	})
	return r.err
}

// Render executes the named template with data.
func (r *Renderer) Render(name string, data interface{}) ([]byte, error) {
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		logger.WithField("template", name).WithField("error", err).Error("Failed to render template")
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
