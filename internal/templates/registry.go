// Package templates holds the registry of static reference documents.
package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/bull/futurenest-rag/internal/markdown"
)

// ErrNotFound is returned for unknown template ids and missing template files.
var ErrNotFound = errors.New("template not found")

// Meta describes one reference document.
type Meta struct {
	ID          string `yaml:"id" json:"id"`
	Filename    string `yaml:"filename" json:"filename"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
}

// Defaults is the built-in registry content.
var Defaults = []Meta{
	{
		ID:          "labor_standards_act",
		Filename:    "labor_standards_act.txt",
		Title:       "勞基法",
		Description: "常見勞動權益規範摘要，供測試 RAG 檢索用。",
	},
}

// Registry maps template ids to files under a directory. It is read-only
// after construction and safe for concurrent use.
type Registry struct {
	dir    string
	metas  []Meta
	byID   map[string]int
	parser *markdown.Parser
}

// NewRegistry validates metas and builds a Registry rooted at dir.
// Iteration order is the order of metas.
func NewRegistry(dir string, metas []Meta) (*Registry, error) {
	r := &Registry{
		dir:    dir,
		byID:   make(map[string]int, len(metas)),
		parser: markdown.NewParser(),
	}
	for _, m := range metas {
		if m.ID == "" || m.Filename == "" {
			return nil, fmt.Errorf("template entry needs id and filename: %+v", m)
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("duplicate template id %q", m.ID)
		}
		if m.Title == "" {
			m.Title = m.ID
		}
		r.byID[m.ID] = len(r.metas)
		r.metas = append(r.metas, m)
	}
	return r, nil
}

// Dir returns the directory template files are read from.
func (r *Registry) Dir() string { return r.dir }

// List returns all entries in registration order.
func (r *Registry) List() []Meta {
	out := make([]Meta, len(r.metas))
	copy(out, r.metas)
	return out
}

// Get returns the entry for id.
func (r *Registry) Get(id string) (Meta, error) {
	i, ok := r.byID[id]
	if !ok {
		return Meta{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.metas[i], nil
}

// Title returns the display title for id, or "" when id is not registered.
func (r *Registry) Title(id string) string {
	if i, ok := r.byID[id]; ok {
		return r.metas[i].Title
	}
	return ""
}

// Path returns the file path backing id.
func (r *Registry) Path(id string) (string, error) {
	m, err := r.Get(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.dir, m.Filename), nil
}

// LoadText reads the template as plain text. Markdown is flattened and PDF
// text is extracted; anything else is returned as-is.
func (r *Registry) LoadText(id string) (string, error) {
	path, err := r.Path(id)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s (%s)", ErrNotFound, id, path)
		}
		return "", fmt.Errorf("read template %s: %w", id, err)
	}

	text, err := decode(r.parser, path, data)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", id, err)
	}
	return text, nil
}

// ReadText reads a document file as plain text the same way templates are
// loaded: markdown is flattened, PDF text is extracted and anything else is
// returned as-is.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decode(markdown.NewParser(), path, data)
}

func decode(parser *markdown.Parser, path string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		text, err := parser.PlainText(data)
		if err != nil {
			return "", fmt.Errorf("parse markdown: %w", err)
		}
		return text, nil
	case ".pdf":
		text, err := pdfText(data)
		if err != nil {
			return "", fmt.Errorf("parse pdf: %w", err)
		}
		return text, nil
	default:
		return string(data), nil
	}
}

// Outline returns the heading paths of a markdown template, or nil for other formats.
func (r *Registry) Outline(id string) ([]string, error) {
	path, err := r.Path(id)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".md" && ext != ".markdown" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, id, path)
		}
		return nil, fmt.Errorf("read template %s: %w", id, err)
	}
	doc, err := r.parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse markdown template %s: %w", id, err)
	}
	return doc.Outline, nil
}

func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
