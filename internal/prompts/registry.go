// Package prompts holds the prompt template registry and the assembler that
// renders templates into provider-ready system/user pairs. Templates are YAML,
// embedded at compile time, and may be replaced from a file at startup.
package prompts

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

const examplesPartial = `{{define "examples"}}{{if .Examples}}Examples:
{{range $i, $e := .Examples}}Example {{inc $i}} input:
{{$e.Input}}
Example {{inc $i}} output:
{{$e.Output}}
{{end}}{{end}}{{end}}`

type templateFile struct {
	Templates []templateSpec `yaml:"templates"`
}

type templateSpec struct {
	Task     string `yaml:"task"`
	Document string `yaml:"document"`
	System   string `yaml:"system"`
	User     string `yaml:"user"`
}

type templateKey struct {
	task domain.TaskType
	doc  domain.DocumentType
}

// Template is a parsed system/user pair.
type Template struct {
	TaskType     domain.TaskType
	DocumentType domain.DocumentType
	system       *template.Template
	user         *template.Template
}

// Registry maps (task, document type) to templates.
type Registry struct {
	templates map[templateKey]*Template
}

// LoadDefault parses the embedded templates.
func LoadDefault() (*Registry, error) {
	return Load(strings.NewReader(string(defaultTemplates)))
}

// LoadFile parses templates from a YAML file.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template file %s: %w", path, err)
	}
	defer f.Close()

	return Load(f)
}

// Load parses templates from YAML.
func Load(r io.Reader) (*Registry, error) {
	var file templateFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	reg := &Registry{templates: make(map[templateKey]*Template, len(file.Templates))}
	for _, def := range file.Templates {
		if def.Task == "" {
			return nil, fmt.Errorf("template without task type")
		}
		tmpl, err := parseTemplate(def)
		if err != nil {
			return nil, err
		}
		key := templateKey{task: tmpl.TaskType, doc: tmpl.DocumentType}
		if _, dup := reg.templates[key]; dup {
			return nil, fmt.Errorf("duplicate template for task %q document %q", def.Task, def.Document)
		}
		reg.templates[key] = tmpl
	}

	return reg, nil
}

func parseTemplate(def templateSpec) (*Template, error) {
	name := def.Task + "/" + def.Document
	funcs := template.FuncMap{"inc": func(i int) int { return i + 1 }}

	system, err := template.New(name + "/system").Funcs(funcs).Option("missingkey=zero").Parse(examplesPartial + def.System)
	if err != nil {
		return nil, fmt.Errorf("failed to parse system template %s: %w", name, err)
	}
	user, err := template.New(name + "/user").Funcs(funcs).Option("missingkey=zero").Parse(examplesPartial + def.User)
	if err != nil {
		return nil, fmt.Errorf("failed to parse user template %s: %w", name, err)
	}

	return &Template{
		TaskType:     domain.TaskType(def.Task),
		DocumentType: domain.DocumentType(def.Document),
		system:       system,
		user:         user,
	}, nil
}

// Lookup returns the document-specific template, else the task default.
func (r *Registry) Lookup(taskType domain.TaskType, docType domain.DocumentType) (*Template, error) {
	if tmpl, ok := r.templates[templateKey{task: taskType, doc: docType}]; ok {
		return tmpl, nil
	}
	if tmpl, ok := r.templates[templateKey{task: taskType}]; ok {
		return tmpl, nil
	}
	return nil, &domain.TemplateNotFoundError{TaskType: taskType, DocumentType: docType}
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.templates)
}
