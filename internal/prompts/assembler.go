package prompts

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cd3331/pm-document-intelligence-sub000/internal/domain"
)

// templateData is what templates can reference.
type templateData struct {
	TaskType     string
	DocumentType string
	Content      string
	WordCount    int
	Examples     []domain.FewShotExample
	Options      map[string]string
}

// Assembler renders registry templates. It is a pure transformation.
type Assembler struct {
	registry *Registry
}

// NewAssembler creates an assembler over a registry.
func NewAssembler(registry *Registry) *Assembler {
	return &Assembler{registry: registry}
}

// Assemble renders the system and user messages for a task.
func (a *Assembler) Assemble(
	taskType domain.TaskType,
	docType domain.DocumentType,
	content string,
	examples []domain.FewShotExample,
) (*domain.Prompt, error) {
	return a.AssembleWithOptions(taskType, docType, content, examples, nil)
}

// AssembleWithOptions is Assemble with output-affecting option flags exposed to templates.
func (a *Assembler) AssembleWithOptions(
	taskType domain.TaskType,
	docType domain.DocumentType,
	content string,
	examples []domain.FewShotExample,
	options map[string]string,
) (*domain.Prompt, error) {
	tmpl, err := a.registry.Lookup(taskType, docType)
	if err != nil {
		return nil, err
	}

	if options == nil {
		options = map[string]string{}
	}
	data := templateData{
		TaskType:     string(taskType),
		DocumentType: docType.Label(),
		Content:      content,
		WordCount:    len(strings.Fields(content)),
		Examples:     examples,
		Options:      options,
	}

	var system, user bytes.Buffer
	if execErr := tmpl.system.Execute(&system, data); execErr != nil {
		return nil, fmt.Errorf("failed to render system prompt: %w", execErr)
	}
	if execErr := tmpl.user.Execute(&user, data); execErr != nil {
		return nil, fmt.Errorf("failed to render user prompt: %w", execErr)
	}

	return &domain.Prompt{
		System: strings.TrimSpace(system.String()),
		User:   strings.TrimSpace(user.String()),
	}, nil
}
