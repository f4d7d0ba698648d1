package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// PromptBuilder renders the instructions that seed a stage's session.
type PromptBuilder interface {
	Build(stage string, values map[string]any) (string, error)
}

// TemplateBuilder renders per-stage text/template sources. Templates receive
// the values map as their dot and may use the "json" helper.
type TemplateBuilder struct {
	templates map[string]*template.Template
}

// Compile-time interface check.
var _ PromptBuilder = (*TemplateBuilder)(nil)

var templateFuncs = template.FuncMap{
	"json": func(v any) (string, error) {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data), nil
	},
	"join": strings.Join,
}

// NewTemplateBuilder parses one template per stage. Later maps override
// earlier ones, so defaults come first and custom prompts last.
func NewTemplateBuilder(sources ...map[string]string) (*TemplateBuilder, error) {
	merged := make(map[string]string)
	for _, src := range sources {
		maps.Copy(merged, src)
	}

	b := &TemplateBuilder{templates: make(map[string]*template.Template, len(merged))}
	for stage, text := range merged {
		tmpl, err := template.New(stage).Funcs(templateFuncs).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("llm: parse prompt for stage %q: %w", stage, err)
		}
		b.templates[stage] = tmpl
	}
	return b, nil
}

// Build renders the template registered for stage.
func (b *TemplateBuilder) Build(stage string, values map[string]any) (string, error) {
	tmpl, ok := b.templates[stage]
	if !ok {
		return "", fmt.Errorf("llm: no prompt template for stage %q", stage)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return "", fmt.Errorf("llm: render prompt for stage %q: %w", stage, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// LoadTemplates reads a YAML file mapping stage names to template sources.
func LoadTemplates(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("llm: read prompts %s: %w", path, err)
	}
	var out map[string]string
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("llm: parse prompts %s: %w", path, err)
	}
	return out, nil
}
