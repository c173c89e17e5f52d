package openai

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PromptSpec is one prompt and its sampling parameters
type PromptSpec struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// PromptConfig holds the prompts used by the extractor and the categorizer
type PromptConfig struct {
	ReceiptExtraction PromptSpec `yaml:"receipt_extraction"`
	Categorization    PromptSpec `yaml:"categorization"`
}

// DefaultPrompts returns the built-in prompts
func DefaultPrompts() *PromptConfig {
	prompts, err := parsePrompts(defaultPrompts)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return prompts
}

// LoadPrompts loads prompt configuration from a YAML file. Sections missing
// from the file keep their built-in values.
func LoadPrompts(promptsPath string) (*PromptConfig, error) {
	if promptsPath == "" {
		return DefaultPrompts(), nil
	}

	data, err := os.ReadFile(promptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	prompts := DefaultPrompts()
	if err := yaml.Unmarshal(data, prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if err := prompts.validate(); err != nil {
		return nil, err
	}
	return prompts, nil
}

func parsePrompts(data []byte) (*PromptConfig, error) {
	var prompts PromptConfig
	if err := yaml.Unmarshal(data, &prompts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}
	if err := prompts.validate(); err != nil {
		return nil, err
	}
	return &prompts, nil
}

func (p *PromptConfig) validate() error {
	for name, spec := range map[string]PromptSpec{
		"receipt_extraction": p.ReceiptExtraction,
		"categorization":     p.Categorization,
	} {
		if spec.UserTemplate == "" {
			return fmt.Errorf("prompt %s: user_template is required", name)
		}
		if _, err := template.New(name).Parse(spec.UserTemplate); err != nil {
			return fmt.Errorf("prompt %s: %w", name, err)
		}
	}
	return nil
}

// renderTemplate renders a template with provided data
func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
