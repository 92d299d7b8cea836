// Package prompts holds the prompt catalogue used by the classifier and the
// intent-specific answer formatters. The default catalogue is embedded; an
// operator may override it with a YAML file of the same shape.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalogue.yaml
var defaultCatalogue []byte

// Labels every catalogue must provide a template for.
var Labels = []string{"explanation", "advisory", "risk_assessment", "simulation"}

// Template is one intent-specific response contract.
type Template struct {
	Role        string   `yaml:"role"`
	Preamble    string   `yaml:"preamble,omitempty"`
	Instruction string   `yaml:"instruction"`
	Sections    []string `yaml:"sections"`
	Notes       []string `yaml:"notes,omitempty"`
}

// Escalation is the prompt sent to the cloud model. It carries no local context.
type Escalation struct {
	Role     string   `yaml:"role"`
	Preamble string   `yaml:"preamble"`
	Notes    []string `yaml:"notes"`
}

// Catalogue is the full prompt set.
type Catalogue struct {
	GroundRules []string            `yaml:"ground_rules"`
	Classifier  string              `yaml:"classifier"`
	Templates   map[string]Template `yaml:"templates"`
	Escalation  Escalation          `yaml:"escalation"`
}

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	return Parse(defaultCatalogue)
}

// MustDefault is Default for wiring code and tests; the embedded file is
// covered by tests so a panic here means a broken build.
func MustDefault() *Catalogue {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a catalogue override from disk. An override may add ground
// rules but must keep every rule of the embedded catalogue.
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading prompt catalogue: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	base, err := Default()
	if err != nil {
		return nil, err
	}
	if err := c.keepsGroundRules(base.GroundRules); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func (c *Catalogue) keepsGroundRules(required []string) error {
	have := make(map[string]bool, len(c.GroundRules))
	for _, rule := range c.GroundRules {
		have[strings.TrimSpace(rule)] = true
	}
	for _, rule := range required {
		if !have[strings.TrimSpace(rule)] {
			return fmt.Errorf("prompt catalogue: ground rule %q is missing", rule)
		}
	}
	return nil
}

// Parse decodes and validates a catalogue.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding prompt catalogue: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks that every label has a usable template.
func (c *Catalogue) Validate() error {
	if len(c.GroundRules) == 0 {
		return fmt.Errorf("prompt catalogue: ground_rules must not be empty")
	}
	if strings.TrimSpace(c.Classifier) == "" {
		return fmt.Errorf("prompt catalogue: classifier prompt is empty")
	}
	for _, label := range Labels {
		t, ok := c.Templates[label]
		if !ok {
			return fmt.Errorf("prompt catalogue: missing template %q", label)
		}
		if len(t.Sections) == 0 {
			return fmt.Errorf("prompt catalogue: template %q has no sections", label)
		}
	}
	return nil
}

// Template returns the template for label and whether it exists.
func (c *Catalogue) Template(label string) (Template, bool) {
	t, ok := c.Templates[label]
	return t, ok
}

// RenderAnswer builds a grounded answer prompt.
func (c *Catalogue) RenderAnswer(t Template, question, context string) string {
	var sb strings.Builder
	sb.WriteString(t.Role)
	sb.WriteString("\n\nUse the following verified UK credit knowledge base context:\n\nContext:\n")
	sb.WriteString(context)
	sb.WriteString("\n\n")
	if t.Preamble != "" {
		sb.WriteString(t.Preamble)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question:\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")
	sb.WriteString(t.Instruction)
	sb.WriteString(":\n\n")
	writeBullets(&sb, t.Sections)
	sb.WriteString("\nRules:\n")
	writeBullets(&sb, c.GroundRules)
	writeBullets(&sb, t.Notes)
	return sb.String()
}

// RenderEscalation builds the context-free prompt for the cloud model.
// The section layout of the intent's template is included so the cloud answer
// keeps the same structure as a local one.
func (c *Catalogue) RenderEscalation(label string, t Template, question string) string {
	var sb strings.Builder
	sb.WriteString(c.Escalation.Role)
	sb.WriteString("\n\n")
	sb.WriteString(c.Escalation.Preamble)
	sb.WriteString("\nProvide a structured answer for this intent: ")
	sb.WriteString(label)
	sb.WriteString("\n\nQuestion:\n")
	sb.WriteString(question)
	sb.WriteString("\n\nUse this format:\n\n")
	writeBullets(&sb, t.Sections)
	sb.WriteString("\n")
	writeBullets(&sb, c.Escalation.Notes)
	return sb.String()
}

func writeBullets(sb *strings.Builder, items []string) {
	for _, item := range items {
		sb.WriteString("- ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
}
