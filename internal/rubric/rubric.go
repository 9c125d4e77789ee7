package rubric

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rubric is a YAML checklist of sections, each with rules to score.
type Rubric struct {
	Sections []Section `yaml:"sections"`
}

// Section scopes its rules to the part of the document whose text contains
// SectionText. An empty SectionText means the whole document.
type Section struct {
	SectionText     string           `yaml:"section_text"`
	ValidationRules []ValidationRule `yaml:"validation_rules"`
}

// ValidationRule is one scored check.
type ValidationRule struct {
	RuleID   string   `yaml:"rule_id"`
	Prompt   string   `yaml:"prompt"`
	Criteria []string `yaml:"criteria"`
}

// Rule is a ValidationRule flattened together with its section.
type Rule struct {
	ID          string
	SectionText string
	Prompt      string
	Criteria    []string
}

// LoadFile reads a rubric from a YAML file.
func LoadFile(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rubric: %w", err)
	}
	return Parse(data)
}

// Parse decodes rubric YAML.
func Parse(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}
	return &r, nil
}

// Rules returns every rule in file order.
func (r *Rubric) Rules() []Rule {
	var out []Rule
	for _, s := range r.Sections {
		for _, vr := range s.ValidationRules {
			out = append(out, Rule{
				ID:          vr.RuleID,
				SectionText: s.SectionText,
				Prompt:      vr.Prompt,
				Criteria:    vr.Criteria,
			})
		}
	}
	return out
}

// Render formats the rule for the LLM system prompt. The layout is fed to
// the model verbatim and must not change.
func (r Rule) Render() string {
	var sb strings.Builder
	sb.WriteString("Rule ID: " + r.ID + "\n")
	sb.WriteString("Prompt: " + r.Prompt + "\n")
	sb.WriteString("Criteria: \n")
	for _, c := range r.Criteria {
		sb.WriteString("    - " + c + "\n")
	}
	return sb.String()
}

// CreateListOfRules flattens the rubric into three parallel lists: section
// text, rendered rule text and rule id, one entry per rule.
func (r *Rubric) CreateListOfRules() (sections, rules, ids []string) {
	for _, rule := range r.Rules() {
		sections = append(sections, rule.SectionText)
		rules = append(rules, rule.Render())
		ids = append(ids, rule.ID)
	}
	return sections, rules, ids
}
