package prompts

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Task template names.
const (
	Resolution    = "resolution"
	QualityReview = "quality_review"
)

//go:embed crew.yaml
var crewYAML []byte

// ErrUnknownTemplate is returned when rendering a template name that was never loaded.
var ErrUnknownTemplate = errors.New("unknown template")

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MissingPlaceholderError reports a placeholder referenced by a template with no supplied value.
type MissingPlaceholderError struct {
	Template    string
	Placeholder string
}

func (e *MissingPlaceholderError) Error() string {
	return fmt.Sprintf("template %q: no value for placeholder {%s}", e.Template, e.Placeholder)
}

// Template is a named body with {name} placeholders.
type Template struct {
	Name string
	Body string
}

// Placeholders returns the distinct placeholder names in order of first appearance.
func (t Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range placeholderRe.FindAllStringSubmatch(t.Body, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}

// Render substitutes every placeholder in a single pass. Substituted values are
// never re-scanned, so braces inside customer text are left alone.
func (t Template) Render(values map[string]string) (string, error) {
	for _, name := range t.Placeholders() {
		if _, ok := values[name]; !ok {
			return "", &MissingPlaceholderError{Template: t.Name, Placeholder: name}
		}
	}
	return placeholderRe.ReplaceAllStringFunc(t.Body, func(m string) string {
		return values[m[1:len(m)-1]]
	}), nil
}

// Persona is an agent's role, goal and backstory.
type Persona struct {
	Name      string `yaml:"-"`
	Role      string `yaml:"role"`
	Goal      string `yaml:"goal"`
	Backstory string `yaml:"backstory"`
}

// Template folds the persona into a system-instructions template.
func (p Persona) Template() Template {
	body := "You are " + p.Role + ".\nYour personal goal is: " + p.Goal + "\n\n" + p.Backstory
	return Template{Name: p.Name, Body: body}
}

// Task binds a task template to the agent that performs it.
type Task struct {
	Name           string   `yaml:"name"`
	Agent          string   `yaml:"agent"`
	Tools          []string `yaml:"tools"`
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
}

// Template joins the description and the expected-output criteria.
func (t Task) Template() Template {
	body := strings.TrimSpace(t.Description)
	if t.ExpectedOutput != "" {
		body += "\n\nThis is the expected criteria for your final answer:\n" + strings.TrimSpace(t.ExpectedOutput)
	}
	return Template{Name: t.Name, Body: body}
}

type crewFile struct {
	Agents map[string]Persona `yaml:"agents"`
	Tasks  []Task             `yaml:"tasks"`
}

// Set holds the static templates loaded at process start. It is read-only
// after Load and safe for concurrent use.
type Set struct {
	templates map[string]Template
	tasks     map[string]Task
	personas  map[string]Persona
}

// Default loads the embedded crew definitions.
func Default() (*Set, error) {
	return Load(crewYAML)
}

// Load parses crew definitions. Both task templates must be present, every
// task must reference a defined agent, and unknown keys are rejected.
func Load(data []byte) (*Set, error) {
	var f crewFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse crew definitions: %w", err)
	}

	s := &Set{
		templates: make(map[string]Template, len(f.Tasks)),
		tasks:     make(map[string]Task, len(f.Tasks)),
		personas:  make(map[string]Persona, len(f.Agents)),
	}
	for name, p := range f.Agents {
		p.Name = name
		s.personas[name] = p
	}
	for _, t := range f.Tasks {
		if _, ok := s.personas[t.Agent]; !ok {
			return nil, fmt.Errorf("task %q: undefined agent %q", t.Name, t.Agent)
		}
		s.tasks[t.Name] = t
		s.templates[t.Name] = t.Template()
	}
	for _, name := range []string{Resolution, QualityReview} {
		if _, ok := s.tasks[name]; !ok {
			return nil, fmt.Errorf("crew definitions: missing task %q", name)
		}
	}
	return s, nil
}

// Render fills the named task template.
func (s *Set) Render(name string, values map[string]string) (string, error) {
	t, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t.Render(values)
}

// Instructions renders the persona of the agent assigned to the named task.
func (s *Set) Instructions(task string, values map[string]string) (string, error) {
	t, ok := s.tasks[task]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, task)
	}
	return s.personas[t.Agent].Template().Render(values)
}

// Task returns the named task definition.
func (s *Set) Task(name string) (Task, bool) {
	t, ok := s.tasks[name]
	return t, ok
}

// Persona returns the persona of the agent assigned to the named task.
func (s *Set) Persona(task string) (Persona, bool) {
	t, ok := s.tasks[task]
	if !ok {
		return Persona{}, false
	}
	return s.personas[t.Agent], true
}
