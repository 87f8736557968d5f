package planner

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/meilan-group/mallops-cli/internal/model"
)

//go:embed templates.yaml
var templatesYAML []byte

// taskTemplate is one action slot in an intent's template.
type taskTemplate struct {
	Action    string   `yaml:"action"`
	DependsOn []string `yaml:"depends_on"`
	Priority  int      `yaml:"priority"`
}

// templateSet is the parsed form of templates.yaml.
type templateSet struct {
	Templates         map[model.Intent][]taskTemplate `yaml:"templates"`
	EntityIndependent []string                        `yaml:"entity_independent"`
	Speculative       map[model.Intent]string         `yaml:"speculative"`
	Continuations     map[model.Intent][]string       `yaml:"continuations"`
}

// loadTemplates parses the embedded template file and checks that every
// declared dependency names an action in the same template.
func loadTemplates() (*templateSet, error) {
	var ts templateSet
	if err := yaml.Unmarshal(templatesYAML, &ts); err != nil {
		return nil, eris.Wrap(err, "planner: parse templates")
	}
	for intent, tmpl := range ts.Templates {
		actions := make(map[string]bool, len(tmpl))
		for _, t := range tmpl {
			actions[t.Action] = true
		}
		for _, t := range tmpl {
			for _, dep := range t.DependsOn {
				if !actions[dep] {
					return nil, eris.Errorf("planner: template %s: %s depends on unknown action %s", intent, t.Action, dep)
				}
			}
		}
	}
	return &ts, nil
}

// entityIndependent reports whether the action operates without a merchant.
func (ts *templateSet) entityIndependent(action string) bool {
	for _, a := range ts.EntityIndependent {
		if a == action {
			return true
		}
	}
	return false
}
