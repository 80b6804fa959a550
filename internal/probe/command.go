package probe

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/nickborgers/monorepo/site-timing-monitor/internal/config"
)

// CommandSpec is a parsed command template ready to render argv
type CommandSpec struct {
	binary string
	args   []*template.Template
}

// NewCommandSpec parses every argument of tmpl as a text/template.
// Unknown parameter names fail at render time.
func NewCommandSpec(tmpl config.CommandTemplate) (*CommandSpec, error) {
	if tmpl.Binary == "" {
		return nil, fmt.Errorf("command template has no binary")
	}

	spec := &CommandSpec{
		binary: tmpl.Binary,
		args:   make([]*template.Template, 0, len(tmpl.Args)),
	}
	for i, arg := range tmpl.Args {
		t, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid template in argument %d (%q): %w", i, arg, err)
		}
		spec.args = append(spec.args, t)
	}
	return spec, nil
}

// Binary returns the executable name
func (c *CommandSpec) Binary() string {
	return c.binary
}

// Render executes every argument template against params
func (c *CommandSpec) Render(params any) ([]string, error) {
	argv := make([]string, 0, len(c.args))
	var sb strings.Builder
	for _, t := range c.args {
		sb.Reset()
		if err := t.Execute(&sb, params); err != nil {
			return nil, fmt.Errorf("failed to render argument %s: %w", t.Name(), err)
		}
		argv = append(argv, sb.String())
	}
	return argv, nil
}
