package program

import (
	"bytes"
	"text/template"
)

// TemplateData builds the placeholder map a template is rendered with.
func (p *PromptProgram) TemplateData() map[string]string {
	return map[string]string{
		"instruction": p.Inputs.Instruction,
		"context":     p.Inputs.Context,
		"code":        p.Inputs.CodeSnippet,
		"error":       p.Inputs.ErrorText,
	}
}

// Render executes a template string against the given placeholder data.
func Render(tmpl string, data map[string]string) (string, error) {
	t, err := template.New("program").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Render renders the program's own template with its inputs.
func (p *PromptProgram) Render() (string, error) {
	return Render(p.Template, p.TemplateData())
}
